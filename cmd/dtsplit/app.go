package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"dtsplit/internal/backup"
	"dtsplit/internal/config"
	"dtsplit/internal/paths"
	"dtsplit/internal/slogutil"
	"dtsplit/internal/storage"
	"dtsplit/internal/tsparse"
	"dtsplit/internal/workspace"
)

// manifestRunsKept bounds the split runs recorded per source file.
const manifestRunsKept = 10

// app wires the configuration, logger, manifest store and parser of one
// command invocation.
type app struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	db     *storage.DB
	ws     *workspace.Workspace

	closers []io.Closer
}

// getProjectRoot returns the --project directory or the working directory.
func getProjectRoot() (string, error) {
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	return os.Getwd()
}

// loadConfig resolves the project root and loads its configuration.
func loadConfig() (string, *config.Config, error) {
	root, err := getProjectRoot()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// newLogger builds the stderr logger, teeing into the configured log file.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := slogutil.LevelFromVerbosity(verboseFlag, quietFlag, slogutil.LevelFromString(cfg.Logging.Level))
	console := slogutil.NewHandler(stderr, &slog.HandlerOptions{Level: level})
	if cfg.Logging.File == "" {
		return slog.New(console), nil, nil
	}

	file, f, err := slogutil.NewFileHandler(cfg.Logging.File, slog.LevelDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(slogutil.NewTeeHandler(console, file)), f, nil
}

// newApp loads everything a split/merge command needs.
func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	root, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{root: root, cfg: cfg}
	logger, logFile, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}
	if logFile != nil {
		a.closers = append(a.closers, logFile)
	}
	a.logger = logger

	db, err := storage.Open(root, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db)

	parser, err := tsparse.New(ctx, tsparse.Options{
		Ambient: cfg.AmbientFiles(root),
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	fs := afero.NewOsFs()
	a.ws = workspace.New(parser, workspace.Options{
		ProjectRoot: root,
		Pieces:      cfg.PieceOptions(root),
		Fs:          fs,
		Manifest:    storage.NewManifestRepository(db),
		KeepRuns:    manifestRunsKept,
		Backups:     backup.New(fs, paths.BackupsDir(root), cfg.Merge.KeepBackups, logger),
		Logger:      logger,
	})
	return a, nil
}

// Close releases the database and log file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func (a *app) jobs() int {
	if jobsFlag > 0 {
		return jobsFlag
	}
	if a.cfg.Jobs > 0 {
		return a.cfg.Jobs
	}
	return 1
}

// targets returns the files named on the command line, or every declaration
// file under the translated root when none are.
func (a *app) targets(args []string) ([]string, error) {
	if len(args) == 0 {
		return a.ws.Discover()
	}
	files := make([]string, 0, len(args))
	for _, arg := range args {
		files = append(files, a.abs(arg))
	}
	return files, nil
}

// abs resolves a command-line path against the working directory.
func (a *app) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, path)
	}
	return paths.Abs(a.root, path)
}

// rel shortens path for display.
func (a *app) rel(path string) string {
	if r, err := filepath.Rel(a.root, path); err == nil && !filepath.IsAbs(r) && r != ".." && !hasParentPrefix(r) {
		return filepath.ToSlash(r)
	}
	return path
}

func hasParentPrefix(p string) bool {
	return len(p) >= 3 && p[:2] == ".." && os.IsPathSeparator(p[2])
}

// newContext returns a context cancelled on interrupt.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
