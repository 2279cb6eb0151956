// Package workspace drives split and merge for the declaration files of one
// project: it parses a file, derives its decomposition, takes the piece
// directory lock, writes or merges pieces and records what it did.
package workspace

import (
	"context"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"

	"dtsplit/internal/backup"
	"dtsplit/internal/decl"
	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/lock"
	"dtsplit/internal/paths"
	"dtsplit/internal/pieces"
	"dtsplit/internal/slogutil"
	"dtsplit/internal/storage"
)

// Parser turns the content of a declaration file into the parsed-file model.
type Parser interface {
	Parse(ctx context.Context, path string, src []byte) (*decl.File, error)
}

// Options configures a Workspace
type Options struct {
	// ProjectRoot anchors manifest keys and relative paths.
	ProjectRoot string
	Pieces      pieces.Options

	// Fs holds the sources and pieces; defaults to the OS file system.
	Fs afero.Fs

	// Manifest records split runs; nil disables recording and Status.
	Manifest *storage.ManifestRepository
	// KeepRuns bounds the recorded runs per source; <= 0 keeps all.
	KeepRuns int

	// Backups receives the previous source text before a merge rewrites it;
	// nil disables backups and Restore.
	Backups *backup.Store

	Logger *slog.Logger
}

// Workspace runs per-file operations. It is safe for concurrent use on
// different files; operations on one file are serialized by the piece
// directory lock.
type Workspace struct {
	root     string
	opts     pieces.Options
	parser   Parser
	fs       afero.Fs
	manifest *storage.ManifestRepository
	keepRuns int
	backups  *backup.Store
	logger   *slog.Logger

	acquire func(dir string) (*lock.Lock, error)
	now     func() time.Time
}

// New creates a workspace
func New(parser Parser, opts Options) *Workspace {
	w := &Workspace{
		root:     opts.ProjectRoot,
		opts:     opts.Pieces,
		parser:   parser,
		fs:       opts.Fs,
		manifest: opts.Manifest,
		keepRuns: opts.KeepRuns,
		backups:  opts.Backups,
		logger:   opts.Logger,
		acquire:  lock.Acquire,
		now:      time.Now,
	}
	if w.fs == nil {
		w.fs = afero.NewOsFs()
	}
	if w.logger == nil {
		w.logger = slogutil.NewDiscardLogger()
	}
	return w
}

// PieceOptions returns the splitter options the workspace uses
func (w *Workspace) PieceOptions() pieces.Options {
	return w.opts
}

// Plan is the decomposition of a file as it currently reads on disk.
type Plan struct {
	Source        string                `json:"source" yaml:"source"`
	SourceHash    string                `json:"sourceHash" yaml:"sourceHash"`
	Decomposition *pieces.Decomposition `json:"decomposition" yaml:"decomposition"`

	text string
}

// Text returns the source text the plan was derived from.
func (p *Plan) Text() string {
	return p.text
}

// Plan parses path and derives its decomposition without writing anything.
func (w *Workspace) Plan(ctx context.Context, path string) (*Plan, error) {
	path = w.abs(path)

	src, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, dtserrors.New(dtserrors.SourceUnreadable, "reading declaration file", err).WithPath(path)
	}
	return w.plan(ctx, path, src)
}

func (w *Workspace) plan(ctx context.Context, path string, src []byte) (*Plan, error) {
	f, err := w.parser.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	d, err := pieces.Decompose(f, w.opts, w.logger)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Source:        path,
		SourceHash:    hashBytes(src),
		Decomposition: d,
		text:          string(src),
	}, nil
}

// SplitOptions controls a split
type SplitOptions struct {
	// Force overwrites pieces edited since the previous split.
	Force bool
}

// SplitResult reports one split
type SplitResult struct {
	RunID   string        `json:"runId,omitempty"`
	Source  string        `json:"source"`
	Dir     string        `json:"dir"`
	Written int           `json:"written"`
	Skipped []pieces.Skip `json:"skipped,omitempty"`

	// Kept lists pieces of this split that were edited since the previous
	// split and so were not overwritten. A merge folds them in.
	Kept []string `json:"kept,omitempty"`
	// Removed lists pieces of the previous split that this split no longer
	// produces and that were still unedited.
	Removed []string `json:"removed,omitempty"`
	// Stale lists such pieces that were edited and so were left in place.
	Stale []string `json:"stale,omitempty"`
}

// Split writes the pieces of path and records the run in the manifest.
// Pieces edited since the previous split are left alone unless opts.Force.
func (w *Workspace) Split(ctx context.Context, path string, opts SplitOptions) (*SplitResult, error) {
	p, err := w.Plan(ctx, path)
	if err != nil {
		return nil, err
	}

	l, err := w.acquire(p.Decomposition.Dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	return w.split(p, opts)
}

// split does the work of Split; the caller holds the piece directory lock.
func (w *Workspace) split(p *Plan, opts SplitOptions) (*SplitResult, error) {
	d := p.Decomposition
	result := &SplitResult{
		Source:  p.Source,
		Dir:     d.Dir,
		Skipped: d.Skipped,
	}

	var recorded []storage.SplitPiece
	if w.manifest != nil {
		previous, err := w.manifest.LatestRun(w.key(p.Source))
		if err != nil {
			return nil, err
		}
		if previous != nil {
			if recorded, err = w.manifest.Pieces(previous.RunID); err != nil {
				return nil, err
			}
		}
	}

	write := d
	if !opts.Force && len(recorded) > 0 {
		kept := w.editedPieces(recorded, d, p.text)
		if len(kept) > 0 {
			filtered := *d
			filtered.Pieces = make([]pieces.Piece, 0, len(d.Pieces)-len(kept))
			for _, piece := range d.Pieces {
				if kept[piece.Path] {
					result.Kept = append(result.Kept, piece.Path)
					w.logger.Warn("Keeping edited piece that was not merged yet", "file", p.Source, "piece", piece.Path)
					continue
				}
				filtered.Pieces = append(filtered.Pieces, piece)
			}
			write = &filtered
		}
	}

	if err := pieces.Write(w.fs, write, p.text); err != nil {
		return nil, err
	}
	result.Written = len(write.Pieces)

	if w.manifest != nil {
		if len(recorded) > 0 {
			if err := w.clearStale(recorded, d, result); err != nil {
				return nil, err
			}
		}
		if err := w.record(p, result); err != nil {
			return nil, err
		}
	}

	w.logger.Info("Split declaration file",
		"file", p.Source,
		"pieces", result.Written,
		"kept", len(result.Kept),
		"skipped", len(result.Skipped),
		"runId", result.RunID,
	)
	return result, nil
}

// editedPieces returns the content pieces of d whose file differs both from
// what the previous split wrote and from what this split would write.
func (w *Workspace) editedPieces(recorded []storage.SplitPiece, d *pieces.Decomposition, text string) map[string]bool {
	hashes := make(map[string]string, len(recorded))
	for _, rp := range recorded {
		if !rp.Generated {
			hashes[rp.Path] = rp.ContentHash
		}
	}

	edited := make(map[string]bool)
	for _, piece := range d.Content() {
		hash, ok := hashes[w.key(piece.Path)]
		if !ok {
			continue
		}
		data, err := afero.ReadFile(w.fs, piece.Path)
		if err != nil {
			continue
		}
		if hashBytes(data) != hash && string(data) != piece.Render(text) {
			edited[piece.Path] = true
		}
	}
	return edited
}

// checkSplitOf fails when the manifest holds a split of path taken from a
// different text than p, since the recorded pieces no longer line up with it.
func (w *Workspace) checkSplitOf(p *Plan) error {
	if w.manifest == nil {
		return nil
	}
	run, err := w.manifest.LatestRun(w.key(p.Source))
	if err != nil {
		return err
	}
	if run == nil || run.SourceHash == p.SourceHash {
		return nil
	}
	return dtserrors.Newf(dtserrors.SourceChanged,
		"source changed since it was last split; split it again before merging").WithPath(p.Source)
}

func (w *Workspace) record(p *Plan, result *SplitResult) error {
	d := p.Decomposition
	run := &storage.SplitRun{
		RunID:        uuid.NewString(),
		SourcePath:   w.key(p.Source),
		SourceHash:   p.SourceHash,
		PieceDir:     w.key(d.Dir),
		PieceCount:   len(d.Pieces),
		SkippedCount: len(d.Skipped),
		CreatedAt:    w.now(),
	}

	recorded := make([]storage.SplitPiece, 0, len(d.Pieces))
	for _, piece := range d.Pieces {
		recorded = append(recorded, storage.SplitPiece{
			RunID:       run.RunID,
			Path:        w.key(piece.Path),
			Symbol:      piece.Symbol,
			Category:    string(piece.Category),
			StartOffset: piece.Start,
			EndOffset:   piece.End,
			ContentHash: hashBytes([]byte(piece.Render(p.text))),
			Generated:   piece.Generated,
		})
	}

	if err := w.manifest.RecordRun(run, recorded); err != nil {
		return err
	}
	result.RunID = run.RunID

	if w.keepRuns > 0 {
		pruned, err := w.manifest.PruneRuns(run.SourcePath, w.keepRuns)
		if err != nil {
			w.logger.Warn("Failed to prune split runs", "file", p.Source, "error", err.Error())
		} else if pruned > 0 {
			w.logger.Debug("Pruned split runs", "file", p.Source, "count", pruned)
		}
	}
	return nil
}

// clearStale removes pieces recorded by the previous run that the new
// decomposition no longer produces, unless they were edited since.
func (w *Workspace) clearStale(recorded []storage.SplitPiece, d *pieces.Decomposition, result *SplitResult) error {
	current := make(map[string]bool, len(d.Pieces))
	for _, p := range d.Pieces {
		current[w.key(p.Path)] = true
	}

	for _, rp := range recorded {
		if current[rp.Path] {
			continue
		}
		path := w.fromKey(rp.Path)
		data, err := afero.ReadFile(w.fs, path)
		if err != nil {
			continue
		}
		if hashBytes(data) != rp.ContentHash {
			result.Stale = append(result.Stale, path)
			w.logger.Warn("Keeping edited piece the split no longer produces", "file", d.Source, "piece", path)
			continue
		}
		if err := w.fs.Remove(path); err != nil {
			return dtserrors.New(dtserrors.PieceWriteFailed, "removing stale piece", err).WithPath(path)
		}
		result.Removed = append(result.Removed, path)
	}
	return nil
}

func (w *Workspace) abs(path string) string {
	if w.root != "" {
		return paths.Abs(w.root, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// key is the project-relative, forward-slash form of path used in the
// manifest and backup store. Paths outside the project keep their absolute form.
func (w *Workspace) key(path string) string {
	if w.root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return paths.NormalizePath(rel)
}

func (w *Workspace) fromKey(key string) string {
	if filepath.IsAbs(filepath.FromSlash(key)) || w.root == "" {
		return filepath.FromSlash(key)
	}
	return paths.JoinRoot(w.root, key)
}

func hashBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
