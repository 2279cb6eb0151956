// Package backup keeps zstd-compressed copies of source files taken before a
// merge rewrites them.
//
// Layout: <dir>/<source-key>/<unix-nanos>.zst, where source-key is the
// hex blake2b-256 of the canonical source path.
package backup

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"

	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/slogutil"
)

const suffix = ".zst"

// Entry describes one stored backup.
type Entry struct {
	Source    string    `json:"source"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// Store manages backups under a single directory.
type Store struct {
	fs     afero.Fs
	dir    string
	keep   int
	logger *slog.Logger
	now    func() time.Time
}

// New creates a store rooted at dir keeping at most keep backups per source.
// keep <= 0 keeps everything.
func New(fs afero.Fs, dir string, keep int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Store{fs: fs, dir: dir, keep: keep, logger: logger, now: time.Now}
}

// Key returns the directory name used for a source path.
func Key(source string) string {
	sum := blake2b.Sum256([]byte(filepath.ToSlash(source)))
	return hex.EncodeToString(sum[:16])
}

func (s *Store) sourceDir(source string) string {
	return filepath.Join(s.dir, Key(source))
}

// Save compresses data and stores it as the newest backup of source.
func (s *Store) Save(source string, data []byte) (*Entry, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()
	compressed := enc.EncodeAll(data, make([]byte, 0, len(data)/2))

	dir := s.sourceDir(source)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	created := s.now()
	name := strconv.FormatInt(created.UnixNano(), 10) + suffix
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(s.fs, path, compressed, 0644); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}

	s.logger.Debug("Saved backup",
		"source", source,
		"path", path,
		"size", len(data),
		"compressed", len(compressed),
	)

	if err := s.prune(source); err != nil {
		s.logger.Warn("Failed to prune backups", "source", source, "error", err.Error())
	}

	return &Entry{Source: source, Path: path, CreatedAt: created, Size: int64(len(data))}, nil
}

// List returns the backups of source, newest first.
func (s *Store) List(source string) ([]Entry, error) {
	dir := s.sourceDir(source)
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var entries []Entry
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		nanos, err := strconv.ParseInt(strings.TrimSuffix(name, suffix), 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Source:    source,
			Path:      filepath.Join(dir, name),
			CreatedAt: time.Unix(0, nanos),
			Size:      info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Latest returns the newest backup of source.
func (s *Store) Latest(source string) (*Entry, error) {
	entries, err := s.List(source)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, dtserrors.Newf(dtserrors.BackupMissing, "no backup found").WithPath(source)
	}
	return &entries[0], nil
}

// Read decompresses a stored backup.
func (s *Store) Read(e Entry) ([]byte, error) {
	compressed, err := afero.ReadFile(s.fs, e.Path)
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing backup %s: %w", e.Path, err)
	}
	return data, nil
}

func (s *Store) prune(source string) error {
	if s.keep <= 0 {
		return nil
	}
	entries, err := s.List(source)
	if err != nil {
		return err
	}
	for _, e := range entries[min(s.keep, len(entries)):] {
		if err := s.fs.Remove(e.Path); err != nil {
			return err
		}
		s.logger.Debug("Pruned backup", "source", source, "path", e.Path)
	}
	return nil
}
