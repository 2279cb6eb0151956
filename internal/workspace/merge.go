package workspace

import (
	"context"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"

	"dtsplit/internal/backup"
	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/pieces"
)

// MergeOptions controls a merge
type MergeOptions struct {
	// DryRun computes the merged text and its diff without writing.
	DryRun bool
	// Backup saves the previous source text before it is overwritten.
	Backup bool
	// Resplit splits the merged source again, so the pieces and the manifest
	// describe the new text and a later merge starts from it.
	Resplit bool
}

// MergeResult reports one merge
type MergeResult struct {
	Source  string   `json:"source"`
	Applied int      `json:"applied"`
	Missing []string `json:"missing,omitempty"`
	Changed bool     `json:"changed"`
	Written bool     `json:"written"`
	Backup  string   `json:"backup,omitempty"`
	Diff    string   `json:"diff,omitempty"`

	// Split is the split taken after writing, when requested.
	Split *SplitResult `json:"split,omitempty"`
}

// Merge folds the pieces of path back into it. The decomposition is derived
// again from the current source, so the piece files must come from a split of
// this same text: when the manifest recorded a split of different text, Merge
// fails with SOURCE_CHANGED. The source is only rewritten when the merged text
// differs.
func (w *Workspace) Merge(ctx context.Context, path string, opts MergeOptions) (*MergeResult, error) {
	path = w.abs(path)

	src, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, dtserrors.New(dtserrors.SourceUnreadable, "reading declaration file", err).WithPath(path)
	}
	p, err := w.plan(ctx, path, src)
	if err != nil {
		return nil, err
	}

	l, err := w.acquire(p.Decomposition.Dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	if err := w.checkSplitOf(p); err != nil {
		return nil, err
	}

	merged, err := pieces.Merge(w.fs, p.Decomposition, p.text, w.opts)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{
		Source:  path,
		Applied: merged.Applied,
		Missing: merged.Missing,
		Changed: merged.Changed,
	}
	for _, missing := range merged.Missing {
		w.logger.Warn("Piece file missing; keeping original text", "file", path, "piece", missing)
	}

	if opts.DryRun {
		if merged.Changed {
			result.Diff = unifiedDiff(w.key(path), p.text, merged.Text)
		}
		return result, nil
	}
	if !merged.Changed {
		w.logger.Debug("Merge left source unchanged", "file", path, "applied", merged.Applied)
		return result, nil
	}

	if opts.Backup && w.backups != nil {
		entry, err := w.backups.Save(w.key(path), src)
		if err != nil {
			return nil, err
		}
		result.Backup = entry.Path
	}

	if err := afero.WriteFile(w.fs, path, []byte(merged.Text), fileMode(w.fs, path)); err != nil {
		return nil, dtserrors.New(dtserrors.PieceWriteFailed, "writing merged source", err).WithPath(path)
	}
	result.Written = true

	w.logger.Info("Merged pieces into declaration file",
		"file", path,
		"applied", merged.Applied,
		"missing", len(merged.Missing),
	)

	if opts.Resplit {
		next, err := w.plan(ctx, path, []byte(merged.Text))
		if err != nil {
			return result, err
		}
		// Every edited piece was just folded in, so none is worth keeping.
		split, err := w.split(next, SplitOptions{Force: true})
		if err != nil {
			return result, err
		}
		result.Split = split
	}
	return result, nil
}

// RestoreResult reports a restore
type RestoreResult struct {
	Source string       `json:"source"`
	Backup backup.Entry `json:"backup"`
}

// Restore replaces path with its most recent backup.
func (w *Workspace) Restore(ctx context.Context, path string) (*RestoreResult, error) {
	path = w.abs(path)
	if w.backups == nil {
		return nil, dtserrors.Newf(dtserrors.BackupMissing, "backups are disabled").WithPath(path)
	}

	dir, err := pieces.PieceDirectory(w.opts, path)
	if err != nil {
		return nil, err
	}
	l, err := w.acquire(dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	entry, err := w.backups.Latest(w.key(path))
	if err != nil {
		return nil, dtserrors.New(dtserrors.BackupMissing, "no backup found", err).WithPath(path)
	}
	data, err := w.backups.Read(*entry)
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(w.fs, path, data, fileMode(w.fs, path)); err != nil {
		return nil, dtserrors.New(dtserrors.PieceWriteFailed, "restoring source", err).WithPath(path)
	}

	w.logger.Info("Restored declaration file from backup", "file", path, "backup", entry.Path)
	return &RestoreResult{Source: path, Backup: *entry}, nil
}

func unifiedDiff(name, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return text
}

func fileMode(fsys afero.Fs, path string) os.FileMode {
	if info, err := fsys.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}
