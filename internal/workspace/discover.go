package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Discover lists the declaration files under the translated root in lexical
// order. The pieces root and directories starting with a dot are skipped.
func (w *Workspace) Discover() ([]string, error) {
	root := w.opts.TranslatedRoot
	piecesRoot := filepath.Clean(w.opts.PiecesRoot)
	ext := w.opts.Extension
	if ext == "" {
		ext = ".d.ts"
	}

	var files []string
	err := afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && (strings.HasPrefix(info.Name(), ".") || filepath.Clean(path) == piecesRoot) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(info.Name(), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering declaration files under %s: %w", root, err)
	}
	return files, nil
}

// RunAll runs fn for every path with at most jobs files in flight. A failing
// file does not stop the others; every failure is returned joined.
func RunAll(ctx context.Context, files []string, jobs int, fn func(ctx context.Context, path string) error) error {
	if jobs <= 0 {
		jobs = 1
	}

	errs := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
