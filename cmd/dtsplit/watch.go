package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"dtsplit/internal/pieces"
	"dtsplit/internal/watcher"
	"dtsplit/internal/workspace"
)

var watchNoBackup bool

var watchCmd = &cobra.Command{
	Use:   "watch [files...]",
	Short: "Merge pieces back whenever they are edited",
	Long: `Watch the piece directories of the given declaration files (or of every
declaration file under the translated root) and merge a file as soon as its
pieces stop changing for watch.debounceMs milliseconds. Each merged file is
split again right away, so later edits apply to the merged text.

Files that were never split are skipped. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoBackup, "no-backup", false, "Do not back up the previous file content")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.targets(args)
	if err != nil {
		return err
	}

	opts := workspace.MergeOptions{
		Backup:  a.cfg.Merge.Backup && !watchNoBackup,
		Resplit: true,
	}
	out := cmd.OutOrStdout()
	var mu sync.Mutex

	w, err := watcher.New(a.cfg.WatcherConfig(), a.logger, func(source string, events []watcher.Event) {
		result, err := a.ws.Merge(ctx, source, opts)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		if result.Written {
			fmt.Fprintf(out, "merged %s: %d edits, %d pieces applied\n", a.rel(source), len(events), result.Applied)
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	watched := 0
	for _, file := range files {
		dir, err := pieces.PieceDirectory(a.ws.PieceOptions(), file)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dir); err != nil {
			a.logger.Warn("Skipping file that was never split", "file", file, "dir", dir)
			continue
		}
		if err := w.Add(file, dir); err != nil {
			return err
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("nothing to watch: split the files first")
	}

	fmt.Fprintf(out, "watching %d files (Ctrl-C to stop)\n", watched)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
