package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"dtsplit/internal/workspace"
)

var (
	mergeDryRun   bool
	mergeNoBackup bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge [files...]",
	Short: "Merge edited pieces back into their declaration files",
	Long: `Merge the pieces of each declaration file back into it.

Each piece replaces the source range it was split from, minus its synthesized
import and export lines. A missing piece leaves its range untouched. The
previous file content is backed up under .dtsplit/backups unless --no-backup
is given or merge.backup is false.

A file that changed since it was last split is refused; split it again first.
After writing, the file is split again so its pieces match the new text.

Examples:
  dtsplit merge                          # Merge every file
  dtsplit merge --dry-run api.d.ts       # Show the diff without writing`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Print a unified diff instead of writing")
	mergeCmd.Flags().BoolVar(&mergeNoBackup, "no-backup", false, "Do not back up the previous file content")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
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
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No declaration files found")
		return nil
	}

	opts := workspace.MergeOptions{
		DryRun:  mergeDryRun,
		Backup:  a.cfg.Merge.Backup && !mergeNoBackup,
		Resplit: !mergeDryRun,
	}

	var mu sync.Mutex
	out := cmd.OutOrStdout()
	return workspace.RunAll(ctx, files, a.jobs(), func(ctx context.Context, path string) error {
		result, err := a.ws.Merge(ctx, path, opts)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()

		if opts.DryRun {
			if result.Diff != "" {
				fmt.Fprint(out, result.Diff)
			} else {
				fmt.Fprintf(out, "%s: no changes\n", a.rel(result.Source))
			}
			return nil
		}

		state := "unchanged"
		if result.Written {
			state = "updated"
		}
		fmt.Fprintf(out, "merge %s: %d pieces applied, %s\n", a.rel(result.Source), result.Applied, state)
		for _, p := range result.Missing {
			fmt.Fprintf(out, "  missing %s\n", a.rel(p))
		}
		if result.Split != nil {
			for _, p := range result.Split.Removed {
				fmt.Fprintf(out, "  removed %s\n", a.rel(p))
			}
		}
		return nil
	})
}
