package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"dtsplit/internal/workspace"
)

var splitCmd = &cobra.Command{
	Use:   "split [files...]",
	Short: "Split declaration files into pieces",
	Long: `Split each declaration file into one piece per top-level declaration.

Pieces are written under the pieces root, mirroring the file's location under
the translated root. Without arguments every declaration file under the
translated root is split.

Examples:
  dtsplit split                          # Split every file
  dtsplit split translated/api.d.ts      # Split one file
  dtsplit split --jobs 8                 # Split up to 8 files at once
  dtsplit split --force api.d.ts         # Discard unmerged piece edits`,
	RunE: runSplit,
}

var splitForce bool

func init() {
	splitCmd.Flags().BoolVar(&splitForce, "force", false, "Overwrite pieces edited since the last split")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
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

	var mu sync.Mutex
	out := cmd.OutOrStdout()
	opts := workspace.SplitOptions{Force: splitForce}
	return workspace.RunAll(ctx, files, a.jobs(), func(ctx context.Context, path string) error {
		result, err := a.ws.Split(ctx, path, opts)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		printSplit(out, a, result)
		return nil
	})
}

func printSplit(out io.Writer, a *app, result *workspace.SplitResult) {
	fmt.Fprintf(out, "split %s: %d pieces", a.rel(result.Source), result.Written)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, ", %d skipped", len(result.Skipped))
	}
	fmt.Fprintf(out, " -> %s\n", a.rel(result.Dir))
	for _, p := range result.Kept {
		fmt.Fprintf(out, "  kept edited %s (not merged yet)\n", a.rel(p))
	}
	for _, p := range result.Removed {
		fmt.Fprintf(out, "  removed %s\n", a.rel(p))
	}
	for _, p := range result.Stale {
		fmt.Fprintf(out, "  kept edited %s (no longer produced)\n", a.rel(p))
	}
}
