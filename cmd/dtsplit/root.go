package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dtsplit/internal/version"
)

var (
	// projectFlag is the project root; defaults to the working directory
	projectFlag string
	verboseFlag int
	quietFlag   bool
	// jobsFlag overrides the configured number of files processed at once
	jobsFlag int
)

var rootCmd = &cobra.Command{
	Use:   "dtsplit",
	Short: "Split declaration files into one file per declaration and merge them back",
	Long: `dtsplit decomposes large TypeScript declaration files into one piece per
top-level declaration, with explicit imports for every cross reference and a
generated index re-exporting the original names. Edited pieces are merged back
into the original file without re-parsing them.

Configuration is read from .dtsplit/config.{toml,json,yaml} in the project root.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("dtsplit version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all log output")
	rootCmd.PersistentFlags().IntVar(&jobsFlag, "jobs", 0, "Files processed in parallel (default: config jobs)")
}

// run executes the command line and returns the process exit code.
func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
