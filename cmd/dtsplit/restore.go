package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore a declaration file from its most recent backup",
	Long: `Replace a declaration file with the content it had before the last merge
that rewrote it. Backups are kept under .dtsplit/backups.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ws.Restore(ctx, a.abs(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %s from backup of %s\n",
		a.rel(result.Source), result.Backup.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
