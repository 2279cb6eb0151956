package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dtsplit/internal/workspace"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status <file>",
	Short: "Show which pieces were edited since the last split",
	Long: `Compare the pieces of a declaration file with the hashes recorded when
it was last split. Each piece is reported as unchanged, edited or missing.

Examples:
  dtsplit status translated/api.d.ts
  dtsplit status translated/api.d.ts --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, yaml, human)")
	rootCmd.AddCommand(statusCmd)
}

// StatusResponseCLI is the output of status
type StatusResponseCLI struct {
	Source        string           `json:"source" yaml:"source"`
	RunID         string           `json:"runId" yaml:"runId"`
	SplitAt       time.Time        `json:"splitAt" yaml:"splitAt"`
	SourceChanged bool             `json:"sourceChanged" yaml:"sourceChanged"`
	Unchanged     int              `json:"unchanged" yaml:"unchanged"`
	Edited        int              `json:"edited" yaml:"edited"`
	Missing       int              `json:"missing" yaml:"missing"`
	Pieces        []PieceStatusCLI `json:"pieces" yaml:"pieces"`
}

// PieceStatusCLI is the state of one piece
type PieceStatusCLI struct {
	Path  string `json:"path" yaml:"path"`
	State string `json:"state" yaml:"state"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.ws.Status(ctx, a.abs(args[0]))
	if err != nil {
		return err
	}

	resp := &StatusResponseCLI{
		Source:        a.rel(st.Source),
		RunID:         st.RunID,
		SplitAt:       st.SplitAt,
		SourceChanged: st.SourceChanged,
		Unchanged:     st.Count(workspace.PieceUnchanged),
		Edited:        st.Count(workspace.PieceEdited),
		Missing:       st.Count(workspace.PieceMissing),
	}
	for _, p := range st.Pieces {
		resp.Pieces = append(resp.Pieces, PieceStatusCLI{Path: a.rel(p.Path), State: string(p.State)})
	}

	output, err := FormatResponse(resp, OutputFormat(statusFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}
