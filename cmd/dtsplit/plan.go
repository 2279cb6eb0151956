package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dtsplit/internal/pieces"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Show how a declaration file would be split",
	Long: `Parse a declaration file and print its decomposition without writing
anything: every piece path, the declaration it holds, its byte range and the
names it imports.

Examples:
  dtsplit plan translated/api.d.ts
  dtsplit plan translated/api.d.ts --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "human", "Output format (json, yaml, human)")
	rootCmd.AddCommand(planCmd)
}

// PlanResponseCLI is the output of plan
type PlanResponseCLI struct {
	Source  string         `json:"source" yaml:"source"`
	Dir     string         `json:"dir" yaml:"dir"`
	Pieces  []PlanPieceCLI `json:"pieces" yaml:"pieces"`
	Skipped []pieces.Skip  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// PlanPieceCLI is one planned piece; Path is relative to the piece directory
type PlanPieceCLI struct {
	Path       string   `json:"path" yaml:"path"`
	Symbol     string   `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Kind       string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Category   string   `json:"category,omitempty" yaml:"category,omitempty"`
	Start      int      `json:"start" yaml:"start"`
	End        int      `json:"end" yaml:"end"`
	Imports    []string `json:"imports,omitempty" yaml:"imports,omitempty"`
	Generated  bool     `json:"generated,omitempty" yaml:"generated,omitempty"`
	Package    bool     `json:"package,omitempty" yaml:"package,omitempty"`
	SideEffect bool     `json:"sideEffect,omitempty" yaml:"sideEffect,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.ws.Plan(ctx, a.abs(args[0]))
	if err != nil {
		return err
	}

	d := plan.Decomposition
	resp := &PlanResponseCLI{
		Source:  a.rel(plan.Source),
		Dir:     a.rel(d.Dir),
		Skipped: d.Skipped,
	}
	for _, p := range d.Pieces {
		rel, err := filepath.Rel(d.Dir, p.Path)
		if err != nil {
			rel = p.Path
		}
		pp := PlanPieceCLI{
			Path:       filepath.ToSlash(rel),
			Symbol:     p.Symbol,
			Kind:       p.Kind,
			Category:   string(p.Category),
			Start:      p.Start,
			End:        p.End,
			Generated:  p.Generated,
			Package:    p.Package,
			SideEffect: p.SideEffect,
		}
		for _, ref := range p.References {
			pp.Imports = append(pp.Imports, ref.Import())
		}
		resp.Pieces = append(resp.Pieces, pp)
	}

	output, err := FormatResponse(resp, OutputFormat(planFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}
