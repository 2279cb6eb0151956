package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data) + "\n", nil
}

func formatYAML(resp interface{}) (string, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(resp); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return b.String(), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *PlanResponseCLI:
		return formatPlanHuman(v), nil
	case *StatusResponseCLI:
		return formatStatusHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatPlanHuman(resp *PlanResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s\n", resp.Source, resp.Dir)
	for _, p := range resp.Pieces {
		switch {
		case p.Generated:
			fmt.Fprintf(&b, "  %s (generated)\n", p.Path)
		case p.Package:
			fmt.Fprintf(&b, "  %s (file documentation) [%d,%d)\n", p.Path, p.Start, p.End)
		default:
			fmt.Fprintf(&b, "  %s  %s %s [%d,%d)", p.Path, p.Kind, p.Symbol, p.Start, p.End)
			if len(p.Imports) > 0 {
				fmt.Fprintf(&b, " imports %s", strings.Join(p.Imports, ", "))
			}
			if p.SideEffect {
				b.WriteString(" (side effect)")
			}
			b.WriteString("\n")
		}
	}
	for _, s := range resp.Skipped {
		fmt.Fprintf(&b, "  skipped %s at %d (%s)\n", s.Kind, s.Start, s.Reason)
	}
	return b.String()
}

func formatStatusHuman(resp *StatusResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (run %s)\n", resp.Source, shortID(resp.RunID))
	if resp.SourceChanged {
		b.WriteString("  source changed since split\n")
	} else {
		b.WriteString("  source unchanged since split\n")
	}
	for _, p := range resp.Pieces {
		if p.State == "unchanged" {
			continue
		}
		fmt.Fprintf(&b, "  %-9s %s\n", p.State, p.Path)
	}
	fmt.Fprintf(&b, "  %d unchanged, %d edited, %d missing\n", resp.Unchanged, resp.Edited, resp.Missing)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
