package pieces

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/afero"

	dtserrors "dtsplit/internal/errors"
)

// MergeResult is the outcome of folding pieces back into a source text.
type MergeResult struct {
	// Text is the merged text, or the input text when nothing was applied.
	Text string

	// Applied counts the pieces read back and substituted.
	Applied int

	// Missing lists content pieces with no file on disk; their ranges are
	// left as they were.
	Missing []string

	// Changed reports whether Text differs from the input text.
	Changed bool
}

// Merge reads the content pieces of d from fsys and splices them into text,
// which must be the text d was derived from. Pieces are applied in the order d
// holds them, from the end of the text towards the start, so each recorded
// range is still valid when it is replaced. The generated index is never read.
func Merge(fsys afero.Fs, d *Decomposition, text string, opts Options) (*MergeResult, error) {
	opts = opts.withDefaults()
	result := &MergeResult{Text: text}

	out := text
	limit := len(text)
	for _, p := range d.Pieces {
		if p.Generated {
			continue
		}
		if p.Start < 0 || p.Start > p.End || p.End > limit {
			return nil, dtserrors.Newf(dtserrors.InternalError,
				"piece range [%d, %d) out of order or outside the text", p.Start, p.End).WithPath(p.Path)
		}
		limit = p.Start

		data, err := afero.ReadFile(fsys, p.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				result.Missing = append(result.Missing, p.Path)
				continue
			}
			return nil, dtserrors.New(dtserrors.PieceReadFailed, "reading piece", err).WithPath(p.Path)
		}

		out = out[:p.Start] + StripMarkers(string(data), opts) + out[p.End:]
		result.Applied++
	}

	if result.Applied > 0 {
		result.Text = out
		result.Changed = out != text
	}
	return result, nil
}

// StripMarkers drops every line starting with the import or export marker and
// trims the surrounding whitespace. Lines are matched by prefix only; content is
// never re-parsed.
func StripMarkers(content string, opts Options) string {
	opts = opts.withDefaults()
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, opts.ImportMarker) || strings.HasPrefix(line, opts.ExportMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
