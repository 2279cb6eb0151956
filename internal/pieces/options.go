// Package pieces splits a declaration file into one file per top-level
// declaration and folds edited pieces back into the original file.
//
// A split run derives a Decomposition from a parsed file: a generated index
// piece that re-exports everything, followed by content pieces ordered by
// descending start offset. Merge relies on that order to splice pieces back
// from the end of the file towards the start, so every recorded offset stays
// valid against the original text.
package pieces

// Default marker literals. A synthesized import or export line starts with one
// of these; merge drops exactly those lines.
const (
	DefaultImportMarker = "/*@piece-import*/"
	DefaultExportMarker = "/*@piece-export*/"
)

// Options control piece addressing and the textual piece format.
type Options struct {
	// TranslatedRoot is the managed root. Source files must live below it and
	// only symbols declared below it produce imports.
	TranslatedRoot string

	// PiecesRoot is where piece directories are created, mirroring the layout
	// of TranslatedRoot.
	PiecesRoot string

	// Extension is appended to every piece file name.
	Extension string

	// IndexName and PackageName are the base names of the generated index and
	// the file-level documentation piece.
	IndexName   string
	PackageName string

	// DocTag designates the file-level documentation block.
	DocTag string

	ImportMarker string
	ExportMarker string
}

// DefaultOptions returns options for the given roots with the standard file format.
func DefaultOptions(translatedRoot, piecesRoot string) Options {
	return Options{
		TranslatedRoot: translatedRoot,
		PiecesRoot:     piecesRoot,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Extension == "" {
		o.Extension = ".d.ts"
	}
	if o.IndexName == "" {
		o.IndexName = "index"
	}
	if o.PackageName == "" {
		o.PackageName = "package"
	}
	if o.DocTag == "" {
		o.DocTag = "@packageDocumentation"
	}
	if o.ImportMarker == "" {
		o.ImportMarker = DefaultImportMarker
	}
	if o.ExportMarker == "" {
		o.ExportMarker = DefaultExportMarker
	}
	return o
}
