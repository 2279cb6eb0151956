package pieces

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"dtsplit/internal/decl"
	"dtsplit/internal/slogutil"
)

// Piece is one emitted file. Content pieces cover [Start, End) of the source
// text; the generated index carries its own Content.
type Piece struct {
	Start      int              `json:"start" yaml:"start"`
	End        int              `json:"end" yaml:"end"`
	Path       string           `json:"path" yaml:"path"`
	Symbol     string           `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Kind       string           `json:"kind,omitempty" yaml:"kind,omitempty"`
	Category   decl.Category    `json:"category,omitempty" yaml:"category,omitempty"`
	ImportText string           `json:"importText,omitempty" yaml:"importText,omitempty"`
	ExportText string           `json:"exportText,omitempty" yaml:"exportText,omitempty"`
	References []CrossReference `json:"references,omitempty" yaml:"references,omitempty"`

	// Package marks the file-level documentation piece.
	Package bool `json:"package,omitempty" yaml:"package,omitempty"`

	// SideEffect marks pieces whose name cannot be re-exported, such as
	// ambient external modules and global augmentations. The index imports
	// them for their side effects only.
	SideEffect bool `json:"sideEffect,omitempty" yaml:"sideEffect,omitempty"`

	Generated bool   `json:"generated,omitempty" yaml:"generated,omitempty"`
	Content   string `json:"content,omitempty" yaml:"content,omitempty"`
}

// Render returns the file content of the piece.
func (p Piece) Render(text string) string {
	if p.Generated {
		return p.Content
	}
	var b strings.Builder
	if p.ImportText != "" {
		b.WriteString(p.ImportText)
		b.WriteString("\n\n")
	}
	b.WriteString(text[p.Start:p.End])
	b.WriteString("\n")
	if p.ExportText != "" {
		b.WriteString("\n")
		b.WriteString(p.ExportText)
		b.WriteString("\n")
	}
	return b.String()
}

// Skip is a declaration left out of the decomposition.
type Skip struct {
	Kind   string `json:"kind" yaml:"kind"`
	Start  int    `json:"start" yaml:"start"`
	Reason string `json:"reason" yaml:"reason"`
}

// Decomposition is the full output of splitting one file: the generated index
// first, then content pieces by descending start offset.
type Decomposition struct {
	Source  string  `json:"source" yaml:"source"`
	Dir     string  `json:"dir" yaml:"dir"`
	Pieces  []Piece `json:"pieces" yaml:"pieces"`
	Skipped []Skip  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Index returns the generated index piece.
func (d *Decomposition) Index() Piece {
	return d.Pieces[0]
}

// Content returns the content pieces in merge order.
func (d *Decomposition) Content() []Piece {
	return d.Pieces[1:]
}

// Paths returns every piece path, index first.
func (d *Decomposition) Paths() []string {
	out := make([]string, len(d.Pieces))
	for i, p := range d.Pieces {
		out[i] = p.Path
	}
	return out
}

// Decompose derives the pieces of f. It performs no file I/O. Declarations
// without a category or a name are skipped and logged; the only error is a
// file that does not live under the translated root.
func Decompose(f *decl.File, opts Options, logger *slog.Logger) (*Decomposition, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}

	dir, err := PieceDirectory(opts, f.Path)
	if err != nil {
		return nil, err
	}

	alloc := newPathAllocator()
	indexPath := filepath.Join(dir, opts.IndexName+opts.Extension)
	alloc.reserve(indexPath)

	d := &Decomposition{Source: f.Path, Dir: dir}
	var content []Piece

	pkgDoc, hasPkgDoc := f.PackageDoc(opts.DocTag)
	if hasPkgDoc {
		content = append(content, Piece{
			Start:   pkgDoc.Start,
			End:     pkgDoc.End,
			Path:    alloc.allocate(dir, opts.PackageName, opts.Extension),
			Package: true,
		})
	}

	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.Kind.Skipped() {
			continue
		}
		category, ok := decl.CategoryFor(n.Kind)
		if !ok {
			logger.Warn("Skipping declaration without category",
				"file", f.Path, "kind", n.Kind.String(), "offset", n.Start)
			d.Skipped = append(d.Skipped, Skip{Kind: n.Kind.String(), Start: n.Start, Reason: "no category"})
			continue
		}
		sym := ownSymbol(n)
		if sym == nil {
			logger.Warn("Skipping declaration without symbol",
				"file", f.Path, "kind", n.Kind.String(), "offset", n.Start)
			d.Skipped = append(d.Skipped, Skip{Kind: n.Kind.String(), Start: n.Start, Reason: "no symbol"})
			continue
		}

		path := alloc.allocate(filepath.Join(dir, string(category)), fileName(sym.Name), opts.Extension)
		start := leadingStart(n, pkgDoc, hasPkgDoc)
		refs := crossReferences(f, n, start, n.End, opts, logger)
		imports, err := importText(refs, path, opts)
		if err != nil {
			return nil, err
		}
		named := sym.IsIdentifier() && (n.Exported || f.InScope(sym))
		var export string
		if !n.Exported && named {
			export = exportText(sym.Name, opts)
		}

		content = append(content, Piece{
			Start:      start,
			End:        n.End,
			Path:       path,
			Symbol:     sym.Name,
			Kind:       n.Kind.String(),
			Category:   category,
			ImportText: imports,
			ExportText: export,
			References: refs,
			SideEffect: !named,
		})
	}

	index, err := buildIndex(f, dir, indexPath, content)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(content, func(i, j int) bool {
		return content[i].Start > content[j].Start
	})
	d.Pieces = append([]Piece{index}, content...)

	logger.Debug("Decomposed declaration file",
		"file", f.Path,
		"pieces", len(content),
		"skipped", len(d.Skipped),
	)
	return d, nil
}

// ownSymbol is the node's declared symbol, or else the first symbol declared in
// a pre-order walk of its subtree. The fallback is a naming heuristic for
// statements such as variable lists, not a statement of identity.
func ownSymbol(n *decl.Node) *decl.Symbol {
	if n.Symbol != nil {
		return n.Symbol
	}
	for _, sym := range n.Descendants {
		if sym != nil {
			return sym
		}
	}
	return nil
}

// leadingStart widens the node start over its attached documentation, stopping
// at the file-level documentation block.
func leadingStart(n *decl.Node, pkgDoc decl.Comment, hasPkgDoc bool) int {
	start := n.Start
	for i := len(n.Docs) - 1; i >= 0; i-- {
		doc := n.Docs[i]
		if hasPkgDoc && doc.Start == pkgDoc.Start && doc.End == pkgDoc.End {
			break
		}
		if doc.Start < start {
			start = doc.Start
		}
	}
	return start
}

// buildIndex renders the generated index: the file's own imports, rewritten
// against the piece directory and re-exported, then one line per piece in
// discovery order.
func buildIndex(f *decl.File, dir, indexPath string, content []Piece) (Piece, error) {
	var b strings.Builder
	for _, im := range f.Imports {
		text, err := rewriteImport(f, im, dir)
		if err != nil {
			return Piece{}, err
		}
		b.WriteString(text)
		b.WriteString("\n")
		if len(im.Names) > 0 {
			keyword := "export"
			if im.TypeOnly {
				keyword = "export type"
			}
			fmt.Fprintf(&b, "%s { %s };\n", keyword, strings.Join(im.Names, ", "))
		}
	}
	if len(f.Imports) > 0 && len(content) > 0 {
		b.WriteString("\n")
	}
	for _, p := range content {
		if p.Package {
			continue
		}
		module, err := RelativeModuleReference(dir, p.Path)
		if err != nil {
			return Piece{}, err
		}
		if p.SideEffect {
			fmt.Fprintf(&b, "import '%s';\n", module)
		} else {
			fmt.Fprintf(&b, "export { %s } from '%s';\n", p.Symbol, module)
		}
	}
	return Piece{
		Path:      indexPath,
		Generated: true,
		Content:   b.String(),
	}, nil
}

// rewriteImport re-targets a relative module specifier so it resolves from the
// piece directory. Everything else in the statement is kept verbatim.
func rewriteImport(f *decl.File, im decl.Import, dir string) (string, error) {
	text := f.Text[im.Start:im.End]
	if !im.Relative() || im.SpecifierEnd <= im.SpecifierStart {
		return text, nil
	}
	target := filepath.Join(filepath.Dir(f.Path), filepath.FromSlash(im.Specifier))
	module, err := RelativeModuleReference(dir, target)
	if err != nil {
		return "", err
	}
	return f.Text[im.Start:im.SpecifierStart] + module + f.Text[im.SpecifierEnd:im.End], nil
}
