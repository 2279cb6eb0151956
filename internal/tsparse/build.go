//go:build cgo

package tsparse

import (
	"log/slog"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"dtsplit/internal/decl"
)

// builder assembles one decl.File. It runs in two passes: the first binds every
// top-level name so the second can resolve references regardless of order.
type builder struct {
	path    string
	src     []byte
	globals map[string]*decl.Symbol
	logger  *slog.Logger

	locals  map[string]*decl.Symbol
	modules map[string]*decl.Symbol
}

func newBuilder(path string, src []byte, globals map[string]*decl.Symbol, logger *slog.Logger) *builder {
	return &builder{
		path:    path,
		src:     src,
		globals: globals,
		logger:  logger,
		locals:  make(map[string]*decl.Symbol),
		modules: make(map[string]*decl.Symbol),
	}
}

func (b *builder) build(root *sitter.Node) *decl.File {
	f := &decl.File{
		Path: b.path,
		Text: string(b.src),
	}

	children := namedChildren(root)
	statements := make([]statement, len(children))
	for i, n := range children {
		statements[i] = classify(n)
		for _, dn := range names(statements[i], b.src) {
			b.bind(dn)
		}
	}

	f.Scope = make(map[string]*decl.Symbol, len(b.globals)+len(b.locals))
	for name, sym := range b.globals {
		f.Scope[name] = sym
	}
	for name, sym := range b.locals {
		f.Scope[name] = sym
	}

	for _, st := range statements {
		switch st.kind {
		case decl.KindComment:
			if doc, ok := b.docComment(st.node); ok {
				f.Docs = append(f.Docs, doc)
			}
		case decl.KindImport, decl.KindImportEquals:
			if st.node.Type() == "import_statement" {
				f.Imports = append(f.Imports, b.importOf(st))
			}
		}
		f.Nodes = append(f.Nodes, b.node(st, f.Scope))
	}
	return f
}

func (b *builder) bind(dn declaredName) {
	sym := b.locals[dn.name]
	if sym == nil {
		sym = &decl.Symbol{Name: dn.name}
		b.locals[dn.name] = sym
	}
	sym.Decls = append(sym.Decls, decl.Declaration{File: b.path, Start: dn.start, End: dn.end})
}

// node converts a classified statement, resolving its references against the
// module scope.
func (b *builder) node(st statement, moduleScope map[string]*decl.Symbol) decl.Node {
	n := decl.Node{
		Kind:     st.kind,
		Start:    int(st.node.StartByte()),
		End:      int(st.node.EndByte()),
		Exported: st.exported,
		Docs:     b.leadingDocs(st.node),
	}
	if st.kind.Skipped() {
		return n
	}

	w := newWalker(b.path, b.src)
	n.Symbol = b.ownSymbol(st)
	switch st.kind {
	case decl.KindVariable:
		for _, dn := range names(st, b.src) {
			n.Descendants = append(n.Descendants, b.locals[dn.name])
		}
	case decl.KindReExport:
		n.Descendants = b.exportSpecifiers(st.node)
	}

	w.walk(st.inner, rootScope(moduleScope))
	n.References = w.refs
	n.Descendants = append(n.Descendants, w.declared...)
	return n
}

// ownSymbol returns the symbol a statement declares, nil when it declares
// none of its own (variable lists, re-export blocks).
func (b *builder) ownSymbol(st statement) *decl.Symbol {
	switch st.kind {
	case decl.KindClass, decl.KindFunction, decl.KindInterface, decl.KindEnum, decl.KindTypeAlias:
		if name := st.inner.ChildByFieldName("name"); name != nil {
			return b.locals[name.Content(b.src)]
		}
	case decl.KindModule:
		if st.global {
			return &decl.Symbol{
				Name:  "global",
				Decls: []decl.Declaration{{File: b.path, Start: int(st.inner.StartByte()), End: int(st.inner.EndByte())}},
			}
		}
		name, ok := moduleName(st.inner, b.src)
		if !ok {
			return nil
		}
		if decl.IsIdentifier(name) {
			return b.locals[name]
		}
		// Ambient external modules are named by a string and merge by that string.
		sym := b.modules[name]
		if sym == nil {
			sym = &decl.Symbol{Name: name}
			b.modules[name] = sym
		}
		sym.Decls = append(sym.Decls, decl.Declaration{File: b.path, Start: int(st.inner.StartByte()), End: int(st.inner.EndByte())})
		return sym
	}
	return nil
}

// exportSpecifiers returns symbols for the names an export block exports.
func (b *builder) exportSpecifiers(n *sitter.Node) []*decl.Symbol {
	var out []*decl.Symbol
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "export_clause":
			for _, spec := range namedChildren(c) {
				if spec.Type() != "export_specifier" {
					continue
				}
				name := spec.ChildByFieldName("alias")
				if name == nil {
					name = spec.ChildByFieldName("name")
				}
				if name != nil {
					out = append(out, localSymbol(b.path, name.Content(b.src), spec))
				}
			}
		case "namespace_export":
			if id := childOfType(c, "identifier"); id != nil {
				out = append(out, localSymbol(b.path, id.Content(b.src), c))
			}
		}
	}
	return out
}

// importOf describes a top-level import statement.
func (b *builder) importOf(st statement) decl.Import {
	n := st.node
	im := decl.Import{
		Start:    int(n.StartByte()),
		End:      int(n.EndByte()),
		Text:     n.Content(b.src),
		Names:    importBindings(n, b.src),
		TypeOnly: hasChild(n, "type"),
	}
	if clause := childOfType(n, "import_clause"); clause != nil {
		im.Namespace = childOfType(clause, "namespace_import") != nil
	}

	source := n.ChildByFieldName("source")
	if clause := childOfType(n, "import_require_clause"); clause != nil {
		im.Equals = true
		if id := childOfType(clause, "identifier"); id != nil {
			im.Names = []string{id.Content(b.src)}
		}
		if s := clause.ChildByFieldName("source"); s != nil {
			source = s
		} else if s := childOfType(clause, "string"); s != nil {
			source = s
		}
	}
	if source == nil {
		source = childOfType(n, "string")
	}
	if source != nil && source.EndByte()-source.StartByte() >= 2 {
		im.SpecifierStart = int(source.StartByte()) + 1
		im.SpecifierEnd = int(source.EndByte()) - 1
		im.Specifier = string(b.src[im.SpecifierStart:im.SpecifierEnd])
	}

	if im.Relative() {
		im.Resolved = ResolveSpecifier(b.path, im.Specifier)
		if im.Resolved == "" {
			b.logger.Debug("Unresolved relative import",
				"file", b.path,
				"specifier", im.Specifier,
				"offset", im.Start,
			)
		}
	}
	return im
}

// docComment reports whether a comment node is a documentation block.
func (b *builder) docComment(n *sitter.Node) (decl.Comment, bool) {
	text := n.Content(b.src)
	if !strings.HasPrefix(text, "/**") || text == "/**/" {
		return decl.Comment{}, false
	}
	return decl.Comment{Start: int(n.StartByte()), End: int(n.EndByte()), Text: text}, true
}

// leadingDocs returns the documentation blocks directly before n: the doc
// comments between n and the previous statement, leaving out a comment that
// shares a line with the end of the previous statement.
func (b *builder) leadingDocs(n *sitter.Node) []decl.Comment {
	var docs []decl.Comment
	prev := n.PrevNamedSibling()
	for ; prev != nil && prev.Type() == "comment"; prev = prev.PrevNamedSibling() {
		if doc, ok := b.docComment(prev); ok {
			docs = append(docs, doc)
		}
	}
	if prev != nil && len(docs) > 0 {
		first := docs[len(docs)-1]
		if !strings.Contains(string(b.src[prev.EndByte():first.Start]), "\n") {
			docs = docs[:len(docs)-1]
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Start < docs[j].Start })
	return docs
}
