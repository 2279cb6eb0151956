//go:build cgo

package tsparse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"dtsplit/internal/decl"
)

// statement is a classified top-level (or namespace-level) statement.
type statement struct {
	// node is the full statement, inner the declaration once export and
	// declare wrappers are removed.
	node  *sitter.Node
	inner *sitter.Node

	kind     decl.Kind
	exported bool

	// global marks a declare global block.
	global bool
}

var declarationKinds = map[string]decl.Kind{
	"class_declaration":              decl.KindClass,
	"abstract_class_declaration":     decl.KindClass,
	"class":                          decl.KindClass,
	"function_declaration":           decl.KindFunction,
	"generator_function_declaration": decl.KindFunction,
	"function_signature":             decl.KindFunction,
	"interface_declaration":          decl.KindInterface,
	"enum_declaration":               decl.KindEnum,
	"type_alias_declaration":         decl.KindTypeAlias,
	"lexical_declaration":            decl.KindVariable,
	"variable_declaration":           decl.KindVariable,
	"module":                         decl.KindModule,
	"internal_module":                decl.KindModule,
	"import_alias":                   decl.KindImportEquals,
	"comment":                        decl.KindComment,
	"hash_bang_line":                 decl.KindComment,
}

func classify(n *sitter.Node) statement {
	st := statement{node: n}
	st.inner, st.kind, st.exported, st.global = unwrap(n)
	return st
}

func unwrap(n *sitter.Node) (inner *sitter.Node, kind decl.Kind, exported, global bool) {
	switch n.Type() {
	case "export_statement":
		if d := n.ChildByFieldName("declaration"); d != nil {
			inner, kind, _, global = unwrap(d)
			return inner, kind, true, global
		}
		switch {
		case hasChild(n, "export_clause", "namespace_export", "*"):
			return n, decl.KindReExport, true, false
		case hasChild(n, "=", "default"):
			return n, decl.KindExportAssignment, true, false
		}
		// export as namespace X;
		return n, decl.KindOther, true, false

	case "ambient_declaration":
		if hasChild(n, "global") {
			return n, decl.KindModule, false, true
		}
		for _, c := range namedChildren(n) {
			if c.Type() != "comment" {
				return unwrap(c)
			}
		}
		return n, decl.KindOther, false, false

	case "expression_statement":
		// namespace N {} parses as an expression statement.
		if c := n.NamedChild(0); c != nil && c.Type() == "internal_module" {
			return c, decl.KindModule, false, false
		}
		return n, decl.KindOther, false, false

	case "import_statement":
		if hasChild(n, "import_require_clause") {
			return n, decl.KindImportEquals, false, false
		}
		return n, decl.KindImport, false, false
	}

	if k, ok := declarationKinds[n.Type()]; ok {
		return n, k, false, false
	}
	return n, decl.KindOther, false, false
}

// declaredName is a name a statement binds, with the range of its declaration.
type declaredName struct {
	name  string
	start int
	end   int
}

func newDeclaredName(name string, n *sitter.Node) declaredName {
	return declaredName{name: name, start: int(n.StartByte()), end: int(n.EndByte())}
}

// names returns the identifiers a statement binds in its enclosing scope.
// Ambient external modules and global blocks bind nothing.
func names(st statement, src []byte) []declaredName {
	switch st.kind {
	case decl.KindVariable:
		var out []declaredName
		for _, c := range namedChildren(st.inner) {
			if c.Type() != "variable_declarator" {
				continue
			}
			if name := c.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				out = append(out, newDeclaredName(name.Content(src), c))
			}
		}
		return out

	case decl.KindClass, decl.KindFunction, decl.KindInterface, decl.KindEnum, decl.KindTypeAlias:
		if name := st.inner.ChildByFieldName("name"); name != nil {
			return []declaredName{newDeclaredName(name.Content(src), st.inner)}
		}

	case decl.KindModule:
		if st.global {
			return nil
		}
		if name, ok := moduleName(st.inner, src); ok && decl.IsIdentifier(name) {
			return []declaredName{newDeclaredName(name, st.inner)}
		}

	case decl.KindImport:
		var out []declaredName
		for _, name := range importBindings(st.node, src) {
			out = append(out, newDeclaredName(name, st.node))
		}
		return out

	case decl.KindImportEquals:
		if id := importEqualsName(st.inner); id != nil {
			return []declaredName{newDeclaredName(id.Content(src), st.node)}
		}
	}
	return nil
}

// moduleName returns the name of a module or namespace declaration. Dotted
// names (namespace A.B.C) bind their first segment; string names keep their
// quotes.
func moduleName(n *sitter.Node, src []byte) (string, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return "", false
	}
	if name.Type() == "nested_identifier" {
		return leftmost(name).Content(src), true
	}
	return name.Content(src), true
}

// importBindings returns the local names an import statement introduces.
func importBindings(n *sitter.Node, src []byte) []string {
	clause := childOfType(n, "import_clause")
	if clause == nil {
		return nil
	}
	var out []string
	for _, c := range namedChildren(clause) {
		switch c.Type() {
		case "identifier":
			out = append(out, c.Content(src))
		case "namespace_import":
			if id := childOfType(c, "identifier"); id != nil {
				out = append(out, id.Content(src))
			}
		case "named_imports":
			for _, spec := range namedChildren(c) {
				if spec.Type() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("alias")
				if name == nil {
					name = spec.ChildByFieldName("name")
				}
				if name != nil {
					out = append(out, name.Content(src))
				}
			}
		}
	}
	return out
}

// importEqualsName returns the identifier bound by import x = require('y') or
// import x = N.y.
func importEqualsName(n *sitter.Node) *sitter.Node {
	if clause := childOfType(n, "import_require_clause"); clause != nil {
		return childOfType(clause, "identifier")
	}
	return childOfType(n, "identifier")
}

// leftmost descends qualified names (A.B.C) to their first segment.
func leftmost(n *sitter.Node) *sitter.Node {
	for n != nil {
		var next *sitter.Node
		switch n.Type() {
		case "nested_type_identifier":
			next = n.ChildByFieldName("module")
		case "member_expression":
			next = n.ChildByFieldName("object")
		case "nested_identifier":
			next = n.ChildByFieldName("object")
			if next == nil {
				next = n.NamedChild(0)
			}
		default:
			return n
		}
		if next == nil {
			return n
		}
		n = next
	}
	return nil
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// hasChild reports whether n has a direct child, named or not, of one of the types.
func hasChild(n *sitter.Node, types ...string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		for _, t := range types {
			if c.Type() == t {
				return true
			}
		}
	}
	return false
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, c := range namedChildren(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
