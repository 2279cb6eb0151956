//go:build cgo

package tsparse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"dtsplit/internal/decl"
)

// meaning separates the value and type namespaces: a parameter named Foo does
// not hide an interface named Foo in a type position.
type meaning uint8

const (
	meaningValue meaning = 1 << iota
	meaningType
	meaningAll = meaningValue | meaningType
)

type binding struct {
	sym     *decl.Symbol
	meaning meaning
}

// scope is one lexical scope. The root scope is the module scope.
type scope struct {
	parent *scope
	names  map[string]binding
}

func rootScope(symbols map[string]*decl.Symbol) *scope {
	s := &scope{names: make(map[string]binding, len(symbols))}
	for name, sym := range symbols {
		s.names[name] = binding{sym: sym, meaning: meaningAll}
	}
	return s
}

func (s *scope) child() *scope {
	return &scope{parent: s, names: make(map[string]binding)}
}

func (s *scope) bind(sym *decl.Symbol, m meaning) {
	s.names[sym.Name] = binding{sym: sym, meaning: m}
}

func (s *scope) lookup(name string, want meaning) *decl.Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.names[name]; ok && b.meaning&want != 0 {
			return b.sym
		}
	}
	return nil
}

func localSymbol(path, name string, n *sitter.Node) *decl.Symbol {
	return &decl.Symbol{
		Name:  name,
		Decls: []decl.Declaration{{File: path, Start: int(n.StartByte()), End: int(n.EndByte())}},
	}
}

// bindingFields names the child of a node that introduces a name rather than
// using one.
var bindingFields = map[string]string{
	"class_declaration":              "name",
	"abstract_class_declaration":     "name",
	"class":                          "name",
	"interface_declaration":          "name",
	"enum_declaration":               "name",
	"type_alias_declaration":         "name",
	"function_declaration":           "name",
	"generator_function_declaration": "name",
	"function_signature":             "name",
	"module":                         "name",
	"internal_module":                "name",
	"variable_declarator":            "name",
	"type_parameter":                 "name",
	"required_parameter":             "pattern",
	"optional_parameter":             "pattern",
	"mapped_type_clause":             "name",
	"index_signature":                "name",
}

// walker collects the symbols identifier occurrences resolve to, and the
// symbols declared in nested namespace bodies.
type walker struct {
	path     string
	src      []byte
	refs     []*decl.Symbol
	declared []*decl.Symbol
}

func newWalker(path string, src []byte) *walker {
	return &walker{path: path, src: src}
}

func (w *walker) walk(n *sitter.Node, s *scope) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "comment", "string", "string_fragment", "number", "regex",
		"property_identifier", "private_property_identifier", "shorthand_property_identifier",
		"statement_identifier", "this", "super", "this_type", "predefined_type":
		return

	case "identifier", "shorthand_property_identifier_pattern":
		w.resolve(n, s, meaningValue)

	case "type_identifier":
		w.resolve(n, s, meaningType)

	case "nested_type_identifier":
		w.walkQualified(n, s, meaningType)

	case "nested_identifier", "member_expression":
		w.walkQualified(n, s, meaningValue)

	case "statement_block":
		w.walkBlock(n, s)

	case "index_signature":
		inner := s.child()
		if name := n.ChildByFieldName("name"); name != nil {
			inner.bind(localSymbol(w.path, name.Content(w.src), name), meaningValue)
		}
		if clause := childOfType(n, "mapped_type_clause"); clause != nil {
			if name := clause.ChildByFieldName("name"); name != nil {
				inner.bind(localSymbol(w.path, name.Content(w.src), name), meaningType)
			}
		}
		w.walkChildren(n, inner)

	case "conditional_type":
		w.walkConditional(n, s)

	case "infer_type":
		// The first type identifier is the binding; the rest is a constraint.
		for i, c := range namedChildren(n) {
			if i == 0 && c.Type() == "type_identifier" {
				continue
			}
			w.walk(c, s)
		}

	case "export_statement":
		// Specifiers of export { a } from 'x' name another module's exports.
		if n.ChildByFieldName("source") != nil || childOfType(n, "string") != nil {
			return
		}
		w.walkChildren(n, s)

	case "export_specifier":
		w.walk(n.ChildByFieldName("name"), s)

	default:
		w.walkChildren(n, s)
	}
}

func (w *walker) resolve(n *sitter.Node, s *scope, m meaning) {
	if sym := s.lookup(n.Content(w.src), m); sym != nil {
		w.refs = append(w.refs, sym)
	}
}

// walkQualified resolves only the first segment of A.B.C. Anything that is not
// a plain name (a call, an index access) is walked normally.
func (w *walker) walkQualified(n *sitter.Node, s *scope, m meaning) {
	head := leftmost(n)
	switch head.Type() {
	case "identifier", "type_identifier":
		w.resolve(head, s, m)
	default:
		w.walk(head, s)
	}
}

// walkChildren walks the named children of n, skipping the name n binds and
// opening a scope for its type parameters and parameters.
func (w *walker) walkChildren(n *sitter.Node, s *scope) {
	inner := w.enter(n, s)
	var skip *sitter.Node
	if field, ok := bindingFields[n.Type()]; ok {
		skip = n.ChildByFieldName(field)
	}
	for _, c := range namedChildren(n) {
		if sameNode(c, skip) {
			continue
		}
		w.walk(c, inner)
	}
}

// enter opens a scope holding the type parameters and parameters of a
// signature, or returns s when n declares neither.
func (w *walker) enter(n *sitter.Node, s *scope) *scope {
	typeParams := n.ChildByFieldName("type_parameters")
	params := n.ChildByFieldName("parameters")
	single := n.ChildByFieldName("parameter")
	if typeParams == nil && params == nil && single == nil {
		return s
	}

	inner := s.child()
	if typeParams != nil {
		for _, tp := range namedChildren(typeParams) {
			if name := tp.ChildByFieldName("name"); name != nil {
				inner.bind(localSymbol(w.path, name.Content(w.src), name), meaningType)
			}
		}
	}
	if params != nil {
		for _, p := range namedChildren(params) {
			w.bindPattern(p.ChildByFieldName("pattern"), inner)
		}
	}
	if single != nil {
		w.bindPattern(single, inner)
	}
	return inner
}

// bindPattern binds every identifier of a parameter pattern as a value.
func (w *walker) bindPattern(n *sitter.Node, s *scope) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		s.bind(localSymbol(w.path, n.Content(w.src), n), meaningValue)
	case "pair_pattern":
		w.bindPattern(n.ChildByFieldName("value"), s)
	case "assignment_pattern":
		w.bindPattern(n.ChildByFieldName("left"), s)
	case "object_pattern", "array_pattern", "rest_pattern", "object_assignment_pattern":
		for _, c := range namedChildren(n) {
			w.bindPattern(c, s)
		}
	}
}

// walkConditional makes infer bindings of the extends clause visible in the
// true branch only.
func (w *walker) walkConditional(n *sitter.Node, s *scope) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		w.walkChildren(n, s)
		return
	}
	inner := s.child()
	w.bindInfers(right, inner)

	w.walk(left, s)
	w.walk(right, inner)
	w.walk(n.ChildByFieldName("consequence"), inner)
	w.walk(n.ChildByFieldName("alternative"), s)
}

func (w *walker) bindInfers(n *sitter.Node, s *scope) {
	switch n.Type() {
	case "infer_type":
		if name := n.NamedChild(0); name != nil && name.Type() == "type_identifier" {
			s.bind(localSymbol(w.path, name.Content(w.src), name), meaningType)
		}
		return
	case "conditional_type":
		// Nested conditionals own their infer bindings.
		return
	}
	for _, c := range namedChildren(n) {
		w.bindInfers(c, s)
	}
}

// walkBlock walks a namespace or global body. Declarations in the body are
// hoisted so they shadow module-scope names throughout the block.
func (w *walker) walkBlock(n *sitter.Node, s *scope) {
	inner := s.child()
	for _, stmt := range namedChildren(n) {
		st := classify(stmt)
		if st.kind == decl.KindImport {
			continue
		}
		for _, dn := range names(st, w.src) {
			sym := &decl.Symbol{
				Name:  dn.name,
				Decls: []decl.Declaration{{File: w.path, Start: dn.start, End: dn.end}},
			}
			if prev := inner.names[dn.name]; prev.sym != nil {
				prev.sym.Decls = append(prev.sym.Decls, sym.Decls...)
				continue
			}
			inner.bind(sym, meaningAll)
			w.declared = append(w.declared, sym)
		}
	}
	for _, stmt := range namedChildren(n) {
		w.walk(stmt, inner)
	}
}
