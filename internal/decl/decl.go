// Package decl defines the parsed-file model the splitter consumes: top-level
// declaration nodes with byte ranges, resolved symbols, documentation blocks and
// the file's own imports.
package decl

import "strings"

// Kind is the syntactic kind of a top-level statement.
type Kind int

const (
	KindOther Kind = iota
	KindEnum
	KindClass
	KindFunction
	KindInterface
	KindModule
	KindTypeAlias
	KindVariable
	KindReExport
	KindImport
	KindImportEquals
	KindExportAssignment
	KindEndOfFile
	KindComment
)

var kindNames = map[Kind]string{
	KindOther:            "other",
	KindEnum:             "enum",
	KindClass:            "class",
	KindFunction:         "function",
	KindInterface:        "interface",
	KindModule:           "module",
	KindTypeAlias:        "type_alias",
	KindVariable:         "variable",
	KindReExport:         "re_export",
	KindImport:           "import",
	KindImportEquals:     "import_equals",
	KindExportAssignment: "export_assignment",
	KindEndOfFile:        "end_of_file",
	KindComment:          "comment",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Category is the piece directory a declaration kind is filed under.
type Category string

const (
	CategoryEnums      Category = "enums"
	CategoryClasses    Category = "classes"
	CategoryFunctions  Category = "functions"
	CategoryInterfaces Category = "interfaces"
	CategoryModules    Category = "modules"
	CategoryTypes      Category = "types"
	CategoryVariables  Category = "variables"
)

// CategoryFor maps a kind to its category. Kinds without a category report false
// and are never emitted as pieces.
func CategoryFor(k Kind) (Category, bool) {
	switch k {
	case KindEnum:
		return CategoryEnums, true
	case KindClass:
		return CategoryClasses, true
	case KindFunction:
		return CategoryFunctions, true
	case KindInterface:
		return CategoryInterfaces, true
	case KindModule:
		return CategoryModules, true
	case KindTypeAlias, KindReExport:
		return CategoryTypes, true
	case KindVariable:
		return CategoryVariables, true
	default:
		return "", false
	}
}

// Skipped reports whether statements of this kind are silently left out of a
// decomposition (they stay in the source untouched and produce no diagnostic).
func (k Kind) Skipped() bool {
	switch k {
	case KindImport, KindImportEquals, KindEndOfFile, KindComment:
		return true
	}
	return false
}

// Declaration is one place a symbol is declared.
type Declaration struct {
	File  string
	Start int
	End   int
}

// Contains reports whether the declaration lies inside [start, end) of file.
func (d Declaration) Contains(file string, start, end int) bool {
	return d.File == file && d.Start >= start && d.End <= end
}

// Symbol is a named entity with every declaration that contributes to it, in
// source order.
type Symbol struct {
	Name  string
	Decls []Declaration
}

// First returns the first declaration of the symbol.
func (s *Symbol) First() (Declaration, bool) {
	if s == nil || len(s.Decls) == 0 {
		return Declaration{}, false
	}
	return s.Decls[0], true
}

// IsIdentifier reports whether the symbol name can appear in an import or export
// clause. Ambient external modules (declare module "x") are named by a string.
func (s *Symbol) IsIdentifier() bool {
	return s != nil && IsIdentifier(s.Name)
}

// IsIdentifier reports whether name is a plain identifier.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		case r > 0x7f:
		default:
			return false
		}
	}
	return true
}

// Comment is a documentation block (/** ... */).
type Comment struct {
	Start int
	End   int
	Text  string
}

// HasTag reports whether the comment carries the given tag, e.g. "@packageDocumentation".
func (c Comment) HasTag(tag string) bool {
	idx := strings.Index(c.Text, tag)
	if idx < 0 {
		return false
	}
	rest := c.Text[idx+len(tag):]
	return rest == "" || !isTagChar(rest[0])
}

func isTagChar(b byte) bool {
	return b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Node is one top-level statement.
type Node struct {
	Kind  Kind
	Start int
	End   int

	// Exported is true when the statement carries its own export modifier or is
	// itself an export declaration.
	Exported bool

	// Symbol is the declared symbol, nil for anonymous statements.
	Symbol *Symbol

	// Descendants are the symbols declared in the subtree, in pre-order.
	Descendants []*Symbol

	// References are the symbols identifier occurrences in the subtree resolve to,
	// in pre-order. The same symbol may appear more than once.
	References []*Symbol

	// Docs are the documentation blocks attached directly before the node.
	Docs []Comment
}

// Import is a top-level import statement of the file.
type Import struct {
	Start int
	End   int
	Text  string

	// Specifier is the module path without quotes; SpecifierStart and
	// SpecifierEnd locate it inside the file text. Zero when the import has no
	// module path (import x = N.y).
	Specifier      string
	SpecifierStart int
	SpecifierEnd   int

	// Names are the local bindings the import introduces.
	Names []string

	Namespace bool
	TypeOnly  bool
	Equals    bool

	// Resolved is the file the specifier resolves to, empty when unresolved.
	Resolved string
}

// Relative reports whether the specifier is a relative module path.
func (im Import) Relative() bool {
	return strings.HasPrefix(im.Specifier, "./") || strings.HasPrefix(im.Specifier, "../") ||
		im.Specifier == "." || im.Specifier == ".."
}

// File is a parsed declaration file.
type File struct {
	Path    string
	Text    string
	Nodes   []Node
	Imports []Import

	// Docs are all top-level documentation blocks in the file.
	Docs []Comment

	// Scope holds the symbols visible at module scope, keyed by name.
	Scope map[string]*Symbol
}

// Lookup returns the module-scope symbol with the given name.
func (f *File) Lookup(name string) *Symbol {
	if f.Scope == nil {
		return nil
	}
	return f.Scope[name]
}

// InScope reports whether sym is the module-scope symbol for its name.
func (f *File) InScope(sym *Symbol) bool {
	return sym != nil && f.Lookup(sym.Name) == sym
}

// PackageDoc returns the file-level documentation block: the first
// documentation block carrying tag.
func (f *File) PackageDoc(tag string) (Comment, bool) {
	if tag == "" {
		return Comment{}, false
	}
	for _, c := range f.Docs {
		if c.HasTag(tag) {
			return c, true
		}
	}
	return Comment{}, false
}

// Slice returns the file text in [start, end).
func (f *File) Slice(start, end int) string {
	return f.Text[start:end]
}
