package pieces

import (
	"path/filepath"
	"strings"
	"testing"

	"dtsplit/internal/decl"
)

var (
	testTranslated = filepath.FromSlash("/work/translated")
	testPieces     = filepath.FromSlash("/work/pieces")
)

func testOptions() Options {
	return DefaultOptions(testTranslated, testPieces)
}

// fixture builds a decl.File by locating snippets in the text.
type fixture struct {
	t    *testing.T
	file *decl.File
}

func newFixture(t *testing.T, rel string, lines ...string) *fixture {
	t.Helper()
	return &fixture{
		t: t,
		file: &decl.File{
			Path:  filepath.Join(testTranslated, filepath.FromSlash(rel)),
			Text:  strings.Join(lines, "\n"),
			Scope: make(map[string]*decl.Symbol),
		},
	}
}

func (fx *fixture) span(snippet string) (int, int) {
	fx.t.Helper()
	i := strings.Index(fx.file.Text, snippet)
	if i < 0 {
		fx.t.Fatalf("snippet %q not in fixture text", snippet)
	}
	return i, i + len(snippet)
}

// symbol declares name at snippet and registers it in module scope.
func (fx *fixture) symbol(name, snippet string) *decl.Symbol {
	fx.t.Helper()
	start, end := fx.span(snippet)
	sym := fx.file.Scope[name]
	if sym == nil {
		sym = &decl.Symbol{Name: name}
		fx.file.Scope[name] = sym
	}
	sym.Decls = append(sym.Decls, decl.Declaration{File: fx.file.Path, Start: start, End: end})
	return sym
}

func (fx *fixture) node(kind decl.Kind, snippet string, sym *decl.Symbol, exported bool, refs ...*decl.Symbol) *decl.Node {
	fx.t.Helper()
	start, end := fx.span(snippet)
	fx.file.Nodes = append(fx.file.Nodes, decl.Node{
		Kind:       kind,
		Start:      start,
		End:        end,
		Exported:   exported,
		Symbol:     sym,
		References: refs,
	})
	return &fx.file.Nodes[len(fx.file.Nodes)-1]
}

func (fx *fixture) doc(snippet string) decl.Comment {
	fx.t.Helper()
	start, end := fx.span(snippet)
	c := decl.Comment{Start: start, End: end, Text: snippet}
	fx.file.Docs = append(fx.file.Docs, c)
	return c
}

// widgetsFixture is a small declaration file exercising documentation,
// imports, exported and unexported declarations and cross references.
func widgetsFixture(t *testing.T) *fixture {
	fx := newFixture(t, "api/widgets.d.ts",
		"/** @packageDocumentation Widget API. */",
		"import { Base } from './base';",
		"",
		"/** A color. */",
		"export enum Color { Red, Green }",
		"",
		"interface Options { color: Color; }",
		"",
		"export declare class Widget extends Base { constructor(opts: Options); }",
		"",
		"declare function make(opts: Options): Widget;",
		"",
	)

	const importStmt = "import { Base } from './base';"
	base := fx.symbol("Base", importStmt)
	color := fx.symbol("Color", "export enum Color { Red, Green }")
	options := fx.symbol("Options", "interface Options { color: Color; }")
	widget := fx.symbol("Widget", "export declare class Widget extends Base { constructor(opts: Options); }")
	mk := fx.symbol("make", "declare function make(opts: Options): Widget;")

	fx.doc("/** @packageDocumentation Widget API. */")
	colorDoc := fx.doc("/** A color. */")

	start, end := fx.span(importStmt)
	specStart, specEnd := fx.span("./base")
	fx.file.Imports = []decl.Import{{
		Start:          start,
		End:            end,
		Text:           importStmt,
		Specifier:      "./base",
		SpecifierStart: specStart,
		SpecifierEnd:   specEnd,
		Names:          []string{"Base"},
	}}

	fx.node(decl.KindImport, importStmt, nil, false)
	fx.node(decl.KindEnum, "export enum Color { Red, Green }", color, true).Docs = []decl.Comment{colorDoc}
	fx.node(decl.KindInterface, "interface Options { color: Color; }", options, false, color)
	fx.node(decl.KindClass, "export declare class Widget extends Base { constructor(opts: Options); }", widget, true, base, options, options)
	fx.node(decl.KindFunction, "declare function make(opts: Options): Widget;", mk, false, options, widget)
	return fx
}

func widgetsDir() string {
	return filepath.Join(testPieces, "api", "widgets")
}
