package pieces

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dtsplit/internal/decl"
	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/slogutil"
)

func TestDecompose_Widgets(t *testing.T) {
	fx := widgetsFixture(t)
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	dir := widgetsDir()
	wantPaths := []string{
		filepath.Join(dir, "index.d.ts"),
		filepath.Join(dir, "functions", "make.d.ts"),
		filepath.Join(dir, "classes", "Widget.d.ts"),
		filepath.Join(dir, "interfaces", "Options.d.ts"),
		filepath.Join(dir, "enums", "Color.d.ts"),
		filepath.Join(dir, "package.d.ts"),
	}
	if diff := cmp.Diff(wantPaths, d.Paths()); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if d.Dir != dir {
		t.Errorf("Dir = %q, want %q", d.Dir, dir)
	}

	content := d.Content()
	for i := 1; i < len(content); i++ {
		if content[i-1].Start <= content[i].Start {
			t.Errorf("content pieces not in descending start order at %d", i)
		}
	}

	if !d.Index().Generated {
		t.Error("first piece is not the generated index")
	}
}

func TestDecompose_Index(t *testing.T) {
	fx := widgetsFixture(t)
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"import { Base } from '../../../translated/api/base';",
		"export { Base };",
		"",
		"export { Color } from './enums/Color';",
		"export { Options } from './interfaces/Options';",
		"export { Widget } from './classes/Widget';",
		"export { make } from './functions/make';",
		"",
	}, "\n")
	if diff := cmp.Diff(want, d.Index().Content); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

func TestDecompose_TypeOnlyImport(t *testing.T) {
	fx := newFixture(t, "a.d.ts",
		"import type { Shape, Size } from 'geometry';",
		"export interface Box { s: Shape; }",
	)
	stmt := "import type { Shape, Size } from 'geometry';"
	start, end := fx.span(stmt)
	specStart, specEnd := fx.span("geometry")
	fx.file.Imports = []decl.Import{{
		Start: start, End: end, Text: stmt,
		Specifier: "geometry", SpecifierStart: specStart, SpecifierEnd: specEnd,
		Names: []string{"Shape", "Size"}, TypeOnly: true,
	}}
	box := fx.symbol("Box", "export interface Box { s: Shape; }")
	fx.node(decl.KindInterface, "export interface Box { s: Shape; }", box, true)

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "import type { Shape, Size } from 'geometry';\n" +
		"export type { Shape, Size };\n" +
		"\n" +
		"export { Box } from './interfaces/Box';\n"
	if diff := cmp.Diff(want, d.Index().Content); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

func TestDecompose_PieceText(t *testing.T) {
	fx := widgetsFixture(t)
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	byPath := make(map[string]Piece)
	for _, p := range d.Pieces {
		byPath[p.Path] = p
	}
	dir := widgetsDir()

	tests := []struct {
		path string
		want string
	}{
		{
			path: filepath.Join(dir, "interfaces", "Options.d.ts"),
			want: "/*@piece-import*/ import { Color } from '../index';\n" +
				"\n" +
				"interface Options { color: Color; }\n" +
				"\n" +
				"/*@piece-export*/ export { Options };\n",
		},
		{
			path: filepath.Join(dir, "classes", "Widget.d.ts"),
			want: "/*@piece-import*/ import { Base, Options } from '../index';\n" +
				"\n" +
				"export declare class Widget extends Base { constructor(opts: Options); }\n",
		},
		{
			path: filepath.Join(dir, "functions", "make.d.ts"),
			want: "/*@piece-import*/ import { Options, Widget } from '../index';\n" +
				"\n" +
				"declare function make(opts: Options): Widget;\n" +
				"\n" +
				"/*@piece-export*/ export { make };\n",
		},
		{
			path: filepath.Join(dir, "enums", "Color.d.ts"),
			want: "/** A color. */\nexport enum Color { Red, Green }\n",
		},
		{
			path: filepath.Join(dir, "package.d.ts"),
			want: "/** @packageDocumentation Widget API. */\n",
		},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			p, ok := byPath[tt.path]
			if !ok {
				t.Fatalf("no piece at %s", tt.path)
			}
			if diff := cmp.Diff(tt.want, p.Render(fx.file.Text)); diff != "" {
				t.Errorf("piece mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecompose_Idempotent(t *testing.T) {
	first, err := Decompose(widgetsFixture(t).file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decompose(widgetsFixture(t).file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("decompositions differ (-first +second):\n%s", diff)
	}
}

func TestDecompose_Collisions(t *testing.T) {
	fx := newFixture(t, "merge.d.ts",
		"interface Foo { a: 1 }",
		"interface foo { b: 2 }",
		"interface Foo { c: 3 }",
	)
	foo := fx.symbol("Foo", "interface Foo { a: 1 }")
	fx.symbol("Foo", "interface Foo { c: 3 }")
	lower := fx.symbol("foo", "interface foo { b: 2 }")
	fx.node(decl.KindInterface, "interface Foo { a: 1 }", foo, true)
	fx.node(decl.KindInterface, "interface foo { b: 2 }", lower, true)
	fx.node(decl.KindInterface, "interface Foo { c: 3 }", foo, true)

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(testPieces, "merge", "interfaces")
	got := make(map[int]string)
	for _, p := range d.Content() {
		got[p.Start] = p.Path
	}
	for snippet, want := range map[string]string{
		"interface Foo { a: 1 }": filepath.Join(dir, "Foo.d.ts"),
		"interface foo { b: 2 }": filepath.Join(dir, "foo-1.d.ts"),
		"interface Foo { c: 3 }": filepath.Join(dir, "Foo-2.d.ts"),
	} {
		start, _ := fx.span(snippet)
		if got[start] != want {
			t.Errorf("%s -> %q, want %q", snippet, got[start], want)
		}
	}
}

func TestDecompose_CrossReferences(t *testing.T) {
	fx := newFixture(t, "refs.d.ts",
		"interface Self { next: Self; outer: Outer; ext: Ext; t: T; again: Outer; }",
		"interface Outer {}",
	)
	self := fx.symbol("Self", "interface Self { next: Self; outer: Outer; ext: Ext; t: T; again: Outer; }")
	outer := fx.symbol("Outer", "interface Outer {}")
	ext := &decl.Symbol{Name: "Ext", Decls: []decl.Declaration{{File: filepath.FromSlash("/work/lib/lib.d.ts")}}}
	fx.file.Scope["Ext"] = ext
	typeParam := &decl.Symbol{Name: "T", Decls: []decl.Declaration{{File: fx.file.Path}}}

	var buf bytes.Buffer
	logger := slogutil.NewLogger(&buf, slog.LevelDebug)

	fx.node(decl.KindInterface, "interface Self { next: Self; outer: Outer; ext: Ext; t: T; again: Outer; }", self, false,
		self, outer, ext, typeParam, outer)
	fx.node(decl.KindInterface, "interface Outer {}", outer, false)

	d, err := Decompose(fx.file, testOptions(), logger)
	if err != nil {
		t.Fatal(err)
	}

	var selfPiece Piece
	for _, p := range d.Content() {
		if p.Symbol == "Self" {
			selfPiece = p
		}
	}
	want := []CrossReference{{FromName: "Outer", ToName: "Outer", SourceFile: fx.file.Path}}
	if diff := cmp.Diff(want, selfPiece.References); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
	if got := strings.Count(selfPiece.ImportText, "Outer"); got != 1 {
		t.Errorf("Outer imported %d times, want 1: %q", got, selfPiece.ImportText)
	}
	if !strings.Contains(buf.String(), "Dropping reference declared outside translated root") {
		t.Errorf("expected debug record for Ext, log:\n%s", buf.String())
	}
}

func TestDecompose_ReferenceToMergedDeclarationInRange(t *testing.T) {
	fx := newFixture(t, "ns.d.ts",
		"interface Opts { a: 1 }",
		"declare namespace NS { interface Opts { b: 2 } function f(o: Opts): void; }",
	)
	opts := fx.symbol("Opts", "interface Opts { a: 1 }")
	fx.symbol("Opts", "interface Opts { b: 2 }")
	ns := fx.symbol("NS", "declare namespace NS { interface Opts { b: 2 } function f(o: Opts): void; }")
	fx.node(decl.KindInterface, "interface Opts { a: 1 }", opts, true)
	fx.node(decl.KindModule, "declare namespace NS { interface Opts { b: 2 } function f(o: Opts): void; }", ns, false, opts)

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range d.Content() {
		if p.Symbol == "NS" && p.ImportText != "" {
			t.Errorf("NS piece imports a symbol it declares itself: %q", p.ImportText)
		}
	}
}

func TestCrossReference_Import(t *testing.T) {
	if got := (CrossReference{FromName: "A", ToName: "A"}).Import(); got != "A" {
		t.Errorf("plain import = %q", got)
	}
	if got := (CrossReference{FromName: "A", ToName: "B"}).Import(); got != "A as B" {
		t.Errorf("aliased import = %q", got)
	}
}

func TestImportText_GroupsBySourceFile(t *testing.T) {
	opts := testOptions()
	a := filepath.Join(testTranslated, "a.d.ts")
	b := filepath.Join(testTranslated, "lib", "b.d.ts")
	refs := []CrossReference{
		{FromName: "Alpha", ToName: "Alpha", SourceFile: a},
		{FromName: "Beta", ToName: "Beta", SourceFile: b},
		{FromName: "Gamma", ToName: "G", SourceFile: a},
	}
	piece := filepath.Join(testPieces, "a", "types", "X.d.ts")

	got, err := importText(refs, piece, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := "/*@piece-import*/ import { Beta } from '../../lib/b/index';\n" +
		"/*@piece-import*/ import { Alpha, Gamma as G } from '../index';"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("import text mismatch (-want +got):\n%s", diff)
	}
}

func TestDecompose_SkipsAndAmbientModules(t *testing.T) {
	fx := newFixture(t, "ambient.d.ts",
		`declare module "foo/bar" { export const x: number; }`,
		"export = Foo;",
		"declare const a: number, b: string;",
		"declare const [q]: number[];",
		"",
	)
	mod := &decl.Symbol{Name: `"foo/bar"`}
	a := fx.symbol("a", "a: number")
	b := fx.symbol("b", "b: string")

	fx.node(decl.KindModule, `declare module "foo/bar" { export const x: number; }`, mod, false)
	fx.node(decl.KindExportAssignment, "export = Foo;", nil, false)
	fx.node(decl.KindVariable, "declare const a: number, b: string;", nil, false).Descendants = []*decl.Symbol{a, b}
	fx.node(decl.KindVariable, "declare const [q]: number[];", nil, false)
	fx.file.Nodes = append(fx.file.Nodes, decl.Node{Kind: decl.KindEndOfFile, Start: len(fx.file.Text), End: len(fx.file.Text)})

	var buf bytes.Buffer
	d, err := Decompose(fx.file, testOptions(), slogutil.NewLogger(&buf, slog.LevelInfo))
	if err != nil {
		t.Fatal(err)
	}

	wantIndex := "import './modules/foo_bar';\n" +
		"export { a } from './variables/a';\n"
	if diff := cmp.Diff(wantIndex, d.Index().Content); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}

	exportStart, _ := fx.span("export = Foo;")
	patternStart, _ := fx.span("declare const [q]: number[];")
	wantSkipped := []Skip{
		{Kind: "export_assignment", Start: exportStart, Reason: "no category"},
		{Kind: "variable", Start: patternStart, Reason: "no symbol"},
	}
	if diff := cmp.Diff(wantSkipped, d.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "Skipping declaration without category") ||
		!strings.Contains(buf.String(), "Skipping declaration without symbol") {
		t.Errorf("expected skip warnings, log:\n%s", buf.String())
	}

	for _, p := range d.Content() {
		switch p.Symbol {
		case `"foo/bar"`:
			if p.ExportText != "" {
				t.Errorf("ambient module piece has export line %q", p.ExportText)
			}
		case "a":
			if p.ExportText != "/*@piece-export*/ export { a };" {
				t.Errorf("variable export line = %q", p.ExportText)
			}
		}
	}
}

func TestDecompose_EmptyFile(t *testing.T) {
	fx := newFixture(t, "empty.d.ts", "")
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Pieces) != 1 || !d.Index().Generated || d.Index().Content != "" {
		t.Errorf("empty file decomposition = %+v", d.Pieces)
	}
}

func TestDecompose_PackageDocNotClaimedTwice(t *testing.T) {
	fx := newFixture(t, "doc.d.ts",
		"/** @packageDocumentation */",
		"/** Thing. */",
		"export interface Thing {}",
	)
	pkg := fx.doc("/** @packageDocumentation */")
	own := fx.doc("/** Thing. */")
	thing := fx.symbol("Thing", "export interface Thing {}")
	fx.node(decl.KindInterface, "export interface Thing {}", thing, true).Docs = []decl.Comment{pkg, own}

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range d.Content() {
		if p.Symbol == "Thing" && p.Start != own.Start {
			t.Errorf("Thing starts at %d, want %d", p.Start, own.Start)
		}
	}
	if got := len(d.Content()); got != 2 {
		t.Errorf("got %d content pieces, want 2", got)
	}
}

func TestDecompose_OutsideRoot(t *testing.T) {
	f := &decl.File{Path: filepath.FromSlash("/elsewhere/x.d.ts")}
	_, err := Decompose(f, testOptions(), nil)
	if !dtserrors.Is(err, dtserrors.OutsideRoot) {
		t.Errorf("error = %v, want OUTSIDE_ROOT", err)
	}
}

func TestDecompose_GlobalAugmentation(t *testing.T) {
	fx := newFixture(t, "globals.d.ts",
		"declare global { interface Window { app: App; } }",
		"export interface App {}",
	)
	global := &decl.Symbol{Name: "global"}
	app := fx.symbol("App", "export interface App {}")
	fx.node(decl.KindModule, "declare global { interface Window { app: App; } }", global, false, app)
	fx.node(decl.KindInterface, "export interface App {}", app, true)

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "import './modules/global';\n" +
		"export { App } from './interfaces/App';\n"
	if diff := cmp.Diff(want, d.Index().Content); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
	for _, p := range d.Content() {
		if p.Symbol == "global" {
			if !p.SideEffect || p.ExportText != "" {
				t.Errorf("global piece = %+v, want side-effect piece without export line", p)
			}
			if p.ImportText != "/*@piece-import*/ import { App } from '../index';" {
				t.Errorf("global piece imports = %q", p.ImportText)
			}
		}
	}
}

func TestDecompose_ReExportBlock(t *testing.T) {
	fx := newFixture(t, "reexports.d.ts",
		"export { Foo as Bar } from './foo';",
	)
	// Export specifiers bind names local to the statement, not module scope.
	bar := &decl.Symbol{Name: "Bar"}
	fx.node(decl.KindReExport, "export { Foo as Bar } from './foo';", nil, true).Descendants = []*decl.Symbol{bar}

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "export { Bar } from './types/Bar';\n"
	if diff := cmp.Diff(want, d.Index().Content); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

func TestDecompose_AliasedImportBinding(t *testing.T) {
	fx := newFixture(t, "a.d.ts",
		"import { Base as Root } from './base';",
		"export interface Box extends Root {}",
	)
	stmt := "import { Base as Root } from './base';"
	start, end := fx.span(stmt)
	specStart, specEnd := fx.span("./base")
	fx.file.Imports = []decl.Import{{
		Start: start, End: end, Text: stmt,
		Specifier: "./base", SpecifierStart: specStart, SpecifierEnd: specEnd,
		Names: []string{"Root"},
	}}
	root := fx.symbol("Root", "Base as Root")
	box := fx.symbol("Box", "export interface Box extends Root {}")
	fx.node(decl.KindInterface, "export interface Box extends Root {}", box, true, root)

	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	index := d.Index().Content
	for _, line := range []string{
		"import { Base as Root } from '../../translated/base';\n",
		"export { Root };\n",
	} {
		if !strings.Contains(index, line) {
			t.Errorf("index is missing %q:\n%s", line, index)
		}
	}

	boxPiece := d.Content()[0]
	want := []CrossReference{{FromName: "Root", ToName: "Root", SourceFile: fx.file.Path}}
	if diff := cmp.Diff(want, boxPiece.References); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
	if got, want := boxPiece.ImportText, "/*@piece-import*/ import { Root } from '../index';"; got != want {
		t.Errorf("ImportText = %q, want %q", got, want)
	}
}
