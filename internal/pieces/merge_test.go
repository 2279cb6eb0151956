package pieces

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	dtserrors "dtsplit/internal/errors"
)

// failingFs fails directory creation or opening for one path.
type failingFs struct {
	afero.Fs
	failMkdir string
	failOpen  string
}

func (f failingFs) MkdirAll(path string, perm os.FileMode) error {
	if path == f.failMkdir {
		return &os.PathError{Op: "mkdir", Path: path, Err: errors.New("permission denied")}
	}
	return f.Fs.MkdirAll(path, perm)
}

func (f failingFs) Open(name string) (afero.File, error) {
	if name == f.failOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: errors.New("input/output error")}
	}
	return f.Fs.Open(name)
}

func splitWidgets(t *testing.T, fsys afero.Fs) (*Decomposition, string) {
	t.Helper()
	fx := widgetsFixture(t)
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Write(fsys, d, fx.file.Text); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return d, fx.file.Text
}

func TestMerge_RoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	d, text := splitWidgets(t, fsys)

	res, err := Merge(fsys, d, text, testOptions())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if diff := cmp.Diff(text, res.Text); diff != "" {
		t.Errorf("round trip changed the text (-want +got):\n%s", diff)
	}
	if res.Applied != len(d.Content()) {
		t.Errorf("Applied = %d, want %d", res.Applied, len(d.Content()))
	}
	if res.Changed {
		t.Error("Changed = true for an unedited round trip")
	}
	if len(res.Missing) != 0 {
		t.Errorf("Missing = %v", res.Missing)
	}
}

func TestWrite_Idempotent(t *testing.T) {
	first := afero.NewMemMapFs()
	second := afero.NewMemMapFs()
	d1, _ := splitWidgets(t, first)
	d2, _ := splitWidgets(t, second)

	if diff := cmp.Diff(d1.Paths(), d2.Paths()); diff != "" {
		t.Fatalf("paths differ (-first +second):\n%s", diff)
	}
	for _, path := range d1.Paths() {
		a, err := afero.ReadFile(first, path)
		if err != nil {
			t.Fatal(err)
		}
		b, err := afero.ReadFile(second, path)
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Errorf("%s differs between runs", path)
		}
	}
}

func TestMerge_PartialEdit(t *testing.T) {
	fsys := afero.NewMemMapFs()
	d, text := splitWidgets(t, fsys)
	dir := widgetsDir()

	options := filepath.Join(dir, "interfaces", "Options.d.ts")
	data, err := afero.ReadFile(fsys, options)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "color: Color;", "color: Color; size: number;", 1)
	if err := afero.WriteFile(fsys, options, []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	// An edit to a piece that is then removed must not reach the source.
	mk := filepath.Join(dir, "functions", "make.d.ts")
	if err := afero.WriteFile(fsys, mk, []byte("declare function make(): void;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Remove(mk); err != nil {
		t.Fatal(err)
	}

	res, err := Merge(fsys, d, text, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Replace(text, "interface Options { color: Color; }", "interface Options { color: Color; size: number; }", 1)
	if diff := cmp.Diff(want, res.Text); diff != "" {
		t.Errorf("merged text mismatch (-want +got):\n%s", diff)
	}
	if !res.Changed {
		t.Error("Changed = false after an edit")
	}
	if diff := cmp.Diff([]string{mk}, res.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_EditsShiftingOffsets(t *testing.T) {
	fsys := afero.NewMemMapFs()
	d, text := splitWidgets(t, fsys)
	dir := widgetsDir()

	// Grow an early piece and shrink a late one; both must land in place.
	color := filepath.Join(dir, "enums", "Color.d.ts")
	if err := afero.WriteFile(fsys, color, []byte("/** A color. */\nexport enum Color { Red, Green, Blue, Cyan, Magenta }\n"), 0644); err != nil {
		t.Fatal(err)
	}
	mk := filepath.Join(dir, "functions", "make.d.ts")
	if err := afero.WriteFile(fsys, mk, []byte("/*@piece-import*/ import { Widget } from '../index';\n\ndeclare function make(): Widget;\n\n/*@piece-export*/ export { make };\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Merge(fsys, d, text, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Replace(text, "export enum Color { Red, Green }", "export enum Color { Red, Green, Blue, Cyan, Magenta }", 1)
	want = strings.Replace(want, "declare function make(opts: Options): Widget;", "declare function make(): Widget;", 1)
	if diff := cmp.Diff(want, res.Text); diff != "" {
		t.Errorf("merged text mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NoPiecesOnDisk(t *testing.T) {
	fx := widgetsFixture(t)
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Merge(afero.NewMemMapFs(), d, fx.file.Text, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 0 || res.Changed {
		t.Errorf("Applied = %d, Changed = %v; want 0, false", res.Applied, res.Changed)
	}
	if res.Text != fx.file.Text {
		t.Error("no-op merge modified the text")
	}
	if len(res.Missing) != len(d.Content()) {
		t.Errorf("Missing = %d, want %d", len(res.Missing), len(d.Content()))
	}
}

func TestMerge_IgnoresIndex(t *testing.T) {
	fsys := afero.NewMemMapFs()
	d, text := splitWidgets(t, fsys)
	if err := afero.WriteFile(fsys, d.Index().Path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	res, err := Merge(fsys, d, text, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != text {
		t.Error("edited index leaked into the merged text")
	}
}

func TestMerge_ReadFailure(t *testing.T) {
	mem := afero.NewMemMapFs()
	d, text := splitWidgets(t, mem)
	target := filepath.Join(widgetsDir(), "classes", "Widget.d.ts")

	_, err := Merge(failingFs{Fs: mem, failOpen: target}, d, text, testOptions())
	if !dtserrors.Is(err, dtserrors.PieceReadFailed) {
		t.Fatalf("error = %v, want PIECE_READ_FAILED", err)
	}
}

func TestMerge_RejectsUnorderedPieces(t *testing.T) {
	fsys := afero.NewMemMapFs()
	d, text := splitWidgets(t, fsys)

	content := d.Content()
	content[0], content[1] = content[1], content[0]

	if _, err := Merge(fsys, d, text, testOptions()); !dtserrors.Is(err, dtserrors.InternalError) {
		t.Errorf("error = %v, want INTERNAL_ERROR", err)
	}
}

func TestWrite_DirectoryFailureIsolated(t *testing.T) {
	mem := afero.NewMemMapFs()
	fx := widgetsFixture(t)
	d, err := Decompose(fx.file, testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	classes := filepath.Join(widgetsDir(), "classes")

	err = Write(failingFs{Fs: mem, failMkdir: classes}, d, fx.file.Text)
	if !dtserrors.Is(err, dtserrors.PieceWriteFailed) {
		t.Fatalf("error = %v, want PIECE_WRITE_FAILED", err)
	}
	if !strings.Contains(err.Error(), "Widget.d.ts") {
		t.Errorf("error does not name the piece: %v", err)
	}

	for _, p := range d.Pieces {
		exists, err := afero.Exists(mem, p.Path)
		if err != nil {
			t.Fatal(err)
		}
		wantExists := filepath.Dir(p.Path) != classes
		if exists != wantExists {
			t.Errorf("%s exists = %v, want %v", p.Path, exists, wantExists)
		}
	}
}

func TestStripMarkers(t *testing.T) {
	opts := testOptions()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "interface A {}\n", "interface A {}"},
		{
			"markers",
			"/*@piece-import*/ import { B } from '../index';\n\ninterface A { b: B }\n\n/*@piece-export*/ export { A };\n",
			"interface A { b: B }",
		},
		{"crlf", "/*@piece-import*/ import { B } from '../index';\r\n\r\ninterface A {}\r\n", "interface A {}"},
		{"indented marker kept", "  /*@piece-import*/ x\ninterface A {}", "/*@piece-import*/ x\ninterface A {}"},
		{"marker mid-line kept", "type T = 1; /*@piece-export*/", "type T = 1; /*@piece-export*/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkers(tt.in, opts); got != tt.want {
				t.Errorf("StripMarkers() = %q, want %q", got, tt.want)
			}
		})
	}
}
