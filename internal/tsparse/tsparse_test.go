package tsparse

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSpecifier(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"api/widgets.d.ts",
		"api/base.d.ts",
		"api/util.ts",
		"api/shapes/index.d.ts",
		"api/emitted.d.ts",
		"lib/core.d.ts",
	}
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("export {};\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	from := filepath.Join(dir, "api", "widgets.d.ts")

	tests := []struct {
		specifier string
		want      string
	}{
		{"./base", "api/base.d.ts"},
		{"./util", "api/util.ts"},
		{"./shapes", "api/shapes/index.d.ts"},
		{"./emitted.js", "api/emitted.d.ts"},
		{"./base.d.ts", "api/base.d.ts"},
		{"../lib/core", "lib/core.d.ts"},
		{"./missing", ""},
		{"lodash", ""},
		{"@scope/pkg", ""},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			want := ""
			if tt.want != "" {
				want = filepath.Join(dir, filepath.FromSlash(tt.want))
			}
			if got := ResolveSpecifier(from, tt.specifier); got != want {
				t.Errorf("ResolveSpecifier(%q) = %q, want %q", tt.specifier, got, want)
			}
		})
	}
}
