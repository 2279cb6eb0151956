package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath(`classes\Foo.d.ts`); got != "classes/Foo.d.ts" {
		t.Errorf("NormalizePath = %q", got)
	}
}

func TestJoinRoot(t *testing.T) {
	got := JoinRoot("/work", "pieces/api/index.d.ts")
	want := filepath.Join("/work", "pieces", "api", "index.d.ts")
	if got != want {
		t.Errorf("JoinRoot = %q, want %q", got, want)
	}
}

func TestAbs(t *testing.T) {
	if got := Abs("/work", "translated"); got != filepath.Join("/work", "translated") {
		t.Errorf("Abs(relative) = %q", got)
	}
	if got := Abs("/work", "/elsewhere/x/../y"); got != filepath.Clean("/elsewhere/y") {
		t.Errorf("Abs(absolute) = %q", got)
	}
}

func TestStateLayout(t *testing.T) {
	root := t.TempDir()

	dir, err := EnsureStateDir(root)
	if err != nil {
		t.Fatalf("EnsureStateDir failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("state dir not created: %v", err)
	}

	for name, got := range map[string]string{
		"db":      StateDBPath(root),
		"backups": BackupsDir(root),
	} {
		if filepath.Dir(got) != dir && filepath.Dir(filepath.Dir(got)) != dir {
			t.Errorf("%s path %q is not under %q", name, got, dir)
		}
	}
}
