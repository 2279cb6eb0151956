package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "2.1.0"},
		{"abc", "2.1.0"},
		{"0123456789abcdef", "2.1.0 (0123456)"},
	}

	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			Version, Commit = "2.1.0", tt.commit
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version, Commit, BuildDate = "2.1.0", "deadbeef", "2026-01-02"
	got := Full()

	for _, want := range []string{"dtsplit version 2.1.0", "Commit: deadbeef", "Built: 2026-01-02"} {
		if !strings.Contains(got, want) {
			t.Errorf("Full() = %q, missing %q", got, want)
		}
	}
}
