package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")

	err := New(SourceUnreadable, "cannot read declaration file", cause)

	if err.Code != SourceUnreadable {
		t.Errorf("Code = %v, want %v", err.Code, SourceUnreadable)
	}
	if err.Message != "cannot read declaration file" {
		t.Errorf("Message = %q, want %q", err.Message, "cannot read declaration file")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestDtsError_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       *DtsError
		wantParts []string
	}{
		{
			name:      "with cause",
			err:       New(PieceWriteFailed, "creating piece directory", errors.New("permission denied")),
			wantParts: []string{"PIECE_WRITE_FAILED", "creating piece directory", "permission denied"},
		},
		{
			name:      "without cause",
			err:       Newf(OutsideRoot, "%s is not under %s", "a.d.ts", "translated"),
			wantParts: []string{"OUTSIDE_ROOT", "a.d.ts is not under translated"},
		},
		{
			name:      "source changed",
			err:       Newf(SourceChanged, "source changed since it was last split").WithPath("translated/api.d.ts"),
			wantParts: []string{"SOURCE_CHANGED", "translated/api.d.ts: source changed since it was last split"},
		},
		{
			name:      "with path",
			err:       New(Locked, "piece directory is locked", nil).WithPath("/tmp/pieces/api"),
			wantParts: []string{"LOCKED", "/tmp/pieces/api: piece directory is locked"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want it to contain %q", got, part)
				}
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("splitting api.d.ts: %w", New(ParseFailed, "syntax error", nil))

	if got := CodeOf(wrapped); got != ParseFailed {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, ParseFailed)
	}
	if !Is(wrapped, ParseFailed) {
		t.Error("Is(wrapped, ParseFailed) = false, want true")
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}
