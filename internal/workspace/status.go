package workspace

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/afero"

	dtserrors "dtsplit/internal/errors"
)

// PieceState is the state of a piece file relative to the last split
type PieceState string

const (
	PieceUnchanged PieceState = "unchanged"
	PieceEdited    PieceState = "edited"
	PieceMissing   PieceState = "missing"
)

// PieceStatus describes one recorded piece
type PieceStatus struct {
	Path      string     `json:"path"`
	Symbol    string     `json:"symbol,omitempty"`
	Generated bool       `json:"generated,omitempty"`
	State     PieceState `json:"state"`
}

// Status compares a source file and its pieces with the last split
type Status struct {
	Source        string        `json:"source"`
	RunID         string        `json:"runId"`
	SplitAt       time.Time     `json:"splitAt"`
	SourceChanged bool          `json:"sourceChanged"`
	Pieces        []PieceStatus `json:"pieces"`
}

// Count returns the number of pieces in state s.
func (st *Status) Count(s PieceState) int {
	n := 0
	for _, p := range st.Pieces {
		if p.State == s {
			n++
		}
	}
	return n
}

// Status reports which pieces of path were edited or removed since it was
// last split and whether the source itself changed.
func (w *Workspace) Status(ctx context.Context, path string) (*Status, error) {
	path = w.abs(path)
	if w.manifest == nil {
		return nil, dtserrors.Newf(dtserrors.NoManifest, "no manifest store configured").WithPath(path)
	}

	run, err := w.manifest.LatestRun(w.key(path))
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, dtserrors.Newf(dtserrors.NoManifest, "file was never split").WithPath(path)
	}

	recorded, err := w.manifest.Pieces(run.RunID)
	if err != nil {
		return nil, err
	}

	st := &Status{Source: path, RunID: run.RunID, SplitAt: run.CreatedAt}

	src, err := afero.ReadFile(w.fs, path)
	switch {
	case err == nil:
		st.SourceChanged = hashBytes(src) != run.SourceHash
	case errors.Is(err, fs.ErrNotExist):
		st.SourceChanged = true
	default:
		return nil, dtserrors.New(dtserrors.SourceUnreadable, "reading declaration file", err).WithPath(path)
	}

	for _, rp := range recorded {
		ps := PieceStatus{Path: w.fromKey(rp.Path), Symbol: rp.Symbol, Generated: rp.Generated}
		data, err := afero.ReadFile(w.fs, ps.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			ps.State = PieceMissing
		case err != nil:
			return nil, dtserrors.New(dtserrors.PieceReadFailed, "reading piece", err).WithPath(ps.Path)
		case hashBytes(data) == rp.ContentHash:
			ps.State = PieceUnchanged
		default:
			ps.State = PieceEdited
		}
		st.Pieces = append(st.Pieces, ps)
	}
	return st, nil
}
