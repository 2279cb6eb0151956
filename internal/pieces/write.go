package pieces

import (
	"errors"
	"path/filepath"

	"github.com/spf13/afero"

	dtserrors "dtsplit/internal/errors"
)

// Write emits every piece of d. A piece whose directory cannot be created or
// whose file cannot be written is reported; the remaining pieces are still
// written and nothing already written is rolled back.
func Write(fsys afero.Fs, d *Decomposition, text string) error {
	var errs []error
	for _, p := range d.Pieces {
		if err := writePiece(fsys, p, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writePiece(fsys afero.Fs, p Piece, text string) error {
	if err := fsys.MkdirAll(filepath.Dir(p.Path), 0755); err != nil {
		return dtserrors.New(dtserrors.PieceWriteFailed, "creating piece directory", err).WithPath(p.Path)
	}
	if err := afero.WriteFile(fsys, p.Path, []byte(p.Render(text)), 0644); err != nil {
		return dtserrors.New(dtserrors.PieceWriteFailed, "writing piece", err).WithPath(p.Path)
	}
	return nil
}
