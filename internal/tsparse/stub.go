//go:build !cgo

package tsparse

import (
	"context"

	"dtsplit/internal/decl"
	dtserrors "dtsplit/internal/errors"
)

// errNoCGO is returned when parsing is unavailable due to missing CGO.
func errNoCGO() error {
	return dtserrors.Newf(dtserrors.ParserUnavailable, "parsing requires CGO (tree-sitter)")
}

// Parser is a stub for non-CGO builds.
type Parser struct{}

// New returns a parser whose every parse fails, so commands that never parse
// keep working in non-CGO builds.
func New(ctx context.Context, opts Options) (*Parser, error) {
	return &Parser{}, nil
}

// ParseFile always fails in non-CGO builds.
func (p *Parser) ParseFile(ctx context.Context, path string) (*decl.File, error) {
	return nil, errNoCGO()
}

// Parse always fails in non-CGO builds.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*decl.File, error) {
	return nil, errNoCGO()
}
