//go:build cgo

package tsparse

import (
	"context"
	"log/slog"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"dtsplit/internal/decl"
	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/slogutil"
)

// Parser turns declaration files into decl.File values. It is safe for
// concurrent use: every parse gets its own tree-sitter parser.
type Parser struct {
	logger  *slog.Logger
	globals map[string]*decl.Symbol
}

// New creates a Parser and loads the ambient declaration files.
func New(ctx context.Context, opts Options) (*Parser, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	p := &Parser{
		logger:  logger,
		globals: make(map[string]*decl.Symbol),
	}
	for _, path := range opts.Ambient {
		if err := p.loadAmbient(ctx, path); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*decl.File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, dtserrors.New(dtserrors.SourceUnreadable, "reading declaration file", err).WithPath(path)
	}
	return p.Parse(ctx, path, src)
}

// Parse parses src as the content of path.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*decl.File, error) {
	tree, err := parseTree(ctx, src)
	if err != nil {
		return nil, dtserrors.New(dtserrors.ParseFailed, "parsing declaration file", err).WithPath(path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p.logger.Warn("Declaration file has syntax errors; unparsed statements stay in place",
			"file", path,
		)
	}

	b := newBuilder(path, src, p.globals, p.logger)
	f := b.build(root)

	p.logger.Debug("Parsed declaration file",
		"file", path,
		"nodes", len(f.Nodes),
		"imports", len(f.Imports),
		"scope", len(f.Scope),
	)
	return f, nil
}

func parseTree(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(typescript.GetLanguage())
	return parser.ParseCtx(ctx, nil, src)
}

// loadAmbient adds the global names of one ambient declaration file.
func (p *Parser) loadAmbient(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return dtserrors.New(dtserrors.SourceUnreadable, "reading ambient declaration file", err).WithPath(path)
	}
	tree, err := parseTree(ctx, src)
	if err != nil {
		return dtserrors.New(dtserrors.ParseFailed, "parsing ambient declaration file", err).WithPath(path)
	}
	defer tree.Close()

	root := tree.RootNode()
	script := isScript(root)
	var found []declaredName
	for _, n := range namedChildren(root) {
		st := classify(n)
		switch {
		case st.global:
			if body := childOfType(st.inner, "statement_block"); body != nil {
				for _, inner := range namedChildren(body) {
					found = append(found, names(classify(inner), src)...)
				}
			}
		case script:
			found = append(found, names(st, src)...)
		}
	}

	for _, dn := range found {
		sym := p.globals[dn.name]
		if sym == nil {
			sym = &decl.Symbol{Name: dn.name}
			p.globals[dn.name] = sym
		}
		sym.Decls = append(sym.Decls, decl.Declaration{File: path, Start: dn.start, End: dn.end})
	}
	p.logger.Debug("Loaded ambient declarations",
		"file", path,
		"script", script,
		"names", len(found),
	)
	return nil
}

// isScript reports whether the file has no top-level import or export, which
// makes its top-level declarations global.
func isScript(root *sitter.Node) bool {
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "import_statement", "export_statement":
			return false
		}
	}
	return true
}
