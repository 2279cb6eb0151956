package workspace

import (
	"context"
	"regexp"
	"strings"

	"dtsplit/internal/decl"
	dtserrors "dtsplit/internal/errors"
)

var (
	declLine = regexp.MustCompile(`^(export\s+)?(declare\s+)?(interface|class|enum|function|type)\s+([A-Za-z_$][\w$]*)`)
	wordRe   = regexp.MustCompile(`[A-Za-z_$][\w$]*`)
)

var fakeKinds = map[string]decl.Kind{
	"interface": decl.KindInterface,
	"class":     decl.KindClass,
	"enum":      decl.KindEnum,
	"function":  decl.KindFunction,
	"type":      decl.KindTypeAlias,
}

// lineParser is a stand-in parser for one-declaration-per-line files. A line
// preceded by a /** doc */ line gets that doc attached; every other word of a
// declaration line naming a module-scope symbol is a reference.
type lineParser struct {
	fail map[string]bool
}

func (p *lineParser) Parse(_ context.Context, path string, src []byte) (*decl.File, error) {
	if p.fail[path] {
		return nil, dtserrors.Newf(dtserrors.ParseFailed, "fake failure").WithPath(path)
	}

	text := string(src)
	f := &decl.File{Path: path, Text: text, Scope: make(map[string]*decl.Symbol)}

	type line struct {
		start, end int
		text       string
	}
	var lines []line
	offset := 0
	for _, l := range strings.SplitAfter(text, "\n") {
		body := strings.TrimRight(l, "\n")
		lines = append(lines, line{offset, offset + len(body), body})
		offset += len(l)
	}

	var pending []decl.Comment
	for _, l := range lines {
		trimmed := strings.TrimSpace(l.text)
		switch {
		case strings.HasPrefix(trimmed, "/**") && strings.HasSuffix(trimmed, "*/"):
			c := decl.Comment{Start: l.start, End: l.end, Text: l.text}
			f.Docs = append(f.Docs, c)
			pending = append(pending, c)
			continue
		case trimmed == "":
			continue
		}

		m := declLine.FindStringSubmatch(l.text)
		if m == nil {
			pending = nil
			continue
		}
		name := m[4]
		sym := f.Scope[name]
		if sym == nil {
			sym = &decl.Symbol{Name: name}
			f.Scope[name] = sym
		}
		sym.Decls = append(sym.Decls, decl.Declaration{File: path, Start: l.start, End: l.end})
		f.Nodes = append(f.Nodes, decl.Node{
			Kind:     fakeKinds[m[3]],
			Start:    l.start,
			End:      l.end,
			Exported: m[1] != "",
			Symbol:   sym,
			Docs:     pending,
		})
		pending = nil
	}

	for i := range f.Nodes {
		n := &f.Nodes[i]
		for _, word := range wordRe.FindAllString(text[n.Start:n.End], -1) {
			if sym := f.Scope[word]; sym != nil && sym != n.Symbol {
				n.References = append(n.References, sym)
			}
		}
	}
	return f, nil
}
