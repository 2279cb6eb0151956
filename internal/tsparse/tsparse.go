// Package tsparse builds the decl model of a TypeScript declaration file using
// tree-sitter: top-level statements with their kinds and byte ranges, the
// module scope, documentation blocks, imports, and the symbols every statement
// references.
//
// The tree-sitter grammar needs cgo. Builds without cgo get a Parser whose
// methods fail with a PARSER_UNAVAILABLE error.
package tsparse

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configure a Parser.
type Options struct {
	// Ambient lists declaration files whose global names are visible in every
	// parsed file: script files (no top-level import or export) contribute all
	// top-level names, module files the names inside declare global blocks.
	Ambient []string

	Logger *slog.Logger
}

// specifierCandidates are tried, in order, when resolving a relative import.
var specifierCandidates = []string{".d.ts", ".ts", ".d.mts", ".d.cts", "/index.d.ts", "/index.ts"}

// ResolveSpecifier maps a relative module specifier used in fromFile to a file
// on disk. Bare specifiers and specifiers that resolve to nothing yield "".
func ResolveSpecifier(fromFile, specifier string) string {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") &&
		specifier != "." && specifier != ".." {
		return ""
	}
	base := filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(specifier))

	if isFile(base) && isDeclarationFile(base) {
		return base
	}
	// ./widget.js names the emitted module; its declarations sit next to it.
	if ext := filepath.Ext(base); ext == ".js" || ext == ".mjs" || ext == ".cjs" {
		stem := strings.TrimSuffix(base, ext)
		for _, suffix := range []string{".d.ts", ".ts"} {
			if isFile(stem + suffix) {
				return stem + suffix
			}
		}
	}
	for _, suffix := range specifierCandidates {
		candidate := base + filepath.FromSlash(suffix)
		if isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func isDeclarationFile(path string) bool {
	return strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".mts") || strings.HasSuffix(path, ".cts")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
