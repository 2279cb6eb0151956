package pieces

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"dtsplit/internal/decl"
)

// CrossReference says a piece consumes FromName, declared in SourceFile, under
// the local name ToName. References found by Decompose always import the name
// the source file binds: an aliased import binding is a symbol of the file
// itself, re-exported from its index under the alias, so both names agree.
type CrossReference struct {
	FromName   string `json:"from" yaml:"from"`
	ToName     string `json:"to" yaml:"to"`
	SourceFile string `json:"sourceFile" yaml:"sourceFile"`
}

// Import returns the clause member for the reference, aliased when the local
// name differs from the declared one.
func (r CrossReference) Import() string {
	if r.FromName == r.ToName {
		return r.ToName
	}
	return r.FromName + " as " + r.ToName
}

// crossReferences collects the module-scope symbols a node's subtree uses that
// live outside [start, end) and inside the translated root. Each symbol appears
// once; the result is sorted by local name.
func crossReferences(f *decl.File, n *decl.Node, start, end int, opts Options, logger *slog.Logger) []CrossReference {
	seen := make(map[*decl.Symbol]struct{})
	var refs []CrossReference
	for _, sym := range n.References {
		if !f.InScope(sym) {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}

		if declaredWithin(sym, f.Path, start, end) {
			continue
		}
		first, ok := sym.First()
		if !ok {
			continue
		}
		if !within(first.File, opts.TranslatedRoot) {
			logger.Debug("Dropping reference declared outside translated root",
				"file", f.Path,
				"symbol", sym.Name,
				"declaredIn", first.File,
				"offset", n.Start,
			)
			continue
		}
		refs = append(refs, CrossReference{
			FromName:   sym.Name,
			ToName:     sym.Name,
			SourceFile: first.File,
		})
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].ToName < refs[j].ToName
	})
	return refs
}

// declaredWithin reports whether any declaration of sym lies inside the range.
// Merged declarations (an interface reopened inside a namespace, say) count as
// local as soon as one of them is local.
func declaredWithin(sym *decl.Symbol, file string, start, end int) bool {
	for _, d := range sym.Decls {
		if d.Contains(file, start, end) {
			return true
		}
	}
	return false
}

// importText renders one marker line per source file, importing from that
// file's index piece. Lines are ordered by module specifier.
func importText(refs []CrossReference, piecePath string, opts Options) (string, error) {
	if len(refs) == 0 {
		return "", nil
	}
	groups := make(map[string][]string)
	for _, ref := range refs {
		index, err := IndexPath(opts, ref.SourceFile)
		if err != nil {
			return "", err
		}
		module, err := RelativeModuleReference(filepath.Dir(piecePath), index)
		if err != nil {
			return "", err
		}
		groups[module] = append(groups[module], ref.Import())
	}

	modules := make([]string, 0, len(groups))
	for module := range groups {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	lines := make([]string, 0, len(modules))
	for _, module := range modules {
		lines = append(lines, fmt.Sprintf("%s import { %s } from '%s';",
			opts.ImportMarker, strings.Join(groups[module], ", "), module))
	}
	return strings.Join(lines, "\n"), nil
}

// exportText renders the re-export line for a declaration that carries no
// export modifier of its own.
func exportText(name string, opts Options) string {
	return fmt.Sprintf("%s export { %s };", opts.ExportMarker, name)
}
