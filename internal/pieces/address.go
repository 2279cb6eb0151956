package pieces

import (
	"fmt"
	"path/filepath"
	"strings"

	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/paths"
)

// declarationSuffixes are stripped from file names, longest first, so that
// "api.d.ts" and "api.ts" both name the module "api".
var declarationSuffixes = []string{".d.mts", ".d.cts", ".d.ts", ".mts", ".cts", ".ts"}

// trimDeclarationSuffix removes one trailing declaration-file suffix.
func trimDeclarationSuffix(name string) string {
	for _, suffix := range declarationSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// within reports whether path lies lexically below root.
func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// PieceDirectory re-roots the source file's directory from the translated root
// onto the pieces root and descends into a directory named after the file.
//
//	translated/ui/widgets.d.ts -> pieces/ui/widgets
func PieceDirectory(opts Options, sourceFile string) (string, error) {
	opts = opts.withDefaults()
	dir := filepath.Dir(sourceFile)
	if !within(dir, opts.TranslatedRoot) {
		return "", dtserrors.Newf(dtserrors.OutsideRoot, "not under translated root %s", opts.TranslatedRoot).WithPath(sourceFile)
	}
	rel, err := filepath.Rel(opts.TranslatedRoot, dir)
	if err != nil {
		return "", dtserrors.New(dtserrors.OutsideRoot, "computing piece directory", err).WithPath(sourceFile)
	}
	return filepath.Join(opts.PiecesRoot, rel, trimDeclarationSuffix(filepath.Base(sourceFile))), nil
}

// IndexPath returns the generated index piece of a source file.
func IndexPath(opts Options, sourceFile string) (string, error) {
	opts = opts.withDefaults()
	dir, err := PieceDirectory(opts, sourceFile)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, opts.IndexName+opts.Extension), nil
}

// RelativeModuleReference returns the module specifier that reaches toFile from
// a module in fromDir: forward slashes, always starting with "./" or "../",
// without a declaration-file suffix.
func RelativeModuleReference(fromDir, toFile string) (string, error) {
	rel, err := filepath.Rel(fromDir, toFile)
	if err != nil {
		return "", dtserrors.New(dtserrors.InternalError, "computing relative module reference", err).WithPath(toFile)
	}
	rel = paths.NormalizePath(rel)
	if rel == "." {
		return "", dtserrors.Newf(dtserrors.InternalError, "module reference from %s to itself", fromDir).WithPath(toFile)
	}
	if rel != ".." && !strings.HasPrefix(rel, "../") && !strings.HasPrefix(rel, "./") {
		rel = "./" + rel
	}
	return trimDeclarationSuffix(rel), nil
}

// pathAllocator hands out collision-free piece paths. Paths are compared
// case-insensitively so a split behaves the same on case-insensitive file systems.
type pathAllocator struct {
	used map[string]struct{}
}

func newPathAllocator() *pathAllocator {
	return &pathAllocator{used: make(map[string]struct{})}
}

func (a *pathAllocator) reserve(path string) {
	a.used[strings.ToLower(path)] = struct{}{}
}

func (a *pathAllocator) taken(path string) bool {
	_, ok := a.used[strings.ToLower(path)]
	return ok
}

// allocate returns dir/name+ext, or the first free dir/name-N+ext for N = 1, 2, ...
func (a *pathAllocator) allocate(dir, name, ext string) string {
	candidate := filepath.Join(dir, name+ext)
	for n := 1; a.taken(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", name, n, ext))
	}
	a.reserve(candidate)
	return candidate
}

// fileName turns a symbol name into a portable file name. Identifiers are kept
// as they are; ambient module names such as "@scope/pkg" lose their quotes and
// path separators.
func fileName(symbol string) string {
	name := strings.Trim(symbol, "\"'`")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '$' || r == '-' || r == '.' || r == '@':
			b.WriteRune(r)
		case r > 0x7f:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
