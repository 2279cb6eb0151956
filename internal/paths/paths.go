// Package paths holds path canonicalisation helpers and the locations of
// dtsplit's own state under a project root.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-project directory holding config, state and backups.
const StateDirName = ".dtsplit"

// NormalizePath converts backslashes to forward slashes
func NormalizePath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
}

// JoinRoot joins a root with a canonical (forward-slash) path
func JoinRoot(root string, canonicalPath string) string {
	parts := strings.Split(NormalizePath(canonicalPath), "/")
	return filepath.Join(append([]string{root}, parts...)...)
}

// Abs resolves path against base when it is relative.
func Abs(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// StateDir returns <projectRoot>/.dtsplit
func StateDir(projectRoot string) string {
	return filepath.Join(projectRoot, StateDirName)
}

// StateDBPath returns the manifest database path
func StateDBPath(projectRoot string) string {
	return filepath.Join(StateDir(projectRoot), "state.db")
}

// BackupsDir returns the directory holding compressed source backups
func BackupsDir(projectRoot string) string {
	return filepath.Join(StateDir(projectRoot), "backups")
}

// EnsureStateDir creates the state directory if needed and returns it
func EnsureStateDir(projectRoot string) (string, error) {
	dir := StateDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
