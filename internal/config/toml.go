package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"

	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/paths"
)

// FileName is the config file written by Init.
const FileName = "config.toml"

const header = "# dtsplit configuration\n# Environment variables prefixed with DTSPLIT_ override any key, e.g. DTSPLIT_LOGGING_LEVEL=debug.\n\n"

// Init writes cfg as <projectRoot>/.dtsplit/config.toml. An existing file is
// kept unless force is set.
func Init(projectRoot string, cfg *Config, force bool) (string, error) {
	dir, err := paths.EnsureStateDir(projectRoot)
	if err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if exists(path) && !force {
		return path, dtserrors.Newf(dtserrors.ConfigInvalid, "config file already exists (use --force to overwrite)").WithPath(path)
	}

	data, err := gotoml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	return path, nil
}

// CheckResult reports how a TOML config file decodes
type CheckResult struct {
	Path    string   `json:"path"`
	Unknown []string `json:"unknown,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// OK reports whether the file decoded, validated and had no unknown keys.
func (r *CheckResult) OK() bool {
	return r.Error == "" && len(r.Unknown) == 0
}

// Check decodes a TOML config file strictly: keys that map to no setting are
// reported, and the decoded values are validated on top of the defaults.
func Check(path string) (*CheckResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, dtserrors.New(dtserrors.ConfigInvalid, "config file not found", err).WithPath(path)
	}

	result := &CheckResult{Path: path}
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	for _, key := range meta.Undecoded() {
		result.Unknown = append(result.Unknown, key.String())
	}
	sort.Strings(result.Unknown)

	if err := cfg.Validate(); err != nil {
		result.Error = err.Error()
	}
	return result, nil
}

// DefaultPath returns <projectRoot>/.dtsplit/config.toml
func DefaultPath(projectRoot string) string {
	return filepath.Join(paths.StateDir(projectRoot), FileName)
}
