package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	dtserrors "dtsplit/internal/errors"
	"dtsplit/internal/paths"
	"dtsplit/internal/pieces"
	"dtsplit/internal/watcher"
)

// EnvPrefix prefixes environment overrides, e.g. DTSPLIT_LOGGING_LEVEL.
const EnvPrefix = "DTSPLIT"

// SupportedConfigVersions lists config schema versions this build reads.
var SupportedConfigVersions = []int{1}

// Config represents the complete dtsplit configuration
type Config struct {
	Version int `json:"version" mapstructure:"version" toml:"version" yaml:"version"`

	Roots   RootsConfig   `json:"roots" mapstructure:"roots" toml:"roots" yaml:"roots"`
	Pieces  PiecesConfig  `json:"pieces" mapstructure:"pieces" toml:"pieces" yaml:"pieces"`
	Parser  ParserConfig  `json:"parser" mapstructure:"parser" toml:"parser" yaml:"parser"`
	Merge   MergeConfig   `json:"merge" mapstructure:"merge" toml:"merge" yaml:"merge"`
	Watch   WatchConfig   `json:"watch" mapstructure:"watch" toml:"watch" yaml:"watch"`
	Jobs    int           `json:"jobs" mapstructure:"jobs" toml:"jobs" yaml:"jobs"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging" toml:"logging" yaml:"logging"`

	// File is the config file that was read, empty when only defaults apply.
	File string `json:"-" mapstructure:"-" toml:"-" yaml:"-"`
}

// RootsConfig locates the translated tree and the tree pieces are written to.
// Relative paths are resolved against the project root.
type RootsConfig struct {
	Translated string `json:"translated" mapstructure:"translated" toml:"translated" yaml:"translated"`
	Pieces     string `json:"pieces" mapstructure:"pieces" toml:"pieces" yaml:"pieces"`
}

// PiecesConfig controls piece naming and the synthesized marker lines
type PiecesConfig struct {
	Extension    string `json:"extension" mapstructure:"extension" toml:"extension" yaml:"extension"`
	IndexName    string `json:"indexName" mapstructure:"indexName" toml:"indexName" yaml:"indexName"`
	PackageName  string `json:"packageName" mapstructure:"packageName" toml:"packageName" yaml:"packageName"`
	DocTag       string `json:"docTag" mapstructure:"docTag" toml:"docTag" yaml:"docTag"`
	ImportMarker string `json:"importMarker" mapstructure:"importMarker" toml:"importMarker" yaml:"importMarker"`
	ExportMarker string `json:"exportMarker" mapstructure:"exportMarker" toml:"exportMarker" yaml:"exportMarker"`
}

// ParserConfig contains parser configuration
type ParserConfig struct {
	// Ambient lists declaration files whose globals are visible to every file.
	Ambient []string `json:"ambient" mapstructure:"ambient" toml:"ambient" yaml:"ambient"`
}

// MergeConfig contains merge configuration
type MergeConfig struct {
	Backup      bool `json:"backup" mapstructure:"backup" toml:"backup" yaml:"backup"`
	KeepBackups int  `json:"keepBackups" mapstructure:"keepBackups" toml:"keepBackups" yaml:"keepBackups"`
}

// WatchConfig contains watch mode configuration
type WatchConfig struct {
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounceMs" toml:"debounceMs" yaml:"debounceMs"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns" toml:"ignorePatterns" yaml:"ignorePatterns"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level" toml:"level" yaml:"level"`
	// File additionally receives every record at debug level when set.
	File string `json:"file" mapstructure:"file" toml:"file" yaml:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	w := watcher.DefaultConfig()
	return &Config{
		Version: 1,
		Roots: RootsConfig{
			Translated: "translated",
			Pieces:     "pieces",
		},
		Pieces: PiecesConfig{
			Extension:    ".d.ts",
			IndexName:    "index",
			PackageName:  "package",
			DocTag:       "@packageDocumentation",
			ImportMarker: pieces.DefaultImportMarker,
			ExportMarker: pieces.DefaultExportMarker,
		},
		Parser: ParserConfig{
			Ambient: []string{},
		},
		Merge: MergeConfig{
			Backup:      true,
			KeepBackups: 5,
		},
		Watch: WatchConfig{
			DebounceMs:     w.DebounceMs,
			IgnorePatterns: w.IgnorePatterns,
		},
		Jobs: 4,
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("version", cfg.Version)
	v.SetDefault("roots.translated", cfg.Roots.Translated)
	v.SetDefault("roots.pieces", cfg.Roots.Pieces)
	v.SetDefault("pieces.extension", cfg.Pieces.Extension)
	v.SetDefault("pieces.indexName", cfg.Pieces.IndexName)
	v.SetDefault("pieces.packageName", cfg.Pieces.PackageName)
	v.SetDefault("pieces.docTag", cfg.Pieces.DocTag)
	v.SetDefault("pieces.importMarker", cfg.Pieces.ImportMarker)
	v.SetDefault("pieces.exportMarker", cfg.Pieces.ExportMarker)
	v.SetDefault("parser.ambient", cfg.Parser.Ambient)
	v.SetDefault("merge.backup", cfg.Merge.Backup)
	v.SetDefault("merge.keepBackups", cfg.Merge.KeepBackups)
	v.SetDefault("watch.debounceMs", cfg.Watch.DebounceMs)
	v.SetDefault("watch.ignorePatterns", cfg.Watch.IgnorePatterns)
	v.SetDefault("jobs", cfg.Jobs)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
}

// LoadConfig loads <projectRoot>/.dtsplit/config.{json,toml,yaml} over the
// defaults and applies DTSPLIT_* environment overrides. The result is validated.
func LoadConfig(projectRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.AddConfigPath(paths.StateDir(projectRoot))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, dtserrors.New(dtserrors.ConfigInvalid, "reading config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dtserrors.New(dtserrors.ConfigInvalid, "decoding config", err).WithPath(v.ConfigFileUsed())
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, dtserrors.New(dtserrors.ConfigInvalid, "invalid configuration", err).WithPath(cfg.File)
	}
	return &cfg, nil
}

var declarationExtensions = []string{".d.ts", ".d.mts", ".d.cts", ".ts", ".mts", ".cts"}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(SupportedConfigVersions, c.Version) {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if strings.TrimSpace(c.Roots.Translated) == "" {
		return &ConfigError{Field: "roots.translated", Message: "must not be empty"}
	}
	if strings.TrimSpace(c.Roots.Pieces) == "" {
		return &ConfigError{Field: "roots.pieces", Message: "must not be empty"}
	}
	if filepath.Clean(c.Roots.Translated) == filepath.Clean(c.Roots.Pieces) {
		return &ConfigError{Field: "roots.pieces", Message: "must differ from roots.translated"}
	}
	if !slices.Contains(declarationExtensions, c.Pieces.Extension) {
		return &ConfigError{Field: "pieces.extension", Message: fmt.Sprintf("unsupported extension %q", c.Pieces.Extension)}
	}
	if c.Pieces.IndexName == "" {
		return &ConfigError{Field: "pieces.indexName", Message: "must not be empty"}
	}
	if c.Pieces.PackageName == "" {
		return &ConfigError{Field: "pieces.packageName", Message: "must not be empty"}
	}
	if strings.TrimSpace(c.Pieces.ImportMarker) == "" {
		return &ConfigError{Field: "pieces.importMarker", Message: "must not be empty"}
	}
	if strings.TrimSpace(c.Pieces.ExportMarker) == "" {
		return &ConfigError{Field: "pieces.exportMarker", Message: "must not be empty"}
	}
	if c.Pieces.ImportMarker == c.Pieces.ExportMarker {
		return &ConfigError{Field: "pieces.exportMarker", Message: "must differ from pieces.importMarker"}
	}
	if c.Merge.KeepBackups < 0 {
		return &ConfigError{Field: "merge.keepBackups", Message: "must not be negative"}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	if c.Jobs < 0 {
		return &ConfigError{Field: "jobs", Message: "must not be negative"}
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// PieceOptions returns the splitter options with both roots made absolute
// against projectRoot.
func (c *Config) PieceOptions(projectRoot string) pieces.Options {
	return pieces.Options{
		TranslatedRoot: paths.Abs(projectRoot, c.Roots.Translated),
		PiecesRoot:     paths.Abs(projectRoot, c.Roots.Pieces),
		Extension:      c.Pieces.Extension,
		IndexName:      c.Pieces.IndexName,
		PackageName:    c.Pieces.PackageName,
		DocTag:         c.Pieces.DocTag,
		ImportMarker:   c.Pieces.ImportMarker,
		ExportMarker:   c.Pieces.ExportMarker,
	}
}

// AmbientFiles returns the configured ambient declaration files made absolute.
func (c *Config) AmbientFiles(projectRoot string) []string {
	files := make([]string, 0, len(c.Parser.Ambient))
	for _, f := range c.Parser.Ambient {
		files = append(files, paths.Abs(projectRoot, f))
	}
	return files
}

// WatcherConfig returns the watcher settings for this configuration
func (c *Config) WatcherConfig() watcher.Config {
	return watcher.Config{
		DebounceMs:     c.Watch.DebounceMs,
		IgnorePatterns: c.Watch.IgnorePatterns,
		IndexFile:      c.Pieces.IndexName + c.Pieces.Extension,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
