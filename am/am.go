// Package am holds inkr's engine configuration ("I am").
//
// Configuration is merged from system, user and project am.toml files and
// INKR_* environment variables via Viper. It describes how the engine runs
// (where the generator configuration root lives, cache sizing, detection
// parallelism, enabled plugins), not what it generates: triggers, templates
// and increments live in the configuration root and are owned by configstore.
package am

// Config represents the inkr engine configuration
type Config struct {
	Generator GeneratorConfig `mapstructure:"generator" toml:"generator" json:"generator" yaml:"generator"`
	Cache     CacheConfig     `mapstructure:"cache" toml:"cache" json:"cache" yaml:"cache"`
	Detect    DetectConfig    `mapstructure:"detect" toml:"detect" json:"detect" yaml:"detect"`
	Plugin    PluginConfig    `mapstructure:"plugin" toml:"plugin" json:"plugin" yaml:"plugin"`
}

// GeneratorConfig configures forward generation
type GeneratorConfig struct {
	ConfigRoot    string `mapstructure:"config_root" toml:"config_root" json:"config_root" yaml:"config_root"`          // Directory holding context.yaml
	Charset       string `mapstructure:"charset" toml:"charset" json:"charset" yaml:"charset"`                          // Input charset passed to readers (default: utf-8)
	ForceOverride bool   `mapstructure:"force_override" toml:"force_override" json:"force_override" yaml:"force_override"` // Overwrite existing destinations by default
	Watch         bool   `mapstructure:"watch" toml:"watch" json:"watch" yaml:"watch"`                                  // Reload on configuration root changes
	Journal       string `mapstructure:"journal" toml:"journal" json:"journal" yaml:"journal"`                          // SQLite path recording generate runs (empty = off)
	FormatGo      bool   `mapstructure:"format_go" toml:"format_go" json:"format_go" yaml:"format_go"`                  // gofmt rendered .go destinations
}

// CacheConfig configures the memoization layer in front of trigger matching
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	Size    int  `mapstructure:"size" toml:"size" json:"size" yaml:"size"` // Max entries per engine instance
}

// DetectConfig configures pattern detection
type DetectConfig struct {
	Workers        int    `mapstructure:"workers" toml:"workers" json:"workers" yaml:"workers"`                         // 0 = GOMAXPROCS
	TemplateSuffix string `mapstructure:"template_suffix" toml:"template_suffix" json:"template_suffix" yaml:"template_suffix"` // Suffix of template bodies (default: .tmpl)
}

// PluginConfig configures which compiled-in technology plugins are active
type PluginConfig struct {
	Manifest string   `mapstructure:"manifest" toml:"manifest" json:"manifest" yaml:"manifest"` // Optional plugins.toml path
	Enabled  []string `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`    // Empty = all compiled-in plugins
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // rwxr-xr-x
	DefaultFilePermissions = 0644 // rw-r--r--
)
