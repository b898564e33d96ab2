package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values shared by SetDefaults and callers that need them without Viper
const (
	DefaultCharset        = "utf-8"
	DefaultCacheSize      = 4096
	DefaultTemplateSuffix = ".tmpl"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("generator.config_root", ".inkr")
	v.SetDefault("generator.charset", DefaultCharset)
	v.SetDefault("generator.force_override", false)
	v.SetDefault("generator.watch", false)
	v.SetDefault("generator.journal", "")
	v.SetDefault("generator.format_go", false)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", DefaultCacheSize)

	v.SetDefault("detect.workers", 0)
	v.SetDefault("detect.template_suffix", DefaultTemplateSuffix)

	v.SetDefault("plugin.manifest", "")
	v.SetDefault("plugin.enabled", []string{})
}

// String renders a one-line summary for -v startup output
func (c *Config) String() string {
	return fmt.Sprintf("root=%s charset=%s cache=%t/%d detect.workers=%d plugins=%v",
		c.Generator.ConfigRoot, c.Generator.Charset, c.Cache.Enabled, c.Cache.Size,
		c.Detect.Workers, c.Plugin.Enabled)
}
