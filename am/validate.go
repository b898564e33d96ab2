package am

import (
	"strings"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugin"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Generator.ConfigRoot) == "" {
		return errors.WithHint(
			errors.New("generator.config_root cannot be empty"),
			"point it at the directory containing context.yaml")
	}

	if err := plugin.CheckCharset(c.Generator.Charset); err != nil {
		return errors.Wrap(err, "generator.charset")
	}

	// Cache size only matters when enabled; 0 is invalid per "zero means zero"
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return errors.Newf("cache.size must be > 0 when cache is enabled, got %d", c.Cache.Size)
	}

	// Detect workers: 0 = GOMAXPROCS, negative = invalid
	if c.Detect.Workers < 0 {
		return errors.Newf("detect.workers must be >= 0, got %d", c.Detect.Workers)
	}

	if c.Detect.TemplateSuffix != "" && !strings.HasPrefix(c.Detect.TemplateSuffix, ".") {
		return errors.Newf("detect.template_suffix must start with '.', got %q", c.Detect.TemplateSuffix)
	}

	for _, name := range c.Plugin.Enabled {
		if strings.TrimSpace(name) == "" {
			return errors.New("plugin.enabled cannot contain empty names")
		}
	}

	return nil
}
