package am

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance without user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, ".inkr", cfg.Generator.ConfigRoot)
	assert.Equal(t, DefaultCharset, cfg.Generator.Charset)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, DefaultCacheSize, cfg.Cache.Size)
	assert.Equal(t, 0, cfg.Detect.Workers)
	assert.Equal(t, DefaultTemplateSuffix, cfg.Detect.TemplateSuffix)
	assert.Empty(t, cfg.Generator.Journal, "journal is off by default")
	assert.False(t, cfg.Generator.FormatGo)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	content := `
[generator]
config_root = "templates"
force_override = true
journal = "runs.db"
format_go = true

[cache]
size = 16

[detect]
workers = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "templates", cfg.Generator.ConfigRoot)
	assert.True(t, cfg.Generator.ForceOverride)
	assert.Equal(t, "runs.db", cfg.Generator.Journal)
	assert.True(t, cfg.Generator.FormatGo)
	assert.Equal(t, 16, cfg.Cache.Size)
	assert.True(t, cfg.Cache.Enabled, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Detect.Workers)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty root", func(c *Config) { c.Generator.ConfigRoot = " " }, true},
		{"utf8 alias", func(c *Config) { c.Generator.Charset = "UTF8" }, false},
		{"latin1 supported", func(c *Config) { c.Generator.Charset = "iso-8859-1" }, false},
		{"unknown charset", func(c *Config) { c.Generator.Charset = "klingon-8" }, true},
		{"zero cache size when enabled", func(c *Config) { c.Cache.Size = 0 }, true},
		{"zero cache size when disabled", func(c *Config) { c.Cache.Enabled = false; c.Cache.Size = 0 }, false},
		{"negative workers", func(c *Config) { c.Detect.Workers = -1 }, true},
		{"suffix without dot", func(c *Config) { c.Detect.TemplateSuffix = "ftl" }, true},
		{"empty plugin name", func(c *Config) { c.Plugin.Enabled = []string{"java", ""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave_RoundTripAndBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "am.toml")

	cfg := Defaults()
	cfg.Generator.ConfigRoot = "gen"
	cfg.Plugin.Enabled = []string{"java"}
	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gen", loaded.Generator.ConfigRoot)
	assert.Equal(t, []string{"java"}, loaded.Plugin.Enabled)

	cfg.Generator.ConfigRoot = "gen2"
	require.NoError(t, Save(cfg, path))
	assert.FileExists(t, path+".back1")

	assert.Error(t, Save(nil, path))
}

func TestIsScratchFile(t *testing.T) {
	assert.True(t, isScratchFile("/x/context.yaml~"))
	assert.True(t, isScratchFile("/x/.context.yaml.swp"))
	assert.True(t, isScratchFile("/x/am.toml.back2"))
	assert.False(t, isScratchFile("/x/feedback.backend.tmpl"))
	assert.False(t, isScratchFile("/x/templates.yaml"))
}

func TestConfigWatcher_ReloadOnChange(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "pojo")
	require.NoError(t, os.MkdirAll(sub, 0755))

	cw, err := NewConfigWatcher(root)
	require.NoError(t, err)
	cw.SetDebounce(20 * time.Millisecond)

	var calls atomic.Int32
	cw.OnReload(func() error {
		calls.Add(1)
		return nil
	})
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(sub, "templates.yaml"), []byte("templates: []\n"), 0644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	assert.NoError(t, cw.Stop(), "Stop is idempotent")
}
