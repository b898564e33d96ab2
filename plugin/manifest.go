package plugin

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/teranos/inkr/errors"
)

// ManifestEntry configures one compiled-in technology
type ManifestEntry struct {
	// Enabled controls whether the technology is registered (default: true)
	Enabled *bool `toml:"enabled"`

	// FileFilter overrides the technology's detection glob
	FileFilter string `toml:"file_filter"`

	// RequiresVersion overrides the plugin's inkr version constraint
	RequiresVersion string `toml:"requires"`
}

// Manifest is the parsed plugins.toml:
//
//	[plugins.java]
//	enabled = true
//	file_filter = "src/**/*.java"
//
//	[plugins.object]
//	enabled = false
type Manifest struct {
	Plugins map[string]ManifestEntry `toml:"plugins"`
}

// LoadManifest parses a plugins.toml file. A missing file is an error; an
// empty path returns an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return &Manifest{Plugins: map[string]ManifestEntry{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plugin manifest %s", path)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to parse plugin manifest %s", path), errors.ErrConfigurationInvalid)
	}
	if m.Plugins == nil {
		m.Plugins = map[string]ManifestEntry{}
	}
	return &m, nil
}

// IsEnabled reports whether the manifest allows a technology. Technologies
// not listed are enabled.
func (m *Manifest) IsEnabled(name string) bool {
	entry, ok := m.Plugins[name]
	if !ok || entry.Enabled == nil {
		return true
	}
	return *entry.Enabled
}

// Apply returns bundle with manifest overrides applied
func (m *Manifest) Apply(bundle Bundle) Bundle {
	entry, ok := m.Plugins[bundle.Metadata.Name]
	if !ok {
		return bundle
	}
	if entry.FileFilter != "" {
		bundle.FileFilter = entry.FileFilter
	}
	if entry.RequiresVersion != "" {
		bundle.Metadata.RequiresVersion = entry.RequiresVersion
	}
	return bundle
}
