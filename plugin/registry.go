package plugin

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/teranos/inkr/errors"
)

// DevVersion is the version string of unreleased builds; it satisfies every
// RequiresVersion constraint
const DevVersion = "dev"

// Builder collects bundles at startup. Build freezes them into a Registry.
type Builder struct {
	version string
	bundles map[string]Bundle
}

// NewBuilder creates a builder for the given inkr version
func NewBuilder(inkrVersion string) *Builder {
	return &Builder{
		version: inkrVersion,
		bundles: make(map[string]Bundle),
	}
}

// Register adds a technology bundle.
// Returns error if the name conflicts or the version is incompatible.
func (b *Builder) Register(bundle Bundle) error {
	name := bundle.Metadata.Name
	if name == "" {
		return errors.NewInvalidRequestError("plugin bundle without a technology name")
	}
	if bundle.Matcher == nil {
		return errors.NewInvalidRequestError("plugin %s registers no matcher", name)
	}

	if _, exists := b.bundles[name]; exists {
		return errors.Newf("technology plugin already registered: %s", name)
	}

	if err := b.validateVersion(bundle.Metadata); err != nil {
		return errors.Wrapf(err, "version incompatible for %s", name)
	}

	b.bundles[name] = bundle
	return nil
}

// validateVersion checks if the plugin accepts this inkr version
func (b *Builder) validateVersion(metadata Metadata) error {
	if metadata.RequiresVersion == "" || b.version == DevVersion {
		return nil
	}

	current, err := semver.NewVersion(b.version)
	if err != nil {
		return errors.Wrapf(err, "invalid inkr version %s", b.version)
	}

	constraint, err := semver.NewConstraint(metadata.RequiresVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %s", metadata.RequiresVersion)
	}

	if !constraint.Check(current) {
		return errors.Newf("plugin requires inkr %s, but running %s", metadata.RequiresVersion, b.version)
	}

	return nil
}

// Build returns the immutable registry. The builder may not be used afterwards.
func (b *Builder) Build() *Registry {
	names := make([]string, 0, len(b.bundles))
	for name := range b.bundles {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Registry{bundles: b.bundles, names: names}
	b.bundles = nil
	return r
}

// Registry maps technology ids to bundles. It is never mutated after Build,
// so concurrent lookups need no locking.
type Registry struct {
	bundles map[string]Bundle
	names   []string
}

// Lookup returns the bundle for a technology
func (r *Registry) Lookup(technology string) (Bundle, error) {
	bundle, ok := r.bundles[technology]
	if !ok {
		return Bundle{}, errors.WithHintf(
			errors.Mark(errors.Newf("no plugin registered for technology %q", technology), errors.ErrPluginMissing),
			"available technologies: %v", r.names)
	}
	return bundle, nil
}

// InputReader returns the reader for a technology. A registered technology
// without a reader is reported as ErrInputReaderMissing, distinct from
// ErrPluginMissing.
func (r *Registry) InputReader(technology string) (InputReader, error) {
	bundle, err := r.Lookup(technology)
	if err != nil {
		return nil, err
	}
	if bundle.Reader == nil {
		return nil, errors.Mark(
			errors.Newf("no input reader available for technology %q", technology),
			errors.ErrInputReaderMissing)
	}
	return bundle.Reader, nil
}

// Has reports whether a technology is registered
func (r *Registry) Has(technology string) bool {
	_, ok := r.bundles[technology]
	return ok
}

// List returns all registered technology names in sorted order
func (r *Registry) List() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Compiled-in bundles, appended by plugin packages from init()
var (
	compiledMu sync.Mutex
	compiled   = map[string]Bundle{}
)

// Provide makes a bundle available to NewDefaultRegistry. Call it from init().
func Provide(bundle Bundle) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if _, exists := compiled[bundle.Metadata.Name]; exists {
		panic("technology plugin provided twice: " + bundle.Metadata.Name)
	}
	compiled[bundle.Metadata.Name] = bundle
}

// Compiled returns compiled-in bundles sorted by name
func Compiled() []Bundle {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	out := make([]Bundle, 0, len(compiled))
	for _, b := range compiled {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.Name < out[j].Metadata.Name })
	return out
}

// NewDefaultRegistry builds a registry from the compiled-in bundles.
// enabled restricts the set when non-empty; manifest may be nil.
func NewDefaultRegistry(inkrVersion string, enabled []string, manifest *Manifest) (*Registry, error) {
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}

	builder := NewBuilder(inkrVersion)
	for _, bundle := range Compiled() {
		name := bundle.Metadata.Name
		if len(allow) > 0 && !allow[name] {
			continue
		}
		if manifest != nil {
			if !manifest.IsEnabled(name) {
				continue
			}
			bundle = manifest.Apply(bundle)
		}
		if err := builder.Register(bundle); err != nil {
			return nil, err
		}
	}

	for name := range allow {
		if !builder.has(name) && !isCompiled(name) {
			return nil, errors.WithHint(
				errors.Mark(errors.Newf("plugin.enabled names unknown technology %q", name), errors.ErrPluginMissing),
				"compiled-in technologies are listed by 'inkr plugins'")
		}
	}

	return builder.Build(), nil
}

func (b *Builder) has(name string) bool {
	_, ok := b.bundles[name]
	return ok
}

func isCompiled(name string) bool {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	_, ok := compiled[name]
	return ok
}
