package configstore

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugin"
	"gopkg.in/yaml.v3"
)

// ContextFile is the trigger definition file at the configuration root
const ContextFile = "context.yaml"

type contextDocument struct {
	Triggers []Trigger `yaml:"triggers"`
}

// LoadContextConfiguration parses <root>/context.yaml. Every trigger's
// technology must be registered and declare the matcher types it uses.
func LoadContextConfiguration(root string, registry *plugin.Registry) (*ContextConfiguration, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve configuration root %s", root)
	}

	path := filepath.Join(abs, ContextFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHint(
			errors.NewConfigurationError("cannot read context configuration %s: %v", path, err),
			"a configuration root must contain "+ContextFile)
	}

	var doc contextDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigurationError("malformed %s: %v", path, err)
	}

	cfg := &ContextConfiguration{
		Root:     abs,
		triggers: make(map[string]*Trigger, len(doc.Triggers)),
	}

	for i := range doc.Triggers {
		t := doc.Triggers[i]
		if err := validateTrigger(&t, registry); err != nil {
			return nil, errors.WithDetailf(err, "in %s", path)
		}
		if _, dup := cfg.triggers[t.ID]; dup {
			return nil, errors.NewConfigurationError("duplicate trigger id %q in %s", t.ID, path)
		}
		cfg.triggers[t.ID] = &t
		cfg.ids = append(cfg.ids, t.ID)
	}
	sort.Strings(cfg.ids)

	return cfg, nil
}

func validateTrigger(t *Trigger, registry *plugin.Registry) error {
	if t.ID == "" {
		return errors.NewConfigurationError("trigger without id")
	}
	if t.TemplateFolder == "" {
		return errors.NewConfigurationError("trigger %q declares no templateFolder", t.ID)
	}
	if filepath.IsAbs(t.TemplateFolder) {
		return errors.NewConfigurationError("trigger %q: templateFolder must be relative to the configuration root", t.ID)
	}

	bundle, err := registry.Lookup(t.Type)
	if err != nil {
		return errors.Mark(
			errors.Wrapf(err, "trigger %q references unknown technology %q", t.ID, t.Type),
			errors.ErrConfigurationInvalid)
	}

	known := make(map[string]bool)
	for _, mt := range bundle.Matcher.MatcherTypes() {
		known[mt] = true
	}

	for i := range t.Matchers {
		m := &t.Matchers[i]
		if !known[m.Type] {
			return errors.WithHintf(
				errors.NewConfigurationError("trigger %q: matcher type %q is not provided by technology %q", t.ID, m.Type, t.Type),
				"%s understands: %v", t.Type, bundle.Matcher.MatcherTypes())
		}
		switch m.Accumulation {
		case "":
			m.Accumulation = AccumulateOr
		case AccumulateOr, AccumulateAnd, AccumulateNot:
		default:
			return errors.NewConfigurationError("trigger %q: unknown accumulation %q", t.ID, m.Accumulation)
		}
	}

	for _, cm := range t.ContainerMatchers {
		if !known[cm.Type] {
			return errors.NewConfigurationError("trigger %q: container matcher type %q is not provided by technology %q", t.ID, cm.Type, t.Type)
		}
	}
	if len(t.ContainerMatchers) > 0 && bundle.Resolver == nil {
		return errors.NewConfigurationError("trigger %q declares container matchers but technology %q resolves no containers", t.ID, t.Type)
	}

	return nil
}
