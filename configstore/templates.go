package configstore

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/teranos/inkr/errors"
	"gopkg.in/yaml.v3"
)

// TemplatesFile is the template definition file inside a trigger's template folder
const TemplatesFile = "templates.yaml"

type templateEntry struct {
	Name        string `yaml:"name"`
	File        string `yaml:"file"`
	Destination string `yaml:"destination"`
}

type incrementEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Templates   []string `yaml:"templates"`
	Increments  []string `yaml:"increments"`
}

type templatesDocument struct {
	Templates  []templateEntry  `yaml:"templates"`
	Increments []incrementEntry `yaml:"increments"`
}

// LoadTemplatesConfiguration parses <root>/<trigger.TemplateFolder>/templates.yaml.
// Template files must exist; increments may only reference templates and
// increments of the same trigger.
func LoadTemplatesConfiguration(root string, trigger *Trigger) (*TemplatesConfiguration, error) {
	if trigger == nil {
		return nil, errors.NewInvalidRequestError("nil trigger")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve configuration root %s", root)
	}
	folder := filepath.Join(abs, trigger.TemplateFolder)

	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, errors.WithHintf(
			errors.NewConfigurationError("template folder %s of trigger %q does not exist", folder, trigger.ID),
			"check templateFolder of trigger %q in %s", trigger.ID, ContextFile)
	}

	path := filepath.Join(folder, TemplatesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError("cannot read templates configuration %s: %v", path, err)
	}

	var doc templatesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigurationError("malformed %s: %v", path, err)
	}

	cfg := &TemplatesConfiguration{
		TriggerID:  trigger.ID,
		Folder:     folder,
		templates:  make(map[string]*Template, len(doc.Templates)),
		increments: make(map[string]*Increment, len(doc.Increments)),
	}

	for _, e := range doc.Templates {
		tpl, err := newTemplate(folder, trigger.ID, e)
		if err != nil {
			return nil, errors.WithDetailf(err, "in %s", path)
		}
		if _, dup := cfg.templates[tpl.ID]; dup {
			return nil, errors.NewConfigurationError("duplicate template %q in %s", tpl.ID, path)
		}
		cfg.templates[tpl.ID] = tpl
	}

	entries := make(map[string]incrementEntry, len(doc.Increments))
	for _, e := range doc.Increments {
		if e.Name == "" {
			return nil, errors.NewConfigurationError("increment without name in %s", path)
		}
		if _, dup := entries[e.Name]; dup {
			return nil, errors.NewConfigurationError("duplicate increment %q in %s", e.Name, path)
		}
		entries[e.Name] = e
	}

	for name := range entries {
		templates, err := flattenIncrement(name, entries, cfg.templates, nil)
		if err != nil {
			return nil, errors.WithDetailf(err, "in %s", path)
		}
		subs := append([]string(nil), entries[name].Increments...)
		cfg.increments[name] = &Increment{
			ID:            name,
			TriggerID:     trigger.ID,
			Description:   entries[name].Description,
			Templates:     templates,
			SubIncrements: subs,
		}
	}

	return cfg, nil
}

func newTemplate(folder, triggerID string, e templateEntry) (*Template, error) {
	if e.Name == "" {
		return nil, errors.NewConfigurationError("template without name in trigger %q", triggerID)
	}
	if e.File == "" {
		return nil, errors.NewConfigurationError("template %q declares no file", e.Name)
	}
	if e.Destination == "" {
		return nil, errors.NewConfigurationError("template %q declares no destination", e.Name)
	}

	abs := filepath.Join(folder, filepath.FromSlash(e.File))
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, errors.WithHint(
			errors.NewConfigurationError("template %q: file %s does not resolve", e.Name, abs),
			"template files are relative to the trigger's templateFolder")
	}

	return &Template{
		ID:              e.Name,
		TriggerID:       triggerID,
		TemplateFile:    e.File,
		AbsolutePath:    abs,
		DestinationPath: e.Destination,
	}, nil
}

// flattenIncrement collects the templates reachable from an increment,
// following sub-increments depth first. path guards against cycles.
func flattenIncrement(name string, entries map[string]incrementEntry, templates map[string]*Template, path []string) ([]*Template, error) {
	for _, seen := range path {
		if seen == name {
			return nil, errors.NewConfigurationError("increment cycle: %v -> %s", path, name)
		}
	}
	path = append(path, name)

	entry := entries[name]
	set := make(map[string]*Template)

	for _, id := range entry.Templates {
		tpl, ok := templates[id]
		if !ok {
			return nil, errors.NewConfigurationError("increment %q references undefined template %q", name, id)
		}
		set[id] = tpl
	}

	for _, sub := range entry.Increments {
		if _, ok := entries[sub]; !ok {
			return nil, errors.NewConfigurationError("increment %q references undefined increment %q", name, sub)
		}
		nested, err := flattenIncrement(sub, entries, templates, path)
		if err != nil {
			return nil, err
		}
		for _, tpl := range nested {
			set[tpl.ID] = tpl
		}
	}

	out := make([]*Template, 0, len(set))
	for _, tpl := range set {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
