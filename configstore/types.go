// Package configstore parses and holds trigger, template and increment
// definitions for one configuration root.
//
// Layout of a configuration root:
//
//	<root>/context.yaml                  triggers and their matchers
//	<root>/<templateFolder>/templates.yaml  templates and increments of one trigger
//	<root>/<templateFolder>/*.tmpl          template bodies
//
// Instances returned by this package are owned by the Holder for the
// lifetime of one engine; callers treat them as read-only.
package configstore

import (
	"sort"
)

// Accumulation controls how a trigger combines its matchers
type Accumulation string

const (
	// AccumulateOr matches if any matcher accepts (default)
	AccumulateOr Accumulation = "or"
	// AccumulateAnd matches if every matcher accepts
	AccumulateAnd Accumulation = "and"
	// AccumulateNot matches if no matcher accepts
	AccumulateNot Accumulation = "not"
)

// Matcher is a technology-specific predicate on an input
type Matcher struct {
	Type         string       `yaml:"type"`
	Value        string       `yaml:"value"`
	Accumulation Accumulation `yaml:"accumulation,omitempty"`
}

// ContainerMatcher flags inputs that wrap further inputs
type ContainerMatcher struct {
	Type                       string `yaml:"type"`
	Value                      string `yaml:"value"`
	RetrieveObjectsRecursively bool   `yaml:"retrieveObjectsRecursively,omitempty"`
}

// Trigger decides whether an input is eligible for a technology's templates
type Trigger struct {
	ID                string             `yaml:"id"`
	Type              string             `yaml:"type"`
	TemplateFolder    string             `yaml:"templateFolder"`
	Matchers          []Matcher          `yaml:"matchers"`
	ContainerMatchers []ContainerMatcher `yaml:"containerMatchers,omitempty"`
}

// MatchesByContainerMatcher reports whether inputs of this trigger are
// containers to be resolved into leaf inputs
func (t *Trigger) MatchesByContainerMatcher() bool {
	return len(t.ContainerMatchers) > 0
}

// GenerableArtifact is a unit a caller may request to generate: a *Template
// or an *Increment
type GenerableArtifact interface {
	ArtifactID() string
	OwningTriggerID() string
	generable()
}

// Template is one source-to-destination rendering unit
type Template struct {
	ID              string
	TriggerID       string
	TemplateFile    string // relative to the trigger's template folder
	AbsolutePath    string
	DestinationPath string // unevaluated {{expression}} path
}

// ArtifactID implements GenerableArtifact
func (t *Template) ArtifactID() string { return t.ID }

// OwningTriggerID implements GenerableArtifact
func (t *Template) OwningTriggerID() string { return t.TriggerID }

func (*Template) generable() {}

// Increment is a named bundle of templates generated together
type Increment struct {
	ID            string
	TriggerID     string
	Description   string
	Templates     []*Template // flattened across sub-increments, sorted by ID
	SubIncrements []string
}

// ArtifactID implements GenerableArtifact
func (i *Increment) ArtifactID() string { return i.ID }

// OwningTriggerID implements GenerableArtifact
func (i *Increment) OwningTriggerID() string { return i.TriggerID }

func (*Increment) generable() {}

// ContextConfiguration holds all triggers of a configuration root
type ContextConfiguration struct {
	Root     string
	triggers map[string]*Trigger
	ids      []string
}

// Trigger returns the trigger with the given id
func (c *ContextConfiguration) Trigger(id string) (*Trigger, bool) {
	t, ok := c.triggers[id]
	return t, ok
}

// TriggerIDs returns all trigger ids sorted
func (c *ContextConfiguration) TriggerIDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Triggers returns all triggers in id order
func (c *ContextConfiguration) Triggers() []*Trigger {
	out := make([]*Trigger, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.triggers[id])
	}
	return out
}

// TemplatesConfiguration holds the templates and increments of one trigger
type TemplatesConfiguration struct {
	TriggerID  string
	Folder     string
	templates  map[string]*Template
	increments map[string]*Increment
}

// Template returns the template with the given id
func (c *TemplatesConfiguration) Template(id string) (*Template, bool) {
	t, ok := c.templates[id]
	return t, ok
}

// Increment returns the increment with the given id
func (c *TemplatesConfiguration) Increment(id string) (*Increment, bool) {
	i, ok := c.increments[id]
	return i, ok
}

// Templates returns all templates sorted by id
func (c *TemplatesConfiguration) Templates() []*Template {
	out := make([]*Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Increments returns all increments sorted by id
func (c *TemplatesConfiguration) Increments() []*Increment {
	out := make([]*Increment, 0, len(c.increments))
	for _, i := range c.increments {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
