package cache

import (
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/generate"
)

type templateKey struct {
	Trigger  string
	Template string
}

func (k templateKey) CacheKey() string { return k.Trigger + "\x00" + k.Template }

// Planner memoizes a generate.Planning
type Planner struct {
	next  generate.Planning
	store *Store
}

var _ generate.Planning = (*Planner)(nil)

// NewPlanner decorates next with store
func NewPlanner(next generate.Planning, store *Store) *Planner {
	return &Planner{next: next, store: store}
}

// MatchingIncrements implements generate.Planning
func (c *Planner) MatchingIncrements(input interface{}) ([]*configstore.Increment, error) {
	out, err := do(c.store, "matchingIncrements", func() ([]*configstore.Increment, error) {
		return c.next.MatchingIncrements(input)
	}, input)
	return cloneSlice(out), err
}

// MatchingTemplates implements generate.Planning
func (c *Planner) MatchingTemplates(input interface{}) ([]*configstore.Template, error) {
	out, err := do(c.store, "matchingTemplates", func() ([]*configstore.Template, error) {
		return c.next.MatchingTemplates(input)
	}, input)
	return cloneSlice(out), err
}

// ResolveTemplateDestinationPath implements generate.Planning
func (c *Planner) ResolveTemplateDestinationPath(targetRoot string, template *configstore.Template, input interface{}) (string, error) {
	if template == nil {
		return c.next.ResolveTemplateDestinationPath(targetRoot, template, input)
	}
	return do(c.store, "resolveTemplateDestinationPath", func() (string, error) {
		return c.next.ResolveTemplateDestinationPath(targetRoot, template, input)
	}, targetRoot, templateKey{Trigger: template.TriggerID, Template: template.ID}, input)
}
