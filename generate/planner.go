package generate

import (
	"path/filepath"
	"strings"

	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/model"
	"github.com/teranos/inkr/tmpl"
	"github.com/teranos/inkr/trigger"
)

// Planning answers which increments and templates apply to an input and
// where a template would be written. The cache package decorates it.
type Planning interface {
	MatchingIncrements(input interface{}) ([]*configstore.Increment, error)
	MatchingTemplates(input interface{}) ([]*configstore.Template, error)
	ResolveTemplateDestinationPath(targetRoot string, template *configstore.Template, input interface{}) (string, error)
}

// Planner implements Planning over the configuration and a trigger interpreter
type Planner struct {
	holder *configstore.Holder
	interp trigger.Interpreter
	models *model.Builder
}

var _ Planning = (*Planner)(nil)

// NewPlanner creates a planner
func NewPlanner(holder *configstore.Holder, interp trigger.Interpreter, models *model.Builder) *Planner {
	return &Planner{holder: holder, interp: interp, models: models}
}

// MatchingIncrements returns the increments of every trigger accepting input,
// ordered by trigger id then increment id. An input matching no trigger
// yields an empty list.
func (p *Planner) MatchingIncrements(input interface{}) ([]*configstore.Increment, error) {
	ids, err := p.interp.MatchingTriggerIDs(input)
	if err != nil {
		return nil, err
	}
	out := []*configstore.Increment{}
	for _, id := range ids {
		cfg, err := p.holder.Templates(id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg.Increments()...)
	}
	return out, nil
}

// MatchingTemplates returns the templates of every trigger accepting input,
// ordered by trigger id then template id
func (p *Planner) MatchingTemplates(input interface{}) ([]*configstore.Template, error) {
	ids, err := p.interp.MatchingTriggerIDs(input)
	if err != nil {
		return nil, err
	}
	out := []*configstore.Template{}
	for _, id := range ids {
		cfg, err := p.holder.Templates(id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg.Templates()...)
	}
	return out, nil
}

// ResolveTemplateDestinationPath evaluates the template's destination
// expression against the model of input and joins it under targetRoot
func (p *Planner) ResolveTemplateDestinationPath(targetRoot string, template *configstore.Template, input interface{}) (string, error) {
	if template == nil {
		return "", errors.NewInvalidRequestError("nil template")
	}
	t, err := p.holder.Trigger(template.TriggerID)
	if err != nil {
		return "", err
	}
	m, err := p.models.Build(input, t)
	if err != nil {
		return "", err
	}
	return destination(targetRoot, template, m)
}

// destination renders the destination expression and confines the result
// to targetRoot
func destination(targetRoot string, template *configstore.Template, m model.Model) (string, error) {
	rel, err := tmpl.RenderString(template.DestinationPath, m)
	if err != nil {
		return "", errors.Wrapf(err, "destination of template %q", template.ID)
	}

	root, err := filepath.Abs(targetRoot)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "target root %s", targetRoot), errors.ErrDestinationWrite)
	}
	if filepath.IsAbs(rel) {
		return "", errors.Mark(
			errors.Newf("template %q: destination %s must be relative to the target root", template.ID, rel),
			errors.ErrDestinationWrite)
	}

	dest := filepath.Join(root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(root, dest); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errors.Mark(
			errors.Newf("template %q: destination %s escapes the target root", template.ID, rel),
			errors.ErrDestinationWrite)
	}
	return dest, nil
}
