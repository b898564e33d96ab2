// Package model builds the rendering context for one input under one trigger
package model

import (
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/plugin"
)

// Model maps variable names to values. Nested maps are addressed with dot
// paths in templates.
type Model map[string]interface{}

// VariablesKey holds a copy of the top-level values, so templates may write
// {{variables.x}} as well as {{x}}
const VariablesKey = "variables"

// Matcher is the part of the trigger interpreter the builder needs
type Matcher interface {
	Matches(trigger *configstore.Trigger, input interface{}) (bool, error)
}

// Options adjust one build
type Options struct {
	// Contributors run after the technology's own contributors; later
	// contributions overwrite earlier ones
	Contributors []plugin.ModelContributor

	// Raw replaces the contributed model entirely
	Raw map[string]interface{}
}

// Builder assembles models from technology contributors
type Builder struct {
	matcher  Matcher
	registry *plugin.Registry
}

// NewBuilder creates a model builder
func NewBuilder(matcher Matcher, registry *plugin.Registry) *Builder {
	return &Builder{matcher: matcher, registry: registry}
}

// Build creates the model of input for trigger using the technology's
// contributors
func (b *Builder) Build(input interface{}, trigger *configstore.Trigger) (Model, error) {
	return b.BuildWith(input, trigger, Options{})
}

// BuildWith creates the model of input for trigger. Building for a trigger
// the input does not satisfy fails with ErrModelBuild.
func (b *Builder) BuildWith(input interface{}, trigger *configstore.Trigger, opts Options) (Model, error) {
	if trigger == nil {
		return nil, errors.NewInvalidRequestError("nil trigger")
	}

	ok, err := b.matcher.Matches(trigger, input)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithHintf(
			errors.Mark(errors.Newf("input %T does not match trigger %q", input, trigger.ID), errors.ErrModelBuild),
			"only build models for triggers returned by MatchingTriggers")
	}

	m := Model{}
	if opts.Raw != nil {
		for k, v := range opts.Raw {
			m[k] = v
		}
		return withVariables(m), nil
	}

	bundle, err := b.registry.Lookup(trigger.Type)
	if err != nil {
		return nil, err
	}

	contributors := append(append([]plugin.ModelContributor(nil), bundle.Contributors...), opts.Contributors...)
	for _, c := range contributors {
		values, err := c.Contribute(input)
		if err != nil {
			return nil, errors.Mark(
				errors.Wrapf(err, "model contributor %s failed for trigger %q", c.Name(), trigger.ID),
				errors.ErrModelBuild)
		}
		for k, v := range values {
			m[k] = v
		}
	}

	logger.Debugw("Built model",
		logger.FieldTrigger, trigger.ID,
		logger.FieldCount, len(m))
	return withVariables(m), nil
}

func withVariables(m Model) Model {
	if _, taken := m[VariablesKey]; taken {
		return m
	}
	vars := make(map[string]interface{}, len(m))
	for k, v := range m {
		vars[k] = v
	}
	m[VariablesKey] = vars
	return m
}
