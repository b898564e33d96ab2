// Package trigger evaluates configured triggers against inputs and resolves
// container inputs into the leaf inputs they wrap.
package trigger

import (
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/plugin"
)

// Interpreter is the trigger matching contract. The cache package decorates
// it; every method except Read and Matches is deterministic in its
// arguments for a fixed configuration.
type Interpreter interface {
	// MatchingTriggers returns the triggers accepting input, in id order
	MatchingTriggers(input interface{}) ([]*configstore.Trigger, error)

	// MatchingTriggerIDs returns the ids of MatchingTriggers
	MatchingTriggerIDs(input interface{}) ([]string, error)

	// Matches evaluates one trigger against input
	Matches(trigger *configstore.Trigger, input interface{}) (bool, error)

	// CombinesMultipleInputs reports whether any trigger treats input as a container
	CombinesMultipleInputs(input interface{}) (bool, error)

	// ResolveContainers flattens input through every container trigger
	// accepting it. Non-container inputs resolve to themselves.
	ResolveContainers(input interface{}) ([]interface{}, error)

	// ResolveContainerElements flattens input through one container trigger
	ResolveContainerElements(input interface{}, trigger *configstore.Trigger) ([]interface{}, error)

	// InputObjects returns the elements of a container input, flattened
	// through nested containers when recursive is set
	InputObjects(input interface{}, charset string, recursive bool) ([]interface{}, error)

	// Read reads an input of a technology from disk. Never cached.
	Read(technology, path, charset string, args ...interface{}) (interface{}, error)
}

// Evaluator implements Interpreter over a configuration holder and a plugin
// registry
type Evaluator struct {
	holder   *configstore.Holder
	registry *plugin.Registry
	charset  string
}

var _ Interpreter = (*Evaluator)(nil)

// NewEvaluator creates an evaluator. charset is passed to container resolvers.
func NewEvaluator(holder *configstore.Holder, registry *plugin.Registry, charset string) *Evaluator {
	return &Evaluator{holder: holder, registry: registry, charset: charset}
}

// MatchingTriggers implements Interpreter
func (e *Evaluator) MatchingTriggers(input interface{}) ([]*configstore.Trigger, error) {
	ctx, err := e.holder.Context()
	if err != nil {
		return nil, err
	}

	var out []*configstore.Trigger
	for _, t := range ctx.Triggers() {
		ok, err := e.Matches(t, input)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// MatchingTriggerIDs implements Interpreter
func (e *Evaluator) MatchingTriggerIDs(input interface{}) ([]string, error) {
	triggers, err := e.MatchingTriggers(input)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(triggers))
	for _, t := range triggers {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// Matches implements Interpreter. A container trigger accepts inputs its
// container matchers accept. Otherwise matchers combine by accumulation:
// every "and" matcher must accept, no "not" matcher may accept, and at least
// one "or" matcher must accept when any is declared. A trigger without
// matchers never matches.
func (e *Evaluator) Matches(t *configstore.Trigger, input interface{}) (bool, error) {
	if t == nil {
		return false, errors.NewInvalidRequestError("nil trigger")
	}

	bundle, err := e.registry.Lookup(t.Type)
	if err != nil {
		return false, errors.Wrapf(err, "trigger %q", t.ID)
	}

	if t.MatchesByContainerMatcher() {
		ok, err := e.matchesContainer(bundle, t, input)
		if err != nil || ok {
			return ok, err
		}
	}

	if len(t.Matchers) == 0 {
		return false, nil
	}

	var hasOr, anyOr, hasAnd bool
	for _, m := range t.Matchers {
		ok, err := bundle.Matcher.Matches(plugin.Matcher{Type: m.Type, Value: m.Value}, input)
		if err != nil {
			return false, errors.Wrapf(err, "trigger %q matcher %s=%q", t.ID, m.Type, m.Value)
		}
		switch m.Accumulation {
		case configstore.AccumulateAnd:
			hasAnd = true
			if !ok {
				return false, nil
			}
		case configstore.AccumulateNot:
			if ok {
				return false, nil
			}
		default:
			hasOr = true
			anyOr = anyOr || ok
		}
	}

	if hasOr {
		return anyOr, nil
	}
	return hasAnd, nil
}

func (e *Evaluator) matchesContainer(bundle plugin.Bundle, t *configstore.Trigger, input interface{}) (bool, error) {
	_, ok, err := e.acceptingContainerMatcher(bundle, t, input)
	return ok, err
}

// acceptingContainerMatcher reports whether a container matcher of t accepts
// input, and whether any accepting one asks for recursive retrieval
func (e *Evaluator) acceptingContainerMatcher(bundle plugin.Bundle, t *configstore.Trigger, input interface{}) (recursive, ok bool, err error) {
	for _, cm := range t.ContainerMatchers {
		hit, err := bundle.Matcher.Matches(plugin.Matcher{Type: cm.Type, Value: cm.Value}, input)
		if err != nil {
			return false, false, errors.Wrapf(err, "trigger %q container matcher %s=%q", t.ID, cm.Type, cm.Value)
		}
		if hit {
			ok = true
			recursive = recursive || cm.RetrieveObjectsRecursively
		}
	}
	return recursive, ok, nil
}

// CombinesMultipleInputs implements Interpreter
func (e *Evaluator) CombinesMultipleInputs(input interface{}) (bool, error) {
	ctx, err := e.holder.Context()
	if err != nil {
		return false, err
	}
	for _, t := range ctx.Triggers() {
		if !t.MatchesByContainerMatcher() {
			continue
		}
		bundle, err := e.registry.Lookup(t.Type)
		if err != nil {
			return false, errors.Wrapf(err, "trigger %q", t.ID)
		}
		ok, err := e.matchesContainer(bundle, t, input)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ResolveContainers implements Interpreter
func (e *Evaluator) ResolveContainers(input interface{}) ([]interface{}, error) {
	ctx, err := e.holder.Context()
	if err != nil {
		return nil, err
	}

	var out []interface{}
	seen := make(map[interface{}]bool)
	resolved := false

	for _, t := range ctx.Triggers() {
		if !t.MatchesByContainerMatcher() {
			continue
		}
		bundle, err := e.registry.Lookup(t.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "trigger %q", t.ID)
		}
		ok, err := e.matchesContainer(bundle, t, input)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		resolved = true
		elems, err := e.resolve(input, t, make(map[interface{}]bool))
		if err != nil {
			return nil, err
		}
		for _, el := range elems {
			id := plugin.Identity(el)
			if !seen[id] {
				seen[id] = true
				out = append(out, el)
			}
		}
	}

	if !resolved {
		return []interface{}{input}, nil
	}
	return out, nil
}

// ResolveContainerElements implements Interpreter
func (e *Evaluator) ResolveContainerElements(input interface{}, t *configstore.Trigger) ([]interface{}, error) {
	if t == nil {
		return nil, errors.NewInvalidRequestError("nil trigger")
	}
	if !t.MatchesByContainerMatcher() {
		return []interface{}{input}, nil
	}
	return e.resolve(input, t, make(map[interface{}]bool))
}

// resolve flattens one container. Leaves are kept when some trigger accepts
// them. Nested containers are descended into only when a container matcher
// accepting the outermost input retrieves recursively.
func (e *Evaluator) resolve(input interface{}, t *configstore.Trigger, visiting map[interface{}]bool) ([]interface{}, error) {
	bundle, err := e.registry.Lookup(t.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "trigger %q", t.ID)
	}
	if bundle.Resolver == nil {
		return nil, errors.NewConfigurationError("technology %q of trigger %q resolves no containers", t.Type, t.ID)
	}

	recursive, _, err := e.acceptingContainerMatcher(bundle, t, input)
	if err != nil {
		return nil, err
	}
	return e.flatten(bundle, input, t, recursive, visiting)
}

// flatten tracks the identities on the current descent path in visiting
func (e *Evaluator) flatten(bundle plugin.Bundle, input interface{}, t *configstore.Trigger, recursive bool, visiting map[interface{}]bool) ([]interface{}, error) {
	id := plugin.Identity(input)
	if visiting[id] {
		return nil, errors.WithHintf(cyclicInput(input), "while resolving trigger %q", t.ID)
	}
	visiting[id] = true
	defer delete(visiting, id)

	children, err := bundle.Resolver.Elements(input, e.charset)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving container of trigger %q", t.ID)
	}

	var out []interface{}
	for _, child := range children {
		if bundle.Resolver.IsContainer(child) {
			if !recursive {
				continue
			}
			nested, err := e.flatten(bundle, child, t, recursive, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}

		triggers, err := e.MatchingTriggers(child)
		if err != nil {
			return nil, err
		}
		if len(triggers) > 0 {
			out = append(out, child)
		}
	}

	logger.Debugw("Resolved container",
		logger.FieldTrigger, t.ID,
		logger.FieldCount, len(out))
	return out, nil
}

// InputObjects implements Interpreter
func (e *Evaluator) InputObjects(input interface{}, charset string, recursive bool) ([]interface{}, error) {
	resolver, err := e.resolverFor(input)
	if err != nil {
		return nil, err
	}
	return e.inputObjects(resolver, input, charset, recursive, make(map[interface{}]bool))
}

func (e *Evaluator) inputObjects(resolver plugin.ContainerResolver, input interface{}, charset string, recursive bool, visiting map[interface{}]bool) ([]interface{}, error) {
	id := plugin.Identity(input)
	if visiting[id] {
		return nil, cyclicInput(input)
	}
	visiting[id] = true
	defer delete(visiting, id)

	children, err := resolver.Elements(input, charset)
	if err != nil {
		return nil, err
	}
	if !recursive {
		return children, nil
	}

	var out []interface{}
	for _, child := range children {
		if !resolver.IsContainer(child) {
			out = append(out, child)
			continue
		}
		nested, err := e.inputObjects(resolver, child, charset, recursive, visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

func cyclicInput(input interface{}) error {
	err := errors.Newf("container input %T refers back to itself", input)
	return errors.Mark(errors.Mark(err, errors.ErrCyclicInput), errors.ErrConfigurationInvalid)
}

func (e *Evaluator) resolverFor(input interface{}) (plugin.ContainerResolver, error) {
	for _, name := range e.registry.List() {
		bundle, err := e.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		if bundle.Resolver != nil && bundle.Resolver.IsContainer(input) {
			return bundle.Resolver, nil
		}
	}
	return nil, errors.NewInvalidRequestError("%T is not a container input of any registered technology", input)
}

// Read implements Interpreter
func (e *Evaluator) Read(technology, path, charset string, args ...interface{}) (interface{}, error) {
	reader, err := e.registry.InputReader(technology)
	if err != nil {
		return nil, err
	}
	input, err := reader.Read(path, charset, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s reader", technology)
	}
	logger.Debugw("Read input",
		logger.FieldTechnology, technology,
		logger.FieldPath, path)
	return input, nil
}
