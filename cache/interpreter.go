package cache

import (
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/trigger"
)

// triggerKey identifies a trigger within one configuration epoch
type triggerKey struct {
	ID string
}

func (k triggerKey) CacheKey() string { return k.ID }

// Interpreter memoizes a trigger.Interpreter. Matches and Read pass through.
type Interpreter struct {
	next  trigger.Interpreter
	store *Store
}

var _ trigger.Interpreter = (*Interpreter)(nil)

// NewInterpreter decorates next with store
func NewInterpreter(next trigger.Interpreter, store *Store) *Interpreter {
	return &Interpreter{next: next, store: store}
}

// MatchingTriggers implements trigger.Interpreter
func (c *Interpreter) MatchingTriggers(input interface{}) ([]*configstore.Trigger, error) {
	out, err := do(c.store, "matchingTriggers", func() ([]*configstore.Trigger, error) {
		return c.next.MatchingTriggers(input)
	}, input)
	return cloneSlice(out), err
}

// MatchingTriggerIDs implements trigger.Interpreter
func (c *Interpreter) MatchingTriggerIDs(input interface{}) ([]string, error) {
	out, err := do(c.store, "matchingTriggerIds", func() ([]string, error) {
		return c.next.MatchingTriggerIDs(input)
	}, input)
	return cloneSlice(out), err
}

// Matches implements trigger.Interpreter
func (c *Interpreter) Matches(t *configstore.Trigger, input interface{}) (bool, error) {
	return c.next.Matches(t, input)
}

// CombinesMultipleInputs implements trigger.Interpreter
func (c *Interpreter) CombinesMultipleInputs(input interface{}) (bool, error) {
	return do(c.store, "combinesMultipleInputs", func() (bool, error) {
		return c.next.CombinesMultipleInputs(input)
	}, input)
}

// ResolveContainers implements trigger.Interpreter
func (c *Interpreter) ResolveContainers(input interface{}) ([]interface{}, error) {
	out, err := do(c.store, "resolveContainers", func() ([]interface{}, error) {
		return c.next.ResolveContainers(input)
	}, input)
	return cloneSlice(out), err
}

// ResolveContainerElements implements trigger.Interpreter
func (c *Interpreter) ResolveContainerElements(input interface{}, t *configstore.Trigger) ([]interface{}, error) {
	if t == nil {
		return c.next.ResolveContainerElements(input, t)
	}
	out, err := do(c.store, "resolveContainerElements", func() ([]interface{}, error) {
		return c.next.ResolveContainerElements(input, t)
	}, input, triggerKey{ID: t.ID})
	return cloneSlice(out), err
}

// InputObjects implements trigger.Interpreter
func (c *Interpreter) InputObjects(input interface{}, charset string, recursive bool) ([]interface{}, error) {
	out, err := do(c.store, "inputObjects", func() ([]interface{}, error) {
		return c.next.InputObjects(input, charset, recursive)
	}, input, charset, recursive)
	return cloneSlice(out), err
}

// Read implements trigger.Interpreter. File content may change between
// calls, so reads are never memoized.
func (c *Interpreter) Read(technology, path, charset string, args ...interface{}) (interface{}, error) {
	return c.next.Read(technology, path, charset, args...)
}
