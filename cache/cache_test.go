package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugins/object"
)

// countingInterpreter answers from fixed data and counts calls per method
type countingInterpreter struct {
	calls   sync.Map
	delay   time.Duration
	fail    atomic.Bool
	trigger *configstore.Trigger
}

func (f *countingInterpreter) count(op string) int64 {
	v, _ := f.calls.LoadOrStore(op, new(atomic.Int64))
	return v.(*atomic.Int64).Load()
}

func (f *countingInterpreter) hit(op string) error {
	v, _ := f.calls.LoadOrStore(op, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	time.Sleep(f.delay)
	if f.fail.Load() {
		return errors.New("transient")
	}
	return nil
}

func (f *countingInterpreter) MatchingTriggers(input interface{}) ([]*configstore.Trigger, error) {
	if err := f.hit("matchingTriggers"); err != nil {
		return nil, err
	}
	return []*configstore.Trigger{f.trigger}, nil
}

func (f *countingInterpreter) MatchingTriggerIDs(input interface{}) ([]string, error) {
	if err := f.hit("matchingTriggerIds"); err != nil {
		return nil, err
	}
	return []string{f.trigger.ID}, nil
}

func (f *countingInterpreter) Matches(*configstore.Trigger, interface{}) (bool, error) {
	return true, f.hit("matches")
}

func (f *countingInterpreter) CombinesMultipleInputs(input interface{}) (bool, error) {
	_, ok := input.(*object.Collection)
	return ok, f.hit("combines")
}

func (f *countingInterpreter) ResolveContainers(input interface{}) ([]interface{}, error) {
	if err := f.hit("resolveContainers"); err != nil {
		return nil, err
	}
	return []interface{}{input}, nil
}

func (f *countingInterpreter) ResolveContainerElements(input interface{}, t *configstore.Trigger) ([]interface{}, error) {
	if err := f.hit("resolveContainerElements"); err != nil {
		return nil, err
	}
	return []interface{}{input}, nil
}

func (f *countingInterpreter) InputObjects(input interface{}, charset string, recursive bool) ([]interface{}, error) {
	if err := f.hit("inputObjects"); err != nil {
		return nil, err
	}
	return []interface{}{input}, nil
}

func (f *countingInterpreter) Read(technology, path, charset string, args ...interface{}) (interface{}, error) {
	return path, f.hit("read")
}

func newCached(t *testing.T, size int) (*Interpreter, *countingInterpreter, *Store) {
	t.Helper()
	store, err := NewStore(size)
	require.NoError(t, err)
	inner := &countingInterpreter{trigger: &configstore.Trigger{ID: "java_pojo", Type: object.Technology}}
	return NewInterpreter(inner, store), inner, store
}

func order() *object.Input {
	return &object.Input{Name: "Order", Values: map[string]interface{}{"isEntity": true}}
}

func TestInterpreter_Transparency(t *testing.T) {
	cached, inner, store := newCached(t, 16)

	for i := 0; i < 3; i++ {
		ids, err := cached.MatchingTriggerIDs(order())
		require.NoError(t, err)
		assert.Equal(t, []string{"java_pojo"}, ids)

		triggers, err := cached.MatchingTriggers(order())
		require.NoError(t, err)
		assert.Same(t, inner.trigger, triggers[0])

		combines, err := cached.CombinesMultipleInputs(order())
		require.NoError(t, err)
		assert.False(t, combines)
	}

	assert.EqualValues(t, 1, inner.count("matchingTriggerIds"))
	assert.EqualValues(t, 1, inner.count("matchingTriggers"))
	assert.EqualValues(t, 1, inner.count("combines"))
	assert.Equal(t, Stats{Hits: 6, Misses: 3, Computations: 3}, store.Stats())

	other := &object.Input{Name: "Order", Values: map[string]interface{}{"isEntity": false}}
	_, err := cached.MatchingTriggerIDs(other)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.count("matchingTriggerIds"), "different values are different keys")
}

func TestInterpreter_PassThrough(t *testing.T) {
	cached, inner, _ := newCached(t, 16)

	for i := 0; i < 2; i++ {
		_, err := cached.Read(object.Technology, "order.yaml", "utf-8")
		require.NoError(t, err)
		_, err = cached.Matches(inner.trigger, order())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, inner.count("read"))
	assert.EqualValues(t, 2, inner.count("matches"))
}

func TestInterpreter_ArgumentsAreKeyed(t *testing.T) {
	cached, inner, _ := newCached(t, 16)
	batch := &object.Collection{Name: "batch", Items: []interface{}{order()}}

	_, err := cached.InputObjects(batch, "utf-8", false)
	require.NoError(t, err)
	_, err = cached.InputObjects(batch, "utf-8", true)
	require.NoError(t, err)
	_, err = cached.InputObjects(batch, "utf-8", true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.count("inputObjects"))

	_, err = cached.ResolveContainerElements(batch, inner.trigger)
	require.NoError(t, err)
	_, err = cached.ResolveContainerElements(batch, &configstore.Trigger{ID: "other"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.count("resolveContainerElements"))
}

func TestInterpreter_ReturnedSlicesAreCopies(t *testing.T) {
	cached, _, _ := newCached(t, 16)

	ids, err := cached.MatchingTriggerIDs(order())
	require.NoError(t, err)
	ids[0] = "mutated"

	again, err := cached.MatchingTriggerIDs(order())
	require.NoError(t, err)
	assert.Equal(t, []string{"java_pojo"}, again)
}

func TestInterpreter_ErrorsAreNotCached(t *testing.T) {
	cached, inner, store := newCached(t, 16)

	inner.fail.Store(true)
	_, err := cached.ResolveContainers(order())
	require.Error(t, err)
	assert.Zero(t, store.Len())

	inner.fail.Store(false)
	out, err := cached.ResolveContainers(order())
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.EqualValues(t, 2, inner.count("resolveContainers"))
}

func TestInterpreter_UnkeyableArgumentsBypass(t *testing.T) {
	cached, inner, store := newCached(t, 16)
	unkeyable := map[string]interface{}{"fn": func() {}}

	for i := 0; i < 2; i++ {
		_, err := cached.MatchingTriggerIDs(unkeyable)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, inner.count("matchingTriggerIds"))
	assert.EqualValues(t, 2, store.Stats().Bypassed)
	assert.Zero(t, store.Len())
}

// entityDoc is an input from a technology that keeps its matching state
// unexported, so its JSON encoding is the same for every instance
type entityDoc struct {
	Name   string
	entity bool
}

// entityInterpreter matches java_pojo only for entity documents
type entityInterpreter struct {
	countingInterpreter
}

func (f *entityInterpreter) MatchingTriggerIDs(input interface{}) ([]string, error) {
	if err := f.hit("matchingTriggerIds"); err != nil {
		return nil, err
	}
	if doc, ok := input.(*entityDoc); ok && doc.entity {
		return []string{f.trigger.ID}, nil
	}
	return []string{}, nil
}

func TestInterpreter_HiddenStateIsNotConflated(t *testing.T) {
	store, err := NewStore(16)
	require.NoError(t, err)
	inner := &entityInterpreter{countingInterpreter{trigger: &configstore.Trigger{ID: "java_pojo", Type: object.Technology}}}
	cached := NewInterpreter(inner, store)

	entity := &entityDoc{Name: "Order", entity: true}
	plain := &entityDoc{Name: "Order"}

	ids, err := cached.MatchingTriggerIDs(entity)
	require.NoError(t, err)
	assert.Equal(t, []string{"java_pojo"}, ids)

	ids, err = cached.MatchingTriggerIDs(plain)
	require.NoError(t, err)
	direct, err := inner.MatchingTriggerIDs(plain)
	require.NoError(t, err)
	assert.Equal(t, direct, ids)
	assert.Empty(t, ids)

	assert.EqualValues(t, 2, store.Stats().Bypassed)
	assert.Zero(t, store.Len())
}

func TestInterpreter_ConcurrentMissComputesOnce(t *testing.T) {
	cached, inner, _ := newCached(t, 16)
	inner.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ids, err := cached.MatchingTriggerIDs(order())
			assert.NoError(t, err)
			assert.Equal(t, []string{"java_pojo"}, ids)
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, inner.count("matchingTriggerIds"))
}

func TestStore_Purge(t *testing.T) {
	cached, inner, store := newCached(t, 16)

	_, err := cached.MatchingTriggerIDs(order())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	store.Purge()
	assert.Zero(t, store.Len())

	_, err = cached.MatchingTriggerIDs(order())
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.count("matchingTriggerIds"))
}

func TestStore_Bounded(t *testing.T) {
	cached, _, store := newCached(t, 2)

	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := cached.MatchingTriggerIDs(&object.Input{Name: name})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Len())
}

func TestNewStore_DefaultSize(t *testing.T) {
	store, err := NewStore(0)
	require.NoError(t, err)
	assert.NotNil(t, store)
}
