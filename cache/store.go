// Package cache memoizes the deterministic queries of trigger matching and
// generation planning for one engine instance.
//
// Entries are keyed by operation name plus the value-equality key of every
// argument (see plugin.Key). Arguments that cannot be keyed bypass the cache.
// Errors are never stored, so a failed computation is retried on the next
// call. Purge drops every entry and must be called whenever the underlying
// configuration is reloaded.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/plugin"
)

// DefaultSize is used when a non-positive size is configured
const DefaultSize = 4096

// Stats counts cache traffic
type Stats struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Computations uint64 `json:"computations"`
	Bypassed     uint64 `json:"bypassed"`
}

// Store is a bounded, concurrency-safe memo table. Concurrent misses on one
// key share a single computation.
type Store struct {
	entries *lru.Cache[string, interface{}]
	group   singleflight.Group

	// mu orders Purge against stores: a computation started before a purge
	// never lands in the table after it
	mu    sync.RWMutex
	epoch uint64

	hits         atomic.Uint64
	misses       atomic.Uint64
	computations atomic.Uint64
	bypassed     atomic.Uint64
}

// NewStore creates a store holding at most size entries
func NewStore(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, interface{}](size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cache")
	}
	return &Store{entries: entries}, nil
}

// Purge drops every entry
func (s *Store) Purge() {
	s.mu.Lock()
	s.epoch++
	n := s.entries.Len()
	s.entries.Purge()
	s.mu.Unlock()

	logger.Debugw("Cache purged", logger.FieldCount, n)
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	return s.entries.Len()
}

// Stats returns a snapshot of the traffic counters
func (s *Store) Stats() Stats {
	return Stats{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Computations: s.computations.Load(),
		Bypassed:     s.bypassed.Load(),
	}
}

// do returns the memoized result of compute for op and args
func do[T any](s *Store, op string, compute func() (T, error), args ...interface{}) (T, error) {
	key, ok := keyOf(op, args)
	if !ok {
		s.bypassed.Add(1)
		s.computations.Add(1)
		return compute()
	}

	if v, found := s.entries.Get(key); found {
		s.hits.Add(1)
		return v.(T), nil
	}
	s.misses.Add(1)

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	v, err, _ := s.group.Do(strconv.FormatUint(epoch, 10)+"#"+key, func() (interface{}, error) {
		// a flight that finished after our lookup may already have stored it
		if v, found := s.entries.Get(key); found {
			return v, nil
		}
		s.computations.Add(1)
		v, err := compute()
		if err != nil {
			return nil, err
		}
		s.mu.RLock()
		if s.epoch == epoch {
			s.entries.Add(key, v)
		}
		s.mu.RUnlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func keyOf(op string, args []interface{}) (string, bool) {
	var b strings.Builder
	b.WriteString(op)
	for _, a := range args {
		k, ok := plugin.Key(a)
		if !ok {
			return "", false
		}
		b.WriteString("\x00")
		b.WriteString(k)
	}
	return b.String(), true
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}
