package window

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const registryShards = 16

// CounterFactory creates the counter stored for a label
type CounterFactory func(horizon int64, label string) (BaseWindowCounter, error)

// NewWindowCounterFactory returns a CounterFactory creating WindowCounters
func NewWindowCounterFactory() CounterFactory {
	return func(horizon int64, label string) (BaseWindowCounter, error) {
		return NewWindowCounter(horizon, label)
	}
}

// NewExactCounterFactory returns a CounterFactory creating ExactCounters
func NewExactCounterFactory() CounterFactory {
	return func(horizon int64, label string) (BaseWindowCounter, error) {
		return NewExactCounter(horizon, label)
	}
}

type registryEntry struct {
	lock    sync.Mutex
	counter BaseWindowCounter
}

type registryShard struct {
	lock    sync.RWMutex
	entries map[string]*registryEntry
}

// Registry maps labels to counters sharing one retention horizon. It's owned
// by the caller; there is no package level registry.
// Labels are spread over shards by their xxhash so that lookups of different
// labels rarely contend, and every counter is guarded by its own lock: inserts
// into distinct labels run concurrently while inserts and counts on the same
// label are serialized.
type Registry struct {
	horizon    int64
	newCounter CounterFactory
	shards     [registryShards]registryShard
}

// NewRegistry creates a Registry of WindowCounters with retention horizon _horizon_
func NewRegistry(horizon int64) (*Registry, error) {
	return NewRegistryWithFactory(horizon, NewWindowCounterFactory())
}

// NewRegistryWithFactory creates a Registry whose counters are built by _factory_
func NewRegistryWithFactory(horizon int64, factory CounterFactory) (*Registry, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("dgimstat: retention horizon must be at least 1, got %d: %w", horizon, ErrInvalidConfiguration)
	}
	r := &Registry{horizon: horizon, newCounter: factory}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*registryEntry)
	}
	return r, nil
}

func (r *Registry) shard(label string) *registryShard {
	return &r.shards[xxhash.Sum64String(label)%registryShards]
}

// Horizon returns the retention horizon of every counter in the registry
func (r *Registry) Horizon() int64 {
	return r.horizon
}

// Add creates the counter for _label_. Adding an existing label is a no-op.
func (r *Registry) Add(label string) error {
	s := r.shard(label)
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.entries[label]; ok {
		return nil
	}
	counter, err := r.newCounter(r.horizon, label)
	if err != nil {
		return err
	}
	s.entries[label] = &registryEntry{counter: counter}
	return nil
}

// Remove discards the counter for _label_ and reports whether it existed
func (r *Registry) Remove(label string) bool {
	s := r.shard(label)
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.entries[label]
	delete(s.entries, label)
	return ok
}

func (r *Registry) entry(label string) (*registryEntry, error) {
	s := r.shard(label)
	s.lock.RLock()
	defer s.lock.RUnlock()
	e, ok := s.entries[label]
	if !ok {
		return nil, fmt.Errorf("dgimstat: no counter for %q: %w", label, ErrUnknownCounter)
	}
	return e, nil
}

// Insert records the event _bit_ at _timestamp_ in the counter for _label_
func (r *Registry) Insert(label string, timestamp int64, bit bool) error {
	e, err := r.entry(label)
	if err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.counter.Insert(timestamp, bit)
	return nil
}

// Count returns the count of the last _k_ positions of the counter for _label_
func (r *Registry) Count(label string, k int64) (uint64, error) {
	e, err := r.entry(label)
	if err != nil {
		return 0, err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.counter.Count(k)
}

// View runs _fn_ on the counter for _label_ while holding its lock.
// _fn_ must not keep the counter after returning.
func (r *Registry) View(label string, fn func(BaseWindowCounter)) error {
	e, err := r.entry(label)
	if err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	fn(e.counter)
	return nil
}

// Labels returns the sorted labels held by the registry
func (r *Registry) Labels() []string {
	var labels []string
	for i := range r.shards {
		s := &r.shards[i]
		s.lock.RLock()
		for label := range s.entries {
			labels = append(labels, label)
		}
		s.lock.RUnlock()
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of counters in the registry
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.lock.RLock()
		n += len(s.entries)
		s.lock.RUnlock()
	}
	return n
}
