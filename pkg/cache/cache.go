// Package cache provides in-memory memoization of daemon responses.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a Memo created with a non-positive limit.
const DefaultMaxEntries = 1024

// Key builds the cache key for a path inside a folder.
func Key(folder, path string) string {
	return folder + "\x00" + strings.Trim(path, "/")
}

func folderOf(key string) string {
	if i := strings.IndexByte(key, 0); i >= 0 {
		return key[:i]
	}
	return key
}

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// Memo is a bounded map of values keyed by Key. When full, the entry with
// the oldest access time is evicted.
type Memo[V any] struct {
	maxEntries int

	mu      sync.Mutex
	entries map[string]*entry[V]
	now     func() time.Time

	// Bumped on every invalidation so a load that raced one is not stored.
	gens  map[string]uint64
	epoch uint64
}

type generation struct {
	epoch, folder uint64
}

// New creates a memo holding at most maxEntries values.
func New[V any](maxEntries int) *Memo[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memo[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
		now:        time.Now,
		gens:       make(map[string]uint64),
	}
}

// Get returns the cached value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastAccess = m.now()
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry if needed.
func (m *Memo[V]) Put(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value)
}

// Must be called with lock held.
func (m *Memo[V]) put(key string, value V) {
	if e, ok := m.entries[key]; ok {
		e.value = value
		e.lastAccess = m.now()
		return
	}
	for len(m.entries) >= m.maxEntries {
		if !m.evictOldest() {
			break
		}
	}
	m.entries[key] = &entry[V]{value: value, lastAccess: m.now()}
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Errors from load are returned as-is and nothing is cached.
// The lock is not held while load runs, so concurrent misses may load twice.
// A value loaded while the key's folder was invalidated is returned but not
// stored.
func (m *Memo[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		e.lastAccess = m.now()
		m.mu.Unlock()
		return e.value, nil
	}
	gen := m.genOf(key)
	m.mu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.genOf(key) == gen {
		m.put(key, v)
	}
	return v, nil
}

// Must be called with lock held.
func (m *Memo[V]) genOf(key string) generation {
	return generation{epoch: m.epoch, folder: m.gens[folderOf(key)]}
}

// Invalidate drops a single key.
func (m *Memo[V]) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.gens[folderOf(key)]++
}

// InvalidateFolder drops every key belonging to folder and returns how many
// were removed.
func (m *Memo[V]) InvalidateFolder(folder string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gens[folder]++
	count := 0
	for key := range m.entries {
		if folderOf(key) == folder {
			delete(m.entries, key)
			count++
		}
	}
	return count
}

// Clear removes all entries and returns how many there were.
func (m *Memo[V]) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.entries)
	m.entries = make(map[string]*entry[V])
	m.epoch++
	return count
}

// Len returns the number of cached entries.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictOldest removes the least recently accessed entry.
// Must be called with lock held.
func (m *Memo[V]) evictOldest() bool {
	var oldest *entry[V]
	var oldestKey string

	for key, e := range m.entries {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldest = e
			oldestKey = key
		}
	}

	if oldest == nil {
		return false
	}
	delete(m.entries, oldestKey)
	return true
}
