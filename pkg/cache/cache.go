// Package cache provides the memo tables used while analysing one module.
//
// A Memo is either unbounded (a plain map) or bounded by an LRU policy.
// Evicting a memoized result never changes an answer, only how often it is
// recomputed. Memos are not safe for concurrent use.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo defines the operations a memo table supports.
type Memo[K comparable, V any] interface {
	// Get retrieves a value by key.
	Get(key K) (V, bool)

	// Set stores a key-value pair. A bounded memo may evict the least
	// recently used entry.
	Set(key K, value V)

	// Delete removes a key.
	Delete(key K)

	// Clear removes all entries.
	Clear()

	// Len returns the number of entries.
	Len() int

	// Stats returns hit and miss counters.
	Stats() Stats
}

// Stats holds memo statistics.
type Stats struct {
	Length    int   `json:"length"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns the fraction of lookups that were hits.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// Options configures a memo.
type Options[K comparable, V any] struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// OnEvict is called when a bounded memo evicts an entry.
	OnEvict func(key K, value V)
}

// New creates a memo with the given options.
func New[K comparable, V any](opts Options[K, V]) Memo[K, V] {
	if opts.MaxSize <= 0 {
		return &mapMemo[K, V]{items: make(map[K]V)}
	}
	m := &lruMemo[K, V]{onEvict: opts.OnEvict}
	// lru.NewWithEvict only fails for a non-positive size.
	m.items, _ = lru.NewWithEvict[K, V](opts.MaxSize, m.evicted)
	return m
}

type counters struct {
	hits      int64
	misses    int64
	evictions int64
}

func (c *counters) record(found bool) {
	if found {
		c.hits++
	} else {
		c.misses++
	}
}

// mapMemo never evicts.
type mapMemo[K comparable, V any] struct {
	counters
	items map[K]V
}

func (m *mapMemo[K, V]) Get(key K) (V, bool) {
	v, ok := m.items[key]
	m.record(ok)
	return v, ok
}

func (m *mapMemo[K, V]) Set(key K, value V) { m.items[key] = value }
func (m *mapMemo[K, V]) Delete(key K)       { delete(m.items, key) }
func (m *mapMemo[K, V]) Clear()             { m.items = make(map[K]V) }
func (m *mapMemo[K, V]) Len() int           { return len(m.items) }

func (m *mapMemo[K, V]) Stats() Stats {
	return Stats{Length: len(m.items), HitCount: m.hits, MissCount: m.misses}
}

// lruMemo keeps at most MaxSize entries.
type lruMemo[K comparable, V any] struct {
	counters
	items   *lru.Cache[K, V]
	onEvict func(K, V)

	// removing is set while entries are dropped on request rather than
	// pushed out by capacity.
	removing bool
}

func (m *lruMemo[K, V]) evicted(key K, value V) {
	if m.removing {
		return
	}
	m.evictions++
	if m.onEvict != nil {
		m.onEvict(key, value)
	}
}

func (m *lruMemo[K, V]) Get(key K) (V, bool) {
	v, ok := m.items.Get(key)
	m.record(ok)
	return v, ok
}

func (m *lruMemo[K, V]) Set(key K, value V) { m.items.Add(key, value) }
func (m *lruMemo[K, V]) Len() int           { return m.items.Len() }

func (m *lruMemo[K, V]) Delete(key K) {
	m.removing = true
	m.items.Remove(key)
	m.removing = false
}

// Clear drops every entry without counting them as evictions.
func (m *lruMemo[K, V]) Clear() {
	m.removing = true
	m.items.Purge()
	m.removing = false
}

func (m *lruMemo[K, V]) Stats() Stats {
	return Stats{
		Length:    m.items.Len(),
		HitCount:  m.hits,
		MissCount: m.misses,
		Evictions: m.evictions,
	}
}
