package cache

import (
	"errors"
	"sync"
	"sync/atomic"
)

const (
	// DefaultCapacity is the number of objects the proxy keeps.
	DefaultCapacity = 10

	// DefaultMaxObjectSize is the largest response, in bytes, that is cached.
	DefaultMaxObjectSize = 102400
)

// ErrTooLarge is returned by Insert for objects over the size ceiling.
var ErrTooLarge = errors.New("cache: object exceeds max object size")

// Key identifies a cached object. Matching is exact and case-sensitive.
type Key struct {
	Host string
	Path string
}

type entry struct {
	key      Key
	data     []byte
	lastUsed atomic.Uint64
}

// Cache is a fixed-capacity object store shared by all proxy workers.
//
// Lookups take the read lock and may run concurrently with each other.
// Inserts take the write lock and exclude all lookups and other inserts.
// When full, Insert overwrites the slot with the smallest last-used
// timestamp, preferring the lowest index on ties.
type Cache struct {
	maxObjectSize int

	mu    sync.RWMutex
	slots []*entry // len(slots) is the entry count; cap(slots) the capacity

	// clock is bumped by hits while only the read lock is held.
	clock atomic.Uint64

	hits      atomic.Uint64
	misses    atomic.Uint64
	inserts   atomic.Uint64
	evictions atomic.Uint64
	rejected  atomic.Uint64
}

// New returns an empty cache holding at most capacity objects of at most
// maxObjectSize bytes each.
func New(capacity, maxObjectSize int) *Cache {
	if capacity < 1 {
		panic("cache: capacity must be positive")
	}
	return &Cache{
		maxObjectSize: maxObjectSize,
		slots:         make([]*entry, 0, capacity),
	}
}

// MaxObjectSize returns the per-object size ceiling.
func (c *Cache) MaxObjectSize() int {
	return c.maxObjectSize
}

// Cap returns the maximum number of entries.
func (c *Cache) Cap() int {
	return cap(c.slots)
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// Lookup returns a copy of the object stored for host and path.
//
// A hit refreshes the entry's last-used timestamp. A miss has no effect
// beyond the miss counter.
func (c *Cache) Lookup(host, path string) ([]byte, bool) {
	k := Key{Host: host, Path: path}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.slots {
		if e.key != k {
			continue
		}
		e.lastUsed.Store(c.tick())
		c.hits.Add(1)
		return append([]byte(nil), e.data...), true
	}

	c.misses.Add(1)
	return nil, false
}

// Insert stores data under host and path.
//
// An existing entry for the same key is replaced in place. Otherwise, if the
// cache is full, the least recently used entry is overwritten.
func (c *Cache) Insert(host, path string, data []byte) error {
	if len(data) > c.maxObjectSize {
		c.rejected.Add(1)
		return ErrTooLarge
	}

	e := &entry{
		key:  Key{Host: host, Path: path},
		data: append([]byte(nil), data...),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e.lastUsed.Store(c.tick())
	c.inserts.Add(1)

	if i := c.indexOf(e.key); i >= 0 {
		c.slots[i] = e
		return nil
	}

	if len(c.slots) < cap(c.slots) {
		c.slots = append(c.slots, e)
		return nil
	}

	c.slots[c.victim()] = e
	c.evictions.Add(1)
	return nil
}

// tick advances the logical clock and returns the new value.
func (c *Cache) tick() uint64 {
	return c.clock.Add(1)
}

// indexOf returns the slot holding k, or -1. Caller holds mu.
func (c *Cache) indexOf(k Key) int {
	for i, e := range c.slots {
		if e.key == k {
			return i
		}
	}
	return -1
}

// victim returns the index of the least recently used slot. Caller holds mu
// for writing, so no lastUsed value can change underneath it.
func (c *Cache) victim() int {
	idx := 0
	oldest := c.slots[0].lastUsed.Load()
	for i := 1; i < len(c.slots); i++ {
		if ts := c.slots[i].lastUsed.Load(); ts < oldest {
			idx, oldest = i, ts
		}
	}
	return idx
}
