package cache

// Stats is a point-in-time view of cache activity counters.
type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Bytes     int    `json:"bytes"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Inserts   uint64 `json:"inserts"`
	Evictions uint64 `json:"evictions"`
	Rejected  uint64 `json:"rejected"`
}

// EntryInfo describes a cached object without exposing its bytes.
type EntryInfo struct {
	Host     string `json:"host"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
	LastUsed uint64 `json:"last_used"`
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{
		Entries:   len(c.slots),
		Capacity:  cap(c.slots),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Inserts:   c.inserts.Load(),
		Evictions: c.evictions.Load(),
		Rejected:  c.rejected.Load(),
	}
	for _, e := range c.slots {
		st.Bytes += len(e.data)
	}
	return st
}

// Snapshot lists the entries in slot order.
func (c *Cache) Snapshot() []EntryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]EntryInfo, 0, len(c.slots))
	for _, e := range c.slots {
		out = append(out, EntryInfo{
			Host:     e.key.Host,
			Path:     e.key.Path,
			Size:     len(e.data),
			LastUsed: e.lastUsed.Load(),
		})
	}
	return out
}
