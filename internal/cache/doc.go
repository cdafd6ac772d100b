// Package cache implements the proxy's shared in-memory object cache.
//
// The cache holds a fixed number of whole upstream responses keyed by
// (host, path). Recency is tracked with a logical clock rather than wall
// time: every hit and every insert takes the next tick, and a full cache
// evicts the entry with the oldest tick.
//
// Only the number of entries is bounded. Each entry is limited to the
// configured max object size, so total memory is at most
// capacity × max object size.
//
// Locking uses sync.RWMutex. Unlike a first-reader/last-reader semaphore
// scheme, a blocked writer stops new readers from entering, so a steady
// stream of lookups cannot starve inserts.
package cache
