package proxy

import (
	"github.com/rs/zerolog"

	"github.com/die-net/proxycache/internal/cache"
	"github.com/die-net/proxycache/internal/dialer"
)

const (
	// DefaultWorkers is the number of transaction workers.
	DefaultWorkers = 4

	// DefaultQueueDepth is how many accepted connections may wait for a
	// worker before accept stalls.
	DefaultQueueDepth = 16
)

// Config sizes the worker pool and supplies the shared cache and dialer.
type Config struct {
	// Workers and QueueDepth fall back to the defaults above when zero.
	Workers    int
	QueueDepth int

	// Cache is shared by all workers. A nil Cache gets one built with
	// cache.DefaultCapacity and cache.DefaultMaxObjectSize.
	Cache *cache.Cache

	// Dialer opens origin connections. Nil dials directly.
	Dialer dialer.Dialer

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.Cache == nil {
		c.Cache = cache.New(cache.DefaultCapacity, cache.DefaultMaxObjectSize)
	}
	if c.Dialer == nil {
		c.Dialer = dialer.NewDirectDialer(dialer.Config{})
	}
	return c
}
