// Package cache provides a version-aware memo table for values derived
// from document snapshots. An entry is valid only for the exact document
// version it was computed from; anything else is a miss.
package cache

import (
	"sync"
	"time"

	"interlace/internal/document"
)

// ParseFunc computes the derived value for a document snapshot.
type ParseFunc[V any] func(doc *document.Document) (V, error)

// Options bound the size and lifetime of cached entries.
type Options struct {
	// MaxEntries is the hard capacity; the least-recently-accessed entry
	// is evicted when it is exceeded.
	MaxEntries int
	// CleanupInterval drives the periodic sweep that drops entries not
	// accessed within one interval. Zero disables the sweep.
	CleanupInterval time.Duration
}

const defaultMaxEntries = 10

type entry[V any] struct {
	version    int32
	value      V
	lastAccess time.Time
}

// Cache memoizes one derived value per document URI, keyed by version.
type Cache[V any] struct {
	mu       sync.Mutex
	parse    ParseFunc[V]
	opts     Options
	entries  map[string]*entry[V]
	stop     chan struct{}
	disposed bool
}

// New creates a cache around parse. A sweep goroutine is started when
// opts.CleanupInterval is positive; it shares the cache mutex with
// request-path access.
func New[V any](parse ParseFunc[V], opts Options) *Cache[V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	c := &Cache[V]{
		parse:   parse,
		opts:    opts,
		entries: make(map[string]*entry[V]),
		stop:    make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.sweepLoop()
	}
	return c
}

// Get returns the cached value for doc.URI when the stored version equals
// doc.Version, recomputing and storing it otherwise. A parse error is
// returned to the caller and nothing is stored.
func (c *Cache[V]) Get(doc *document.Document) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[doc.URI]; ok && e.version == doc.Version {
		e.lastAccess = time.Now()
		return e.value, nil
	}

	value, err := c.parse(doc)
	if err != nil {
		var zero V
		return zero, err
	}

	c.entries[doc.URI] = &entry[V]{
		version:    doc.Version,
		value:      value,
		lastAccess: time.Now(),
	}
	c.evictLocked()
	return value, nil
}

// Len reports the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// OnDocumentRemoved drops the entry for uri unconditionally.
func (c *Cache[V]) OnDocumentRemoved(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
}

// Dispose clears all entries and cancels the sweep. Safe to call twice.
func (c *Cache[V]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	close(c.stop)
	c.entries = make(map[string]*entry[V])
}

// evictLocked removes least-recently-accessed entries until the capacity
// holds. Caller must hold c.mu.
func (c *Cache[V]) evictLocked() {
	for len(c.entries) > c.opts.MaxEntries {
		oldestURI := ""
		var oldest time.Time
		for uri, e := range c.entries {
			if oldestURI == "" || e.lastAccess.Before(oldest) {
				oldestURI = uri
				oldest = e.lastAccess
			}
		}
		delete(c.entries, oldestURI)
	}
}

func (c *Cache[V]) sweepLoop() {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *Cache[V]) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uri, e := range c.entries {
		if now.Sub(e.lastAccess) >= c.opts.CleanupInterval {
			delete(c.entries, uri)
		}
	}
}
