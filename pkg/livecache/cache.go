// Package livecache keeps client-side views of server collections in sync
// with push invalidations.
//
// The pieces, bottom up:
//
//   - Cache holds the last value of a collection and replays it to watchers.
//   - Stream ties the number of live consumers of a Cache to a topic
//     subscription on the connection: the first consumer subscribes the
//     topic and triggers a refetch, the last one to leave unsubscribes.
//   - Binding installs the invalidation listener for a topic exactly once,
//     whether or not the connection is up yet.
//   - Coalescer collapses bursts of invalidations into at most one trailing
//     refetch.
//   - Adapter combines all of the above for one entity collection.
package livecache

import (
	"sync"
)

// Cache is the last known value of a collection. Watchers receive the
// current value on registration (when one is present) and every later
// update. Each watcher channel holds at most one value: a slow watcher skips
// intermediate values and always ends up with the latest.
type Cache[T any] struct {
	mu       sync.RWMutex
	value    T
	loaded   bool
	version  uint64
	watchers map[uint64]chan T
	nextID   uint64
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{watchers: make(map[uint64]chan T)}
}

// Load returns the cached value and whether one was ever stored.
func (c *Cache[T]) Load() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.loaded
}

// Version increments on every Store; 0 means never loaded.
func (c *Cache[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Store replaces the cached value and pushes it to every watcher.
func (c *Cache[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.loaded = true
	c.version++
	for _, ch := range c.watchers {
		offer(ch, v)
	}
}

// offer puts v in a one-slot channel, replacing an unread older value. Only
// called with c.mu held, so there is a single sender per channel.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Watch registers a watcher. The returned id is passed to Unwatch.
func (c *Cache[T]) Watch() (uint64, <-chan T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan T, 1)
	if c.loaded {
		ch <- c.value
	}
	c.watchers[id] = ch
	return id, ch
}

// Unwatch removes a watcher and closes its channel. Unknown ids are ignored.
func (c *Cache[T]) Unwatch(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.watchers[id]; ok {
		delete(c.watchers, id)
		close(ch)
	}
}

// Watchers returns the number of registered watchers.
func (c *Cache[T]) Watchers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.watchers)
}
