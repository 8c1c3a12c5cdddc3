// ABOUTME: Thread-safe TTL cache of decrypted stored names.
// ABOUTME: Lets enumeration and listener callbacks skip repeated name decryption.

package namecache

import (
	"container/list"
	"sync"
	"time"

	"github.com/2389/sealed-prefs/internal/codec"
)

// Entry is the decoded form of a stored name.
type Entry struct {
	Name string
	Tag  codec.TypeTag
}

type cacheEntry struct {
	value     Entry
	timestamp time.Time
	element   *list.Element
}

// Cache maps stored names to their decoded Entry with a TTL and a size bound.
// The oldest entry is evicted when the cache is full.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // stored names, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache. A maxSize or ttl of zero disables caching.
// A background goroutine removes expired entries until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	if c.enabled() {
		go c.cleanup(cleanupInterval(ttl))
	}
	return c
}

func (c *Cache) enabled() bool {
	return c.ttl > 0 && c.maxSize > 0
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// Get returns the cached entry for storedName if present and not expired.
func (c *Cache) Get(storedName string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[storedName]
	if !ok || time.Since(e.timestamp) >= c.ttl {
		return Entry{}, false
	}
	return e.value, true
}

// Put records the decoded entry for storedName.
func (c *Cache) Put(storedName string, value Entry) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, exists := c.entries[storedName]; exists {
		e.value = value
		e.timestamp = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[storedName] = &cacheEntry{
		value:     value,
		timestamp: now,
		element:   c.order.PushBack(storedName),
	}
}

// Len returns the number of entries, including expired ones not yet cleaned up.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the cleanup goroutine and drops every entry. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
	clear(c.entries)
	c.order.Init()
}
