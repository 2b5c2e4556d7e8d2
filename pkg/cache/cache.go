// Package cache provides a thread-safe LRU cache for parsed property texts.
//
// The toolbox keeps one parsed tree per (element id, property name) pair.
// When the same property is parsed again with unchanged text, the cached
// tree is reused instead of re-parsing and re-analyzing it. When the text
// changes, the entry is replaced and the old tree is handed to the eviction
// callback so derived state (inferred types, declarations) can be dropped.
//
// # Example
//
//	c := cache.New(1024, cache.WithOnEvict(func(k cache.Key, e *cache.Entry) {
//	    analyzer.Forget(e.Tree.Root())
//	}))
//	c.Set(cache.Key{Owner: "block1", Property: "condition"}, &cache.Entry{Text: text, Tree: tree})
package cache

import (
	"container/list"
	"sync"

	"github.com/sandrolain/qrtext/pkg/types"
)

// Key identifies a property of a diagram element.
type Key struct {
	Owner    string
	Property string
}

// Entry is the cached parse result of a property text.
type Entry struct {
	Text string
	Tree *types.Tree
	// Dirty marks a tree whose analysis reported errors. It is analyzed
	// again on the next lookup so the errors are reported again.
	Dirty bool
}

// element is a cache entry stored in the doubly-linked list.
type element struct {
	key   Key
	entry *Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithOnEvict sets a callback invoked for every entry leaving the cache:
// evicted for capacity, replaced by Set, invalidated or cleared. The
// callback runs after the cache lock is released and may use the cache.
func WithOnEvict(fn func(Key, *Entry)) Option {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// Cache is a thread-safe LRU (Least Recently Used) cache of parsed trees.
// Once the capacity is reached, the least recently accessed entry is evicted.
//
// Safe for concurrent use by multiple goroutines.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[Key]*list.Element
	onEvict  func(Key, *Entry)
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, a default of 256 is used.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	c := &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Key]*list.Element, capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves an entry from the cache.
// Returns (entry, true) if found and moves the entry to front (MRU).
// Returns (nil, false) if not present.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.RLock()
	el, ok := c.items[key]
	alreadyFront := ok && c.ll.Front() == el
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !alreadyFront {
		// Promote to front under write lock; re-check in case of concurrent eviction.
		c.mu.Lock()
		el, ok = c.items[key]
		if ok {
			c.ll.MoveToFront(el)
		}
		c.mu.Unlock()

		if !ok {
			return nil, false
		}
	}
	return el.Value.(*element).entry, true
}

// Lookup returns the entry for key only if it was parsed from text.
func (c *Cache) Lookup(key Key, text string) (*Entry, bool) {
	e, ok := c.Get(key)
	if !ok || e.Text != text {
		return nil, false
	}
	return e, true
}

// Set inserts or replaces an entry in the cache.
// If at capacity, the least recently used entry is evicted first.
func (c *Cache) Set(key Key, entry *Entry) {
	var evicted []*element

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		item := el.Value.(*element)
		if item.entry != entry {
			evicted = append(evicted, &element{key: key, entry: item.entry})
		}
		item.entry = entry
		c.ll.MoveToFront(el)
	} else {
		if c.ll.Len() >= c.capacity {
			if item := c.evictLocked(); item != nil {
				evicted = append(evicted, item)
			}
		}
		c.items[key] = c.ll.PushFront(&element{key: key, entry: entry})
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Len returns the number of entries currently in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Entries returns the cached entries, most recently used first.
func (c *Cache) Entries() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Entry, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*element).entry)
	}
	return out
}

// Invalidate removes a single entry from the cache.
func (c *Cache) Invalidate(key Key) {
	var evicted []*element

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
		evicted = append(evicted, el.Value.(*element))
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	var evicted []*element

	c.mu.Lock()
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		evicted = append(evicted, el.Value.(*element))
	}
	c.ll.Init()
	c.items = make(map[Key]*list.Element, c.capacity)
	c.mu.Unlock()

	c.notify(evicted)
}

// evictLocked removes the least recently used entry.
// Must be called with c.mu held for writing.
func (c *Cache) evictLocked() *element {
	el := c.ll.Back()
	if el == nil {
		return nil
	}
	c.ll.Remove(el)
	item := el.Value.(*element)
	delete(c.items, item.key)
	return item
}

func (c *Cache) notify(evicted []*element) {
	if c.onEvict == nil {
		return
	}
	for _, item := range evicted {
		c.onEvict(item.key, item.entry)
	}
}
