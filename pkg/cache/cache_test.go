package cache_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sandrolain/qrtext/pkg/cache"
	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/types"
)

func key(owner string) cache.Key {
	return cache.Key{Owner: owner, Property: "value"}
}

func entry(text string) *cache.Entry {
	return &cache.Entry{Text: text, Tree: parser.Parse(text, &types.ErrorList{})}
}

func TestCacheNew(t *testing.T) {
	c := cache.New(10)
	if got := c.Len(); got != 0 {
		t.Fatalf("expected empty cache, got %d", got)
	}
	if got := c.Capacity(); got != 10 {
		t.Fatalf("expected capacity 10, got %d", got)
	}
}

func TestCacheDefaultCapacity(t *testing.T) {
	c := cache.New(0)
	if got := c.Capacity(); got != 256 {
		t.Fatalf("expected default capacity 256, got %d", got)
	}
}

func TestCacheSetGet(t *testing.T) {
	c := cache.New(4)
	e := entry("x = 1")
	c.Set(key("a"), e)
	if got := c.Len(); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
	got, ok := c.Get(key("a"))
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != e {
		t.Fatal("expected same entry pointer")
	}
	if _, ok := c.Get(cache.Key{Owner: "a", Property: "other"}); ok {
		t.Fatal("expected miss for another property of the same owner")
	}
}

func TestCacheLookup(t *testing.T) {
	c := cache.New(4)
	c.Set(key("a"), entry("x = 1"))

	if _, ok := c.Lookup(key("a"), "x = 1"); !ok {
		t.Fatal("expected hit for unchanged text")
	}
	if _, ok := c.Lookup(key("a"), "x = 2"); ok {
		t.Fatal("expected miss for changed text")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	var evicted []string
	c := cache.New(3, cache.WithOnEvict(func(k cache.Key, _ *cache.Entry) {
		evicted = append(evicted, k.Owner)
	}))
	for _, k := range []string{"a", "b", "c"} {
		c.Set(key(k), entry("x"))
	}
	c.Get(key("a"))
	c.Set(key("d"), entry("x"))

	if got := c.Len(); got != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", got)
	}
	if _, ok := c.Get(key("b")); ok {
		t.Fatal(`expected "b" to be evicted (LRU)`)
	}
	if _, ok := c.Get(key("a")); !ok {
		t.Fatal(`expected recently used "a" to survive`)
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
}

func TestCacheReplaceNotifies(t *testing.T) {
	var evicted []*cache.Entry
	c := cache.New(4, cache.WithOnEvict(func(_ cache.Key, e *cache.Entry) {
		evicted = append(evicted, e)
	}))

	old := entry("x = 1")
	c.Set(key("a"), old)
	c.Set(key("a"), old)
	if len(evicted) != 0 {
		t.Fatal("setting the same entry again must not evict it")
	}

	c.Set(key("a"), entry("x = 2"))
	if len(evicted) != 1 || evicted[0] != old {
		t.Fatalf("evicted = %v, want the replaced entry", evicted)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestCacheInvalidateAndClear(t *testing.T) {
	count := 0
	c := cache.New(4, cache.WithOnEvict(func(cache.Key, *cache.Entry) { count++ }))
	c.Set(key("a"), entry("x"))
	c.Set(key("b"), entry("y"))

	c.Invalidate(key("a"))
	if _, ok := c.Get(key("a")); ok {
		t.Fatal("expected miss after Invalidate")
	}
	c.Invalidate(key("missing"))
	if count != 1 {
		t.Fatalf("evictions after Invalidate = %d, want 1", count)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", c.Len())
	}
	if count != 2 {
		t.Fatalf("evictions after Clear = %d, want 2", count)
	}
}

func TestCacheEntriesOrder(t *testing.T) {
	c := cache.New(4)
	a, b := entry("a"), entry("b")
	c.Set(key("a"), a)
	c.Set(key("b"), b)
	c.Get(key("a"))

	got := c.Entries()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("Entries() = %v, want [a b]", got)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := cache.New(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := key(fmt.Sprintf("%d-%d", i, j%20))
				c.Set(k, &cache.Entry{Text: "x"})
				c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Fatalf("cache grew beyond capacity: %d", c.Len())
	}
}
