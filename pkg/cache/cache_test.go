package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	if err := c.Set("ledger:abc", `{"balance":"100"}`); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	val, ok := c.Get("ledger:abc")
	if !ok || val != `{"balance":"100"}` {
		t.Errorf("Expected cached value, got %q (hit=%v)", val, ok)
	}

	if err := c.Delete("ledger:abc"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, ok := c.Get("ledger:abc"); ok {
		t.Error("Expected miss after delete")
	}
}

func TestMemoryCacheEntriesExpire(t *testing.T) {
	c := NewMemoryCache()
	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Set("ledger:abc", `{"balance":"100"}`); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if _, ok := c.Get("ledger:abc"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	c.now = func() time.Time { return base.Add(entryTTL + time.Second) }
	if _, ok := c.Get("ledger:abc"); ok {
		t.Error("Expected miss after TTL elapsed")
	}
}

func TestMemoryCacheStaleEntryAges(t *testing.T) {
	// A reader can cache a body rendered from a balance that a concurrent
	// write already replaced: the write's Delete runs while the key is still
	// absent, then the reader's Set lands. No later Delete will clear it, so
	// the entry must expire on its own.
	c := NewMemoryCache()
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Delete("ledger:abc") // writer invalidates an absent key
	c.Set("ledger:abc", `{"balance":"115000"}`)

	if val, ok := c.Get("ledger:abc"); !ok || val != `{"balance":"115000"}` {
		t.Fatalf("Expected the stale body to be served until expiry, got %q (hit=%v)", val, ok)
	}

	c.now = func() time.Time { return base.Add(entryTTL + time.Second) }
	if _, ok := c.Get("ledger:abc"); ok {
		t.Error("Expected the stale entry to be dropped after TTL")
	}
}

func TestMemoryCacheConcurrent(t *testing.T) {
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%5)
			c.Set(key, "value")
			c.Get(key)
			c.Delete(key)
		}(i)
	}
	wg.Wait()
}
