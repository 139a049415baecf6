package cache

import (
	"sync"
	"time"
)

// entryTTL bounds how long a cached body can outlive the data it was rendered
// from. Invalidation on write is best-effort: a read that loses the race with
// a concurrent payment can cache a balance the payment already replaced, after
// the payment's delete ran against the still-absent key. The TTL guarantees
// such an entry expires even if no later write deletes it.
const entryTTL = 5 * time.Minute

// Cache is a read-side cache for rendered ledger summaries. Entries are
// invalidated explicitly when a payment changes the underlying loan, and
// expire after entryTTL regardless.
type Cache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Delete(key string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process Cache used when no redis address is
// configured, and in tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryCache) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.data[key]
	if !ok || m.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

func (m *MemoryCache) Set(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memoryEntry{value: value, expiresAt: m.now().Add(entryTTL)}
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
