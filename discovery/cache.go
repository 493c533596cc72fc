package discovery

import (
	"sync"
	"time"

	"github.com/kbukum/agentmesh/registry"
)

// cacheEntry is one fetched card and where it came from.
type cacheEntry struct {
	source    string
	card      registry.AgentCard
	baseURL   string
	fetchedAt time.Time
}

// cardCache holds cards by agent id. Expired entries are dropped when
// they are next read; nothing sweeps in the background.
type cardCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newCardCache(ttl time.Duration, now func() time.Time) *cardCache {
	return &cardCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// get returns the entry for id while now - fetchedAt < ttl.
func (c *cardCache) get(id string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return cacheEntry{}, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, id)
		return cacheEntry{}, false
	}
	e.card = e.card.Clone()
	return e, true
}

// put stores e unless a more recent fetch of id is already cached.
func (c *cardCache) put(id string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[id]; ok && cur.fetchedAt.After(e.fetchedAt) {
		return
	}
	e.card = e.card.Clone()
	c.entries[id] = e
}

func (c *cardCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *cardCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *cardCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
