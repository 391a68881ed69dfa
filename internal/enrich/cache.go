package enrich

import (
	"sync"

	"github.com/example/shiki-proxy/internal/catalog"
)

// Cache memoizes per-title streaming lookups for the lifetime of the
// process. It exists to avoid duplicate enrichment calls within one backfill
// run; a fresh run always starts empty.
type Cache struct {
	mu    sync.RWMutex
	items map[int][]catalog.StreamingService
}

func NewCache() *Cache {
	return &Cache{items: make(map[int][]catalog.StreamingService)}
}

func (c *Cache) Get(id int) ([]catalog.StreamingService, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

func (c *Cache) Set(id int, v []catalog.StreamingService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = v
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
