// Package cache provides the response cache for read endpoints, served from
// memory by default and from Redis when a shared cache is configured.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ResponseCache stores JSON-encoded response payloads under request-shaped
// keys. Implementations must be safe for concurrent use.
type ResponseCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type memoryItem struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is an in-process ResponseCache with per-entry expiry and
// optional key-level invalidation over NATS. Payloads are stored encoded so
// Get hands out independent copies.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
}

// NewMemoryCache creates a MemoryCache and subscribes to invalidation
// messages when nc is non-nil. A message body of "ALL" (or empty) flushes
// everything; anything else evicts that one key.
func NewMemoryCache(ttl time.Duration, nc *nats.Conn, subj string) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &MemoryCache{
		items: make(map[string]memoryItem),
		ttl:   ttl,
	}
	if nc != nil && subj != "" {
		_, _ = nc.Subscribe(subj, func(m *nats.Msg) {
			key := string(m.Data)
			c.mu.Lock()
			defer c.mu.Unlock()
			if key == "" || strings.EqualFold(key, "ALL") {
				c.items = make(map[string]memoryItem)
				return
			}
			delete(c.items, key)
		})
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && time.Now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(it.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = memoryItem{payload: b, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}
