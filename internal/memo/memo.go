// Package memo caches the results of expensive, deterministic-enough capability
// calls by a content fingerprint.
package memo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultSize is the number of entries a cache holds when no size is given.
const DefaultSize = 256

// Fingerprint returns the sha256 hex digest of parts joined with a separator
// that cannot appear in ordinary text.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

// Cache maps fingerprints to values. It is bounded and evicts the oldest entry
// first. Concurrent loads for the same key share a single call, and failed
// loads are never stored.
type Cache[V any] struct {
	size  int
	group singleflight.Group

	mu    sync.Mutex
	items map[string]V
	order []string
}

// New creates a cache holding at most size entries.
func New[V any](size int) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache[V]{
		size:  size,
		items: make(map[string]V, size),
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Do returns the cached value for key or calls load and caches its result when
// it succeeds.
func (c *Cache[V]) Do(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		c.put(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) put(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		c.items[key] = v
		return
	}
	for len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = v
	c.order = append(c.order, key)
}
