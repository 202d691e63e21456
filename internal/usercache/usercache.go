// Package usercache keeps recently resolved users in memory.
//
// Stored users are immutable, so a cached copy never goes stale and the
// cache needs no invalidation. It only saves store round trips when the
// same authors show up again and again during a resolution pass.
package usercache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/roach88/archivist/internal/model"
)

// DefaultSize is the default maximum number of cached users.
const DefaultSize = 10_000

// Cache is a bounded, concurrency-safe map from user ID to User.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	c *ristretto.Cache[uint64, model.User]
}

// New creates a cache holding at most size users. size <= 0 returns nil,
// which disables caching.
func New(size int64) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}

	c, err := ristretto.NewCache(&ristretto.Config[uint64, model.User]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create user cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get returns the cached user with the given ID.
func (c *Cache) Get(id uint64) (model.User, bool) {
	if c == nil {
		return model.User{}, false
	}
	return c.c.Get(id)
}

// Put caches u. Admission is asynchronous and may be refused under
// pressure; callers must not rely on a later Get hitting.
func (c *Cache) Put(u model.User) {
	if c == nil {
		return
	}
	c.c.Set(u.ID, u, 1)
}

// Wait blocks until pending Puts have been applied.
func (c *Cache) Wait() {
	if c == nil {
		return
	}
	c.c.Wait()
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	if c == nil || c.c.Metrics == nil {
		return 0, 0
	}
	return c.c.Metrics.Hits(), c.c.Metrics.Misses()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.c.Close()
}
