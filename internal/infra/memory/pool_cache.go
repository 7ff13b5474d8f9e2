package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// PoolLoader lists active question ids from the backing store.
type PoolLoader interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// PoolCache caches the active question pool with TTL to avoid listing the store on
// every fetch. Concurrent misses share one load.
type PoolCache struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	rnd       *rand.Rand
	ids       []string
	expiresAt time.Time
	// gen is bumped by Invalidate; a load started under an older gen is not stored.
	gen uint64
}

func NewPoolCache(loader PoolLoader, ttl time.Duration) *PoolCache {
	return &PoolCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PoolCache) ActiveIDs(ctx context.Context) ([]string, error) {
	if ids, ok := c.cached(c.clock()); ok {
		return ids, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	// Callers after an Invalidate never join a load that started before it.
	result, err, _ := c.sf.Do("pool:"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		now := c.clock()
		if ids, ok := c.cached(now); ok {
			return ids, nil
		}

		ids, err := c.loader.ActiveIDs(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.ids = append([]string(nil), ids...)
			c.expiresAt = now.Add(c.ttlWithJitterLocked())
		}
		c.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Invalidate forces the next ActiveIDs call to reload.
func (c *PoolCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *PoolCache) cached(now time.Time) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ids == nil || !c.expiresAt.After(now) {
		return nil, false
	}
	return append([]string(nil), c.ids...), true
}

func (c *PoolCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
