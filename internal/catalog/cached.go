package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

// Cached is a cache-aside wrapper; concurrent misses share one upstream call.
type Cached struct {
	upstream Catalog
	ttl      time.Duration
	now      func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	items     []domain.MenuItem
	expiresAt time.Time
}

func NewCached(upstream Catalog, ttl time.Duration) *Cached {
	return &Cached{upstream: upstream, ttl: ttl, now: time.Now}
}

func (c *Cached) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	if items, ok := c.fresh(); ok {
		return items, nil
	}

	v, err, _ := c.group.Do("menu", func() (interface{}, error) {
		if items, ok := c.fresh(); ok {
			return items, nil
		}
		items, err := c.upstream.ListItems(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items = items
		c.expiresAt = c.now().Add(c.ttl)
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.MenuItem(nil), v.([]domain.MenuItem)...), nil
}

// Lookup returns the menu keyed by item id.
func (c *Cached) Lookup(ctx context.Context) (map[int64]domain.MenuItem, error) {
	items, err := c.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return Index(items), nil
}

func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cached) fresh() ([]domain.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.items == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return append([]domain.MenuItem(nil), c.items...), true
}
