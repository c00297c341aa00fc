package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
)

const DefaultMenuKey = "menu:items"

// RedisCatalog reads the menu published by the menu service into a hash:
// field = item id, value = JSON item.
type RedisCatalog struct {
	client *redis.Client
	key    string
}

func NewRedisCatalog(client *redis.Client, key string) *RedisCatalog {
	return &RedisCatalog{client: client, key: key}
}

func (r *RedisCatalog) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	items := make([]domain.MenuItem, 0, len(raw))
	for field, val := range raw {
		var it domain.MenuItem
		if err := json.Unmarshal([]byte(val), &it); err != nil {
			logger.Warn("catalog: bad menu entry, skip", "field", field, "err", err)
			continue
		}
		if id, err := strconv.ParseInt(field, 10, 64); err == nil {
			it.ID = id
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Put is used by seeding and tests; the menu service is the normal writer.
func (r *RedisCatalog) Put(ctx context.Context, items ...domain.MenuItem) error {
	values := make([]interface{}, 0, len(items)*2)
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return err
		}
		values = append(values, strconv.FormatInt(it.ID, 10), string(b))
	}
	return r.client.HSet(ctx, r.key, values...).Err()
}
