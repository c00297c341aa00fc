package catalog

import (
	"context"
	"sort"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

// Catalog is the read-only menu owned by the menu service.
type Catalog interface {
	ListItems(ctx context.Context) ([]domain.MenuItem, error)
}

type StaticCatalog struct {
	items []domain.MenuItem
}

func NewStatic(items ...domain.MenuItem) *StaticCatalog {
	cp := append([]domain.MenuItem(nil), items...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })
	return &StaticCatalog{items: cp}
}

func (s *StaticCatalog) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	return append([]domain.MenuItem(nil), s.items...), nil
}

func Index(items []domain.MenuItem) map[int64]domain.MenuItem {
	out := make(map[int64]domain.MenuItem, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}
