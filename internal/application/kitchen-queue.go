package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/RaikyD/krusty-orders-service/internal/auth"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

const DefaultKitchenInterval = 5 * time.Second

type OrderLister interface {
	ListOrders(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error)
}

// KitchenQueue is the cook-facing projection: confirmed and preparing
// orders, oldest first. It is rebuilt from the store on every refresh and
// is at most one interval stale.
type KitchenQueue struct {
	orders   OrderLister
	gate     *auth.Gate
	interval time.Duration
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	items []domain.KitchenQueueItem
	built time.Time

	wake chan struct{}

	subsMu sync.Mutex
	subs   map[int]chan []domain.KitchenQueueItem
	nextID int
}

func NewKitchenQueue(orders OrderLister, gate *auth.Gate, interval time.Duration) *KitchenQueue {
	if interval <= 0 {
		interval = DefaultKitchenInterval
	}
	return &KitchenQueue{
		orders:   orders,
		gate:     gate,
		interval: interval,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		subs:     make(map[int]chan []domain.KitchenQueueItem),
	}
}

// List returns the current snapshot, rebuilding it first when it is older
// than one interval.
func (q *KitchenQueue) List(ctx context.Context, actor domain.Actor) ([]domain.KitchenQueueItem, error) {
	if err := q.gate.Authorize(actor, auth.OpViewKitchenQueue); err != nil {
		return nil, err
	}

	q.mu.RLock()
	stale := q.built.IsZero() || q.now().Sub(q.built) >= q.interval
	items := cloneQueue(q.items)
	q.mu.RUnlock()
	if !stale {
		return items, nil
	}
	return q.Refresh(ctx)
}

// Refresh rebuilds the snapshot. Concurrent callers share one store query.
func (q *KitchenQueue) Refresh(ctx context.Context) ([]domain.KitchenQueueItem, error) {
	v, err, _ := q.group.Do("refresh", func() (interface{}, error) {
		orders, err := q.orders.ListOrders(ctx, repository.OrderFilter{
			Statuses: []domain.Status{domain.StatusConfirmed, domain.StatusPreparing},
		})
		if err != nil {
			return nil, err
		}
		items := project(orders)

		q.mu.Lock()
		q.items = items
		q.built = q.now()
		q.mu.Unlock()

		q.broadcast(items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQueue(v.([]domain.KitchenQueueItem)), nil
}

func project(orders []domain.Order) []domain.KitchenQueueItem {
	items := make([]domain.KitchenQueueItem, 0, len(orders))
	for _, o := range orders {
		if !o.Status.KitchenVisible() {
			continue
		}
		lines := make([]domain.KitchenQueueLine, len(o.Items))
		for i, it := range o.Items {
			lines[i] = domain.KitchenQueueLine{MenuItemID: it.MenuItemID, Name: it.Name, Quantity: it.Quantity, Note: it.Note}
		}
		items = append(items, domain.KitchenQueueItem{
			OrderID:   o.ID,
			Status:    o.Status,
			Type:      o.Type,
			Items:     lines,
			CreatedAt: o.CreatedAt,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

// Run refreshes on every tick and whenever Notify is called, until ctx ends.
func (q *KitchenQueue) Run(ctx context.Context) {
	t := time.NewTicker(q.interval)
	defer t.Stop()

	refresh := func(reason string) {
		if _, err := q.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("kitchen queue refresh failed", "reason", reason, "err", err)
		}
	}

	logger.Info("kitchen queue started", "interval", q.interval.String())
	refresh("start")
	for {
		select {
		case <-ctx.Done():
			logger.Info("kitchen queue stopped")
			return
		case <-t.C:
			refresh("tick")
		case <-q.wake:
			refresh("notify")
		}
	}
}

// Notify asks Run for an early refresh. It never blocks.
func (q *KitchenQueue) Notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PublishOrderEvent lets the queue sit in the local event fan-out.
func (q *KitchenQueue) PublishOrderEvent(ctx context.Context, evt domain.OrderEvent) error {
	if evt.TouchesKitchen() {
		q.Notify()
	}
	return nil
}

// Subscribe returns a channel receiving every new snapshot. A slow reader
// only ever sees the latest one.
func (q *KitchenQueue) Subscribe() (<-chan []domain.KitchenQueueItem, func()) {
	ch := make(chan []domain.KitchenQueueItem, 1)

	q.subsMu.Lock()
	id := q.nextID
	q.nextID++
	q.subs[id] = ch
	q.subsMu.Unlock()

	return ch, func() {
		q.subsMu.Lock()
		if c, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(c)
		}
		q.subsMu.Unlock()
	}
}

func (q *KitchenQueue) broadcast(items []domain.KitchenQueueItem) {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	for _, ch := range q.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cloneQueue(items):
		default:
		}
	}
}

func cloneQueue(items []domain.KitchenQueueItem) []domain.KitchenQueueItem {
	if items == nil {
		return []domain.KitchenQueueItem{}
	}
	out := make([]domain.KitchenQueueItem, len(items))
	for i, it := range items {
		it.Items = append([]domain.KitchenQueueLine(nil), it.Items...)
		out[i] = it
	}
	return out
}
