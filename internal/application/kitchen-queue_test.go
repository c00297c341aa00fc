package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaikyD/krusty-orders-service/internal/auth"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

func seed(t *testing.T, store *repository.MemoryStore, status domain.Status, at time.Time) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder("c-1", domain.OrderTypeDineIn, []domain.OrderItem{
		{MenuItemID: 1, Name: "Krabby Patty", Quantity: 1, UnitPrice: money("5"), Note: "well done"},
	}, "", at)
	require.NoError(t, err)
	o.Status = status
	require.NoError(t, store.CreateOrder(context.Background(), o))
	return o
}

func TestKitchenQueueFiltersAndOrders(t *testing.T) {
	store := repository.NewMemoryStore()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	late := seed(t, store, domain.StatusConfirmed, base.Add(3*time.Minute))
	early := seed(t, store, domain.StatusPreparing, base.Add(time.Minute))
	seed(t, store, domain.StatusPending, base)
	seed(t, store, domain.StatusReady, base)
	seed(t, store, domain.StatusCancelled, base)
	mid := seed(t, store, domain.StatusConfirmed, base.Add(2*time.Minute))

	q := NewKitchenQueue(store, auth.NewGate(), time.Minute)
	items, err := q.List(context.Background(), cook)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, []uuid.UUID{early.ID, mid.ID, late.ID}, []uuid.UUID{items[0].OrderID, items[1].OrderID, items[2].OrderID})
	assert.Equal(t, domain.StatusPreparing, items[0].Status)
	assert.Equal(t, "Krabby Patty", items[0].Items[0].Name)
	assert.Equal(t, "well done", items[0].Items[0].Note)
}

func TestKitchenQueueAccess(t *testing.T) {
	q := NewKitchenQueue(repository.NewMemoryStore(), auth.NewGate(), time.Minute)

	_, err := q.List(context.Background(), customer)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	items, err := q.List(context.Background(), cashier)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

type countingLister struct {
	calls int32
	inner OrderLister
}

func (c *countingLister) ListOrders(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.inner.ListOrders(ctx, f)
}

func TestKitchenQueueStalenessBound(t *testing.T) {
	store := repository.NewMemoryStore()
	lister := &countingLister{inner: store}
	q := NewKitchenQueue(lister, auth.NewGate(), 5*time.Second)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	_, err := q.List(context.Background(), cook)
	require.NoError(t, err)

	o := seed(t, store, domain.StatusConfirmed, now)

	now = now.Add(4 * time.Second)
	items, err := q.List(context.Background(), cook)
	require.NoError(t, err)
	assert.Empty(t, items, "snapshot within one interval is served as is")
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))

	now = now.Add(time.Second)
	items, err = q.List(context.Background(), cook)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, o.ID, items[0].OrderID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))
}

func TestKitchenQueueRunPushesOnNotify(t *testing.T) {
	store := repository.NewMemoryStore()
	q := NewKitchenQueue(store, auth.NewGate(), time.Hour)

	updates, cancelSub := q.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	select {
	case items := <-updates:
		assert.Empty(t, items)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	o := seed(t, store, domain.StatusConfirmed, time.Now())
	require.NoError(t, q.PublishOrderEvent(context.Background(), domain.OrderEvent{OrderID: o.ID, From: domain.StatusPending, To: domain.StatusConfirmed}))

	select {
	case items := <-updates:
		require.Len(t, items, 1)
		assert.Equal(t, o.ID, items[0].OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("notify did not trigger a refresh")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestKitchenQueueIgnoresUnrelatedEvents(t *testing.T) {
	q := NewKitchenQueue(repository.NewMemoryStore(), auth.NewGate(), time.Hour)
	require.NoError(t, q.PublishOrderEvent(context.Background(), domain.OrderEvent{From: domain.StatusReady, To: domain.StatusCompleted}))
	assert.Len(t, q.wake, 0)

	require.NoError(t, q.PublishOrderEvent(context.Background(), domain.OrderEvent{From: domain.StatusPreparing, To: domain.StatusReady}))
	assert.Len(t, q.wake, 1)
}
