package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/RaikyD/krusty-orders-service/internal/auth"
	"github.com/RaikyD/krusty-orders-service/internal/catalog"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

var (
	customer = domain.Actor{ID: "c-1", Role: domain.RoleCustomer}
	stranger = domain.Actor{ID: "c-2", Role: domain.RoleCustomer}
	cashier  = domain.Actor{ID: "cash-1", Role: domain.RoleCashier}
	cook     = domain.Actor{ID: "cook-1", Role: domain.RoleCook}
	manager  = domain.Actor{ID: "boss", Role: domain.RoleManager}
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testMenu() *catalog.Cached {
	return catalog.NewCached(catalog.NewStatic(
		domain.MenuItem{ID: 1, Name: "Krabby Patty", Price: money("5.00"), Available: true},
		domain.MenuItem{ID: 2, Name: "Kelp Shake", Price: money("3.00"), Available: true},
		domain.MenuItem{ID: 3, Name: "Coral Bits", Price: money("2.50"), Available: false},
	), time.Minute)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (r *recordingPublisher) PublishOrderEvent(ctx context.Context, evt domain.OrderEvent) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) all() []domain.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OrderEvent(nil), r.events...)
}

type fixture struct {
	store    *repository.MemoryStore
	orders   *OrdersService
	payments *PaymentsService
	events   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	return newFixtureWith(t, store, store)
}

func newFixtureWith(t *testing.T, mem *repository.MemoryStore, store repository.Store) *fixture {
	t.Helper()
	gate := auth.NewGate()
	events := &recordingPublisher{}
	orders := NewOrdersService(store, gate, testMenu(), events)
	return &fixture{
		store:    mem,
		orders:   orders,
		payments: NewPaymentsService(store, gate, orders),
		events:   events,
	}
}

// takeout creates 2 x 5.00 + 1 x 3.00 for the test customer.
func (f *fixture) takeout(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), customer, CreateOrderRequest{
		Type: domain.OrderTypeTakeout,
		Items: []OrderLine{
			{MenuItemID: 1, Quantity: 2},
			{MenuItemID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) delivery(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), customer, CreateOrderRequest{
		Type:            domain.OrderTypeDelivery,
		DeliveryAddress: "124 Conch Street",
		Items:           []OrderLine{{MenuItemID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) status(t *testing.T, o *domain.Order) domain.Status {
	t.Helper()
	got, err := f.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	return got.Status
}
