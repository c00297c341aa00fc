package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/auth"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

// MenuLookup resolves catalog items by id.
type MenuLookup interface {
	Lookup(ctx context.Context) (map[int64]domain.MenuItem, error)
}

type OrderLine struct {
	MenuItemID int64            `json:"menu_item_id"`
	Quantity   int              `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	Note       string           `json:"note,omitempty"`
}

type CreateOrderRequest struct {
	ClientID        string           `json:"client_id"`
	Type            domain.OrderType `json:"type"`
	DeliveryAddress string           `json:"delivery_address,omitempty"`
	Items           []OrderLine      `json:"items"`
}

// CacheSize bounds the warm order cache.
const CacheSize = 1000

type OrdersService struct {
	repo   repository.Store
	gate   *auth.Gate
	menu   MenuLookup
	events EventPublisher
	now    func() time.Time

	mu   sync.RWMutex
	byID map[uuid.UUID]domain.Order
}

func NewOrdersService(r repository.Store, gate *auth.Gate, menu MenuLookup, events EventPublisher) *OrdersService {
	if events == nil {
		events = FanOut()
	}
	return &OrdersService{
		repo:   r,
		gate:   gate,
		menu:   menu,
		events: events,
		now:    time.Now,
		byID:   make(map[uuid.UUID]domain.Order),
	}
}

func (s *OrdersService) CreateOrder(ctx context.Context, actor domain.Actor, req CreateOrderRequest) (*domain.Order, error) {
	if err := s.gate.Authorize(actor, auth.OpCreateOrder); err != nil {
		logger.Warn("create order rejected", "actor", actor.ID, "role", actor.Role, "err", err)
		return nil, err
	}
	if strings.TrimSpace(req.ClientID) == "" {
		req.ClientID = actor.ID
	}
	if req.ClientID != actor.ID {
		return nil, fmt.Errorf("%w: customers order for themselves only", domain.ErrForbidden)
	}
	return s.create(ctx, req)
}

func (s *OrdersService) create(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	o, err := domain.NewOrder(req.ClientID, req.Type, items, req.DeliveryAddress, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		logger.Warn("Error while adding order", "order_id", o.ID, "err", err)
		return nil, err
	}

	s.remember(*o)
	s.publish(ctx, domain.OrderEvent{OrderID: o.ID, ClientID: o.ClientID, Type: o.Type, To: o.Status, At: o.CreatedAt})
	logger.Info("order created", "order_id", o.ID, "client_id", o.ClientID, "type", o.Type, "total", o.TotalAmount.StringFixed(2))
	return o, nil
}

// snapshotItems fixes the unit price of every line from the catalog. A
// client-supplied price is honoured only while the catalog cannot be read;
// unknown or unavailable items are rejected.
func (s *OrdersService) snapshotItems(ctx context.Context, lines []OrderLine) ([]domain.OrderItem, error) {
	var menu map[int64]domain.MenuItem
	if s.menu != nil {
		m, err := s.menu.Lookup(ctx)
		if err != nil {
			logger.Warn("catalog unavailable for order snapshot", "err", err)
		}
		menu = m
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		it := domain.OrderItem{MenuItemID: l.MenuItemID, Quantity: l.Quantity, Note: strings.TrimSpace(l.Note)}
		mi, known := menu[l.MenuItemID]
		switch {
		case known && !mi.Available:
			return nil, fmt.Errorf("%w: item %d is not available", domain.ErrInvalidOrder, l.MenuItemID)
		case known:
			it.Name = mi.Name
			it.UnitPrice = mi.Price
		case menu != nil:
			return nil, fmt.Errorf("%w: item %d is not on the menu", domain.ErrInvalidOrder, l.MenuItemID)
		case l.UnitPrice != nil:
			it.UnitPrice = *l.UnitPrice
		default:
			return nil, fmt.Errorf("%w: no price for item %d", domain.ErrInvalidOrder, l.MenuItemID)
		}
		items = append(items, it)
	}
	return items, nil
}

// Transition moves an order to target. Re-issuing a transition that already
// happened is a successful no-op.
func (s *OrdersService) Transition(ctx context.Context, actor domain.Actor, id uuid.UUID, target domain.Status) (*domain.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, target)
	}
	if err := s.gate.AuthorizeTransition(actor, target); err != nil {
		logger.Warn("transition rejected", "order_id", id, "to", target, "role", actor.Role, "err", err)
		return nil, err
	}

	// one retry on a lost compare-and-set
	for attempt := 0; attempt < 2; attempt++ {
		cur, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == target {
			return cur, nil
		}
		if err := domain.CheckTransition(cur.Type, cur.Status, target); err != nil {
			logger.Warn("transition rejected", "order_id", id, "from", cur.Status, "to", target, "err", err)
			return nil, err
		}

		next := cur.Clone()
		next.Status = target
		err = s.repo.PutOrder(ctx, &next, cur.Status)
		switch {
		case err == nil:
			s.committed(ctx, *cur, next)
			logger.Info("order status changed", "order_id", id, "from", cur.Status, "to", target, "role", actor.Role, "actor", actor.ID)
			return &next, nil
		case errors.Is(err, repository.ErrStatusConflict):
			logger.Debug("status compare-and-set lost, retrying", "order_id", id, "attempt", attempt)
			s.forget(id)
			continue
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: order %s", domain.ErrConflict, id)
}

// GetOrder reads through to the store so status changes committed by other
// instances are visible. The cached copy is served only while the store is
// unreachable.
func (s *OrdersService) GetOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.forget(id)
			return nil, err
		}
		s.mu.RLock()
		cached, ok := s.byID[id]
		s.mu.RUnlock()
		if !ok {
			return nil, err
		}
		logger.Warn("store read failed, serving cached order", "order_id", id, "err", err)
		c := cached.Clone()
		o = &c
	}

	if err := s.gate.AuthorizeRead(actor, *o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders lets staff filter freely; customers always see only their own.
func (s *OrdersService) ListOrders(ctx context.Context, actor domain.Actor, f repository.OrderFilter) ([]domain.Order, error) {
	if s.gate.Authorize(actor, auth.OpReadAnyOrder) != nil {
		if actor.Role != domain.RoleCustomer {
			return nil, fmt.Errorf("%w: role %q cannot list orders", domain.ErrForbidden, actor.Role)
		}
		f.ClientID = actor.ID
	}
	return s.repo.ListOrders(ctx, f)
}

// GenerateDemoOrders seeds n takeout orders from the available menu.
func (s *OrdersService) GenerateDemoOrders(ctx context.Context, actor domain.Actor, n int) ([]uuid.UUID, error) {
	if err := s.gate.Authorize(actor, auth.OpGenerateOrders); err != nil {
		return nil, err
	}
	if s.menu == nil {
		return nil, fmt.Errorf("%w: no catalog configured", domain.ErrValidation)
	}
	menu, err := s.menu.Lookup(ctx)
	if err != nil {
		return nil, err
	}
	var available []int64
	for id, it := range menu {
		if it.Available {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: nothing on the menu is available", domain.ErrValidation)
	}

	created := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		o, err := s.create(ctx, CreateOrderRequest{
			ClientID: fmt.Sprintf("demo-%d", i+1),
			Type:     domain.OrderTypeTakeout,
			Items:    []OrderLine{{MenuItemID: available[i%len(available)], Quantity: 1 + i%3}},
		})
		if err != nil {
			logger.Warn("generate: add failed", "err", err)
			continue
		}
		created = append(created, o.ID)
	}
	return created, nil
}

// RestoreCache warms the read cache with the most recent orders.
func (s *OrdersService) RestoreCache(ctx context.Context, limit int) error {
	if limit <= 0 || limit > CacheSize {
		limit = CacheSize
	}
	orders, err := s.repo.ListOrders(ctx, repository.OrderFilter{Limit: limit})
	if err != nil {
		return err
	}

	// build aside to keep the lock short
	tmp := make(map[uuid.UUID]domain.Order, len(orders))
	for _, o := range orders {
		tmp[o.ID] = o
	}

	s.mu.Lock()
	s.byID = tmp
	s.mu.Unlock()
	logger.Info("order cache restored", "orders", len(tmp))
	return nil
}

// load always reads the store; the cache never feeds a state decision.
func (s *OrdersService) load(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.remember(*o)
	return o, nil
}

// committed records a stored status change in the cache and announces it.
func (s *OrdersService) committed(ctx context.Context, before, after domain.Order) {
	s.remember(after)
	s.publish(ctx, domain.OrderEvent{
		OrderID:  after.ID,
		ClientID: after.ClientID,
		Type:     after.Type,
		From:     before.Status,
		To:       after.Status,
		At:       s.now().UTC(),
	})
}

func (s *OrdersService) publish(ctx context.Context, evt domain.OrderEvent) {
	if err := s.events.PublishOrderEvent(ctx, evt); err != nil {
		logger.Warn("order event publish failed", "order_id", evt.OrderID, "to", evt.To, "err", err)
	}
}

// remember keeps at most CacheSize orders; a full cache drops an arbitrary
// entry to make room.
func (s *OrdersService) remember(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.ID]; !ok && len(s.byID) >= CacheSize {
		for id := range s.byID {
			delete(s.byID, id)
			break
		}
	}
	s.byID[o.ID] = o.Clone()
}

func (s *OrdersService) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}
