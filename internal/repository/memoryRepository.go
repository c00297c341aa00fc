package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

// MemoryStore keeps everything in process. Used when no DB_STRING is set
// and by the service tests.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]domain.Order
	payments map[uuid.UUID]domain.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[uuid.UUID]domain.Order),
		payments: make(map[uuid.UUID]domain.Payment),
	}
}

func (m *MemoryStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order %s: duplicate id", o.ID)
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (m *MemoryStore) PutOrder(ctx context.Context, o *domain.Order, expected domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.casLocked(o.ID, expected, o.Status)
}

func (m *MemoryStore) casLocked(id uuid.UUID, expected, next domain.Status) error {
	cur, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != expected {
		return ErrStatusConflict
	}
	cur.Status = next
	m.orders[id] = cur
	return nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if f.Match(o) {
			out = append(out, o.Clone())
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPaymentLocked(p)
}

func (m *MemoryStore) insertPaymentLocked(p *domain.Payment) error {
	if p.Success {
		for _, existing := range m.payments {
			if existing.OrderID == p.OrderID && existing.Success {
				return ErrPaymentExists
			}
		}
	}
	m.payments[p.ID] = *p
	return nil
}

func (m *MemoryStore) VoidPayment(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.Success = false
	m.payments[id] = p
	return nil
}

func (m *MemoryStore) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID && p.Success {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SettleOrder(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[p.OrderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != domain.StatusPending {
		return ErrStatusConflict
	}
	if err := m.insertPaymentLocked(p); err != nil {
		return err
	}
	o.Status = domain.StatusConfirmed
	m.orders[o.ID] = o
	return nil
}

// PaymentCount counts every recorded payment, voided ones included.
func (m *MemoryStore) PaymentCount(orderID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.payments {
		if p.OrderID == orderID {
			n++
		}
	}
	return n
}
