package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrStatusConflict = errors.New("status changed concurrently")
	ErrPaymentExists  = errors.New("successful payment already recorded")
)

type OrderFilter struct {
	Statuses []domain.Status
	ClientID string
	Limit    int
}

func (f OrderFilter) Match(o domain.Order) bool {
	if f.ClientID != "" && o.ClientID != f.ClientID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// PutOrder writes o.Status only if the stored status still equals expected.
	PutOrder(ctx context.Context, o *domain.Order, expected domain.Status) error
	// ListOrders returns matches ordered by creation time, oldest first.
	ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error)
}

type PaymentRepo interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	VoidPayment(ctx context.Context, id uuid.UUID) error
	// GetPaymentByOrder returns the successful payment of an order.
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
}

// Settler is implemented by stores that can record a payment and move the
// order from pending to confirmed as one unit.
type Settler interface {
	SettleOrder(ctx context.Context, p *domain.Payment) error
}

type Store interface {
	OrderRepo
	PaymentRepo
}
