package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/auth"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

// errSettleRace marks a settlement attempt that lost to a concurrent writer.
var errSettleRace = errors.New("settlement raced")

type PaymentsService struct {
	store  repository.Store
	gate   *auth.Gate
	orders *OrdersService
}

func NewPaymentsService(store repository.Store, gate *auth.Gate, orders *OrdersService) *PaymentsService {
	return &PaymentsService{store: store, gate: gate, orders: orders}
}

// ProcessPayment settles an order by card or online; both succeed synchronously.
func (s *PaymentsService) ProcessPayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID, method domain.PaymentMethod) (*domain.Receipt, error) {
	if err := s.gate.Authorize(actor, auth.OpProcessPayment); err != nil {
		return nil, err
	}
	if method != domain.PaymentCard && method != domain.PaymentOnline {
		return nil, fmt.Errorf("%w: method %q is not accepted here", domain.ErrValidation, method)
	}
	return s.settle(ctx, actor, orderID, method, nil)
}

// ProcessCashPayment settles an order in cash and returns the change due.
func (s *PaymentsService) ProcessCashPayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID, received decimal.Decimal) (*domain.Receipt, error) {
	if err := s.gate.Authorize(actor, auth.OpProcessCashPayment); err != nil {
		return nil, err
	}
	if received.IsNegative() {
		return nil, fmt.Errorf("%w: amount received must not be negative", domain.ErrValidation)
	}
	if !domain.WholeCents(received) {
		return nil, fmt.Errorf("%w: amount received %s has fractional cents", domain.ErrValidation, received)
	}
	return s.settle(ctx, actor, orderID, domain.PaymentCash, &received)
}

func (s *PaymentsService) GetPayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Payment, error) {
	if _, err := s.orders.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	p, err := s.store.GetPaymentByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrPaymentNotFound, orderID)
	}
	return p, err
}

func (s *PaymentsService) settle(ctx context.Context, actor domain.Actor, orderID uuid.UUID, method domain.PaymentMethod, received *decimal.Decimal) (*domain.Receipt, error) {
	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.orders.load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := s.checkPayable(ctx, o); err != nil {
			logger.Warn("payment rejected", "order_id", orderID, "status", o.Status, "err", err)
			return nil, err
		}

		pay := &domain.Payment{
			ID:      uuid.New(),
			OrderID: o.ID,
			Method:  method,
			Amount:  o.TotalAmount,
			Success: true,
			PaidAt:  s.orders.now().UTC(),
		}
		if received != nil {
			if received.LessThan(o.TotalAmount) {
				return nil, fmt.Errorf("%w: received %s, due %s", domain.ErrInsufficientPayment,
					received.StringFixed(2), o.TotalAmount.StringFixed(2))
			}
			change := received.Sub(o.TotalAmount)
			pay.Change = &change
		}

		err = s.record(ctx, pay)
		switch {
		case err == nil:
			confirmed := o.Clone()
			confirmed.Status = domain.StatusConfirmed
			s.orders.committed(ctx, *o, confirmed)
			logger.Info("payment settled", "order_id", o.ID, "payment_id", pay.ID, "method", method,
				"amount", pay.Amount.StringFixed(2), "role", actor.Role, "actor", actor.ID)
			receipt := pay.Receipt(confirmed.Status)
			return &receipt, nil
		case errors.Is(err, errSettleRace):
			logger.Debug("settlement raced, retrying", "order_id", o.ID, "attempt", attempt)
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: settlement of order %s", domain.ErrConflict, orderID)
}

// checkPayable reports AlreadyPaid ahead of NotPayable: a paid order is
// never pending, and the caller deserves the more specific answer.
func (s *PaymentsService) checkPayable(ctx context.Context, o *domain.Order) error {
	_, err := s.store.GetPaymentByOrder(ctx, o.ID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: order %s", domain.ErrAlreadyPaid, o.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}
	if o.Status != domain.StatusPending {
		return fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotPayable, o.ID, o.Status)
	}
	return nil
}

// record stores the payment and confirms the order as one unit. Stores
// without an atomic settle get a compensating void instead.
func (s *PaymentsService) record(ctx context.Context, pay *domain.Payment) error {
	if settler, ok := s.store.(repository.Settler); ok {
		err := settler.SettleOrder(ctx, pay)
		if errors.Is(err, repository.ErrStatusConflict) || errors.Is(err, repository.ErrPaymentExists) {
			return errSettleRace
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, pay.OrderID)
		}
		return err
	}

	if err := s.store.CreatePayment(ctx, pay); err != nil {
		if errors.Is(err, repository.ErrPaymentExists) {
			return errSettleRace
		}
		return err
	}

	o := domain.Order{ID: pay.OrderID, Status: domain.StatusConfirmed}
	if err := s.store.PutOrder(ctx, &o, domain.StatusPending); err != nil {
		if verr := s.store.VoidPayment(ctx, pay.ID); verr != nil {
			logger.Error("void of orphaned payment failed", "payment_id", pay.ID, "order_id", pay.OrderID, "err", verr)
		} else {
			logger.Warn("payment voided after failed confirm", "payment_id", pay.ID, "order_id", pay.OrderID, "err", err)
		}
		return errSettleRace
	}
	return nil
}
