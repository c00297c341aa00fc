package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCard, PaymentCash, PaymentOnline:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, s)
}

type Payment struct {
	ID      uuid.UUID        `json:"id"`
	OrderID uuid.UUID        `json:"order_id"`
	Method  PaymentMethod    `json:"method"`
	Amount  decimal.Decimal  `json:"amount"`
	Success bool             `json:"success"`
	Change  *decimal.Decimal `json:"change,omitempty"`
	PaidAt  time.Time        `json:"paid_at"`
}

// Receipt is returned to the caller after a successful settlement.
type Receipt struct {
	PaymentID   uuid.UUID        `json:"payment_id"`
	OrderID     uuid.UUID        `json:"order_id"`
	Method      PaymentMethod    `json:"method"`
	Amount      decimal.Decimal  `json:"amount"`
	Change      *decimal.Decimal `json:"change,omitempty"`
	OrderStatus Status           `json:"order_status"`
	PaidAt      time.Time        `json:"paid_at"`
}

func (p Payment) Receipt(status Status) Receipt {
	return Receipt{
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		Method:      p.Method,
		Amount:      p.Amount,
		Change:      p.Change,
		OrderStatus: status,
		PaidAt:      p.PaidAt,
	}
}
