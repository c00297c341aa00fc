package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDineIn   OrderType = "dine_in"
)

func ParseOrderType(s string) (OrderType, error) {
	switch t := OrderType(s); t {
	case OrderTypeDelivery, OrderTypeTakeout, OrderTypeDineIn:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown order type %q", ErrValidation, s)
}

type OrderItem struct {
	MenuItemID int64           `json:"menu_item_id"`
	Name       string          `json:"name,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Note       string          `json:"note,omitempty"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	ClientID        string          `json:"client_id"`
	Type            OrderType       `json:"type"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// MoneyScale is the number of decimal places every stored amount keeps.
const MoneyScale = 2

// WholeCents reports whether d fits MoneyScale without rounding.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// NewOrder validates the request and builds a pending order with the
// total fixed from the snapshotted unit prices.
func NewOrder(clientID string, t OrderType, items []OrderItem, address string, now time.Time) (*Order, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidOrder)
	}
	if _, err := ParseOrderType(string(t)); err != nil {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, t)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	address = strings.TrimSpace(address)
	if t == OrderTypeDelivery && address == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrInvalidOrder)
	}
	if t != OrderTypeDelivery {
		address = ""
	}

	snapshot := make([]OrderItem, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidOrder, it.MenuItemID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d has negative price", ErrInvalidOrder, it.MenuItemID)
		}
		if !WholeCents(it.UnitPrice) {
			return nil, fmt.Errorf("%w: item %d price %s has fractional cents", ErrInvalidOrder, it.MenuItemID, it.UnitPrice)
		}
		snapshot[i] = it
	}

	return &Order{
		ID:              uuid.New(),
		ClientID:        clientID,
		Type:            t,
		DeliveryAddress: address,
		Items:           snapshot,
		TotalAmount:     SumItems(snapshot),
		Status:          StatusPending,
		CreatedAt:       now.UTC(),
	}, nil
}

func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Clone returns a copy that shares nothing mutable with o.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}
