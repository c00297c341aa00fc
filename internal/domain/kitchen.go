package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type KitchenQueueLine struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note,omitempty"`
}

// KitchenQueueItem is rebuilt on every refresh and never stored.
type KitchenQueueItem struct {
	OrderID   uuid.UUID          `json:"order_id"`
	Status    Status             `json:"status"`
	Type      OrderType          `json:"type"`
	Items     []KitchenQueueLine `json:"items"`
	CreatedAt time.Time          `json:"created_at"`
}

type MenuItem struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// OrderEvent is emitted after every committed status change.
type OrderEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	ClientID string    `json:"client_id"`
	Type     OrderType `json:"type"`
	From     Status    `json:"from,omitempty"`
	To       Status    `json:"to"`
	At       time.Time `json:"at"`
}

// TouchesKitchen reports whether the event moves an order into or out of
// the cook-visible range.
func (e OrderEvent) TouchesKitchen() bool {
	return e.From.KitchenVisible() || e.To.KitchenVisible()
}
