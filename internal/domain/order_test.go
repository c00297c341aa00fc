package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewOrder(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	items := []OrderItem{
		{MenuItemID: 1, Quantity: 2, UnitPrice: price("5.00")},
		{MenuItemID: 2, Quantity: 1, UnitPrice: price("3.00")},
	}

	tests := []struct {
		name    string
		client  string
		typ     OrderType
		items   []OrderItem
		address string
		wantErr bool
	}{
		{name: "takeout", client: "c-1", typ: OrderTypeTakeout, items: items},
		{name: "delivery with address", client: "c-1", typ: OrderTypeDelivery, items: items, address: "Bikini Bottom 1"},
		{name: "delivery without address", client: "c-1", typ: OrderTypeDelivery, items: items, address: "   ", wantErr: true},
		{name: "no items", client: "c-1", typ: OrderTypeDineIn, wantErr: true},
		{name: "zero quantity", client: "c-1", typ: OrderTypeDineIn, items: []OrderItem{{MenuItemID: 1, Quantity: 0, UnitPrice: price("1")}}, wantErr: true},
		{name: "negative quantity", client: "c-1", typ: OrderTypeDineIn, items: []OrderItem{{MenuItemID: 1, Quantity: -2, UnitPrice: price("1")}}, wantErr: true},
		{name: "fractional cents", client: "c-1", typ: OrderTypeTakeout, items: []OrderItem{{MenuItemID: 1, Quantity: 3, UnitPrice: price("0.333")}}, wantErr: true},
		{name: "unknown type", client: "c-1", typ: OrderType("drive_in"), items: items, wantErr: true},
		{name: "missing client", client: "", typ: OrderTypeTakeout, items: items, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrder(tt.client, tt.typ, tt.items, tt.address, now)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidOrder)
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, o.Status)
			assert.True(t, price("13.00").Equal(o.TotalAmount), "total %s", o.TotalAmount)
			assert.Equal(t, now, o.CreatedAt)
		})
	}
}

func TestWholeCents(t *testing.T) {
	assert.True(t, WholeCents(price("4.20")))
	assert.True(t, WholeCents(price("4.200")))
	assert.True(t, WholeCents(price("7")))
	assert.False(t, WholeCents(price("0.333")))
	assert.False(t, WholeCents(price("19.999")))
}

func TestNewOrderSnapshotsItems(t *testing.T) {
	items := []OrderItem{{MenuItemID: 1, Quantity: 2, UnitPrice: price("5.00")}}
	o, err := NewOrder("c-1", OrderTypeTakeout, items, "ignored", time.Now())
	require.NoError(t, err)

	items[0].UnitPrice = price("50.00")
	items[0].Quantity = 9

	assert.True(t, price("10.00").Equal(o.TotalAmount))
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Empty(t, o.DeliveryAddress)
}

func TestCloneDoesNotShareItems(t *testing.T) {
	o, err := NewOrder("c-1", OrderTypeTakeout, []OrderItem{{MenuItemID: 1, Quantity: 1, UnitPrice: price("1")}}, "", time.Now())
	require.NoError(t, err)

	c := o.Clone()
	c.Items[0].Quantity = 7
	assert.Equal(t, 1, o.Items[0].Quantity)
}
