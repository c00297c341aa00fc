package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, actor domain.Actor, req CreateOrderRequest) (*domain.Order, error)
}

type CartLine struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

// Cart accumulates one session's picks before checkout.
type Cart struct {
	menu MenuLookup

	mu    sync.Mutex
	lines map[int64]int

	// serialises Submit so one cart cannot produce two orders at once
	submitMu sync.Mutex
}

func NewCart(menu MenuLookup) *Cart {
	return &Cart{menu: menu, lines: make(map[int64]int)}
}

// Add puts one more of itemID in the cart. Unknown or unavailable items are
// ignored and Add reports false.
func (c *Cart) Add(ctx context.Context, itemID int64) bool {
	menu, err := c.menu.Lookup(ctx)
	if err != nil {
		logger.Warn("cart: catalog unavailable", "err", err)
		return false
	}
	it, ok := menu[itemID]
	if !ok || !it.Available {
		return false
	}

	c.mu.Lock()
	c.lines[itemID]++
	c.mu.Unlock()
	return true
}

// Remove takes one of itemID out; the line disappears at zero.
func (c *Cart) Remove(itemID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines[itemID] <= 1 {
		delete(c.lines, itemID)
		return
	}
	c.lines[itemID]--
}

func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartLine, 0, len(c.lines))
	for id, q := range c.lines {
		out = append(out, CartLine{MenuItemID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MenuItemID < out[j].MenuItemID })
	return out
}

// Total prices the cart at current catalog prices. Items missing from the
// catalog count as zero.
func (c *Cart) Total(ctx context.Context) (decimal.Decimal, error) {
	menu, err := c.menu.Lookup(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range c.Lines() {
		it, ok := menu[l.MenuItemID]
		if !ok {
			logger.Warn("cart: item missing from catalog", "menu_item_id", l.MenuItemID)
			continue
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}

// Submit turns the cart into an order. The submitted lines leave the cart
// only after the order was created; on any error the cart is untouched.
func (c *Cart) Submit(ctx context.Context, creator OrderCreator, actor domain.Actor, t domain.OrderType, address string) (*domain.Order, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	lines := c.Lines()
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	if t == domain.OrderTypeDelivery && strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: delivery address is required", domain.ErrValidation)
	}

	req := CreateOrderRequest{ClientID: actor.ID, Type: t, DeliveryAddress: address}
	for _, l := range lines {
		req.Items = append(req.Items, OrderLine{MenuItemID: l.MenuItemID, Quantity: l.Quantity})
	}

	o, err := creator.CreateOrder(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	// lines added while the order was being created stay in the cart
	c.mu.Lock()
	for _, l := range lines {
		if left := c.lines[l.MenuItemID] - l.Quantity; left > 0 {
			c.lines[l.MenuItemID] = left
		} else {
			delete(c.lines, l.MenuItemID)
		}
	}
	c.mu.Unlock()
	return o, nil
}

// CartSessions holds one cart per actor. It is passed explicitly to whoever
// serves carts; there is no process-wide cart.
type CartSessions struct {
	menu MenuLookup

	mu    sync.Mutex
	carts map[string]*Cart
}

func NewCartSessions(menu MenuLookup) *CartSessions {
	return &CartSessions{menu: menu, carts: make(map[string]*Cart)}
}

func (s *CartSessions) For(actorID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[actorID]
	if !ok {
		c = NewCart(s.menu)
		s.carts[actorID] = c
	}
	return c
}

// Checkout submits the actor's cart and forgets the session once the cart
// is empty, so the registry only holds carts with something in them.
func (s *CartSessions) Checkout(ctx context.Context, creator OrderCreator, actor domain.Actor, t domain.OrderType, address string) (*domain.Order, error) {
	c := s.For(actor.ID)
	o, err := c.Submit(ctx, creator, actor, t, address)
	if err != nil {
		return nil, err
	}
	s.dropIfEmpty(actor.ID, c)
	return o, nil
}

func (s *CartSessions) dropIfEmpty(actorID string, c *Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts[actorID] != c {
		return
	}
	c.mu.Lock()
	empty := len(c.lines) == 0
	c.mu.Unlock()
	if empty {
		delete(s.carts, actorID)
	}
}
