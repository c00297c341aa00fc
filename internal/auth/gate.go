package auth

import (
	"fmt"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

type Operation string

const (
	OpCreateOrder        Operation = "create_order"
	OpReadAnyOrder       Operation = "read_any_order"
	OpProcessPayment     Operation = "process_payment"
	OpProcessCashPayment Operation = "process_cash_payment"
	OpViewKitchenQueue   Operation = "view_kitchen_queue"
	OpGenerateOrders     Operation = "generate_orders"
)

// Capabilities is the capability set of one role.
type Capabilities interface {
	Allows(op Operation) bool
	// AllowsTransition is keyed by the target status; whether the move is
	// legal from the current status is the state machine's business.
	AllowsTransition(to domain.Status) bool
}

type customer struct{}

func (customer) Allows(op Operation) bool           { return op == OpCreateOrder }
func (customer) AllowsTransition(domain.Status) bool { return false }

type cook struct{}

func (cook) Allows(op Operation) bool {
	return op == OpReadAnyOrder || op == OpViewKitchenQueue
}

func (cook) AllowsTransition(to domain.Status) bool {
	return to == domain.StatusPreparing || to == domain.StatusReady
}

type cashier struct{}

func (cashier) Allows(op Operation) bool {
	switch op {
	case OpReadAnyOrder, OpProcessPayment, OpProcessCashPayment, OpViewKitchenQueue:
		return true
	}
	return false
}

func (cashier) AllowsTransition(to domain.Status) bool {
	switch to {
	case domain.StatusDelivering, domain.StatusCompleted, domain.StatusDelivered, domain.StatusCancelled:
		return true
	}
	return false
}

type manager struct{ cashier }

func (m manager) Allows(op Operation) bool {
	return op == OpGenerateOrders || m.cashier.Allows(op)
}

var byRole = map[domain.Role]Capabilities{
	domain.RoleCustomer: customer{},
	domain.RoleCook:     cook{},
	domain.RoleCashier:  cashier{},
	domain.RoleManager:  manager{},
}

func For(role domain.Role) (Capabilities, bool) {
	c, ok := byRole[role]
	return c, ok
}

// Gate is consulted by every mutating operation before it touches state.
type Gate struct{}

func NewGate() *Gate { return &Gate{} }

func (g *Gate) Authorize(a domain.Actor, op Operation) error {
	c, ok := For(a.Role)
	if !ok || !c.Allows(op) {
		return fmt.Errorf("%w: role %q cannot %s", domain.ErrForbidden, a.Role, op)
	}
	return nil
}

func (g *Gate) AuthorizeTransition(a domain.Actor, to domain.Status) error {
	c, ok := For(a.Role)
	if !ok || !c.AllowsTransition(to) {
		return fmt.Errorf("%w: role %q cannot move orders to %s", domain.ErrForbidden, a.Role, to)
	}
	return nil
}

// AuthorizeRead lets staff read any order and customers only their own.
func (g *Gate) AuthorizeRead(a domain.Actor, o domain.Order) error {
	if g.Authorize(a, OpReadAnyOrder) == nil {
		return nil
	}
	if a.Role == domain.RoleCustomer && a.ID != "" && a.ID == o.ClientID {
		return nil
	}
	return fmt.Errorf("%w: order %s belongs to another client", domain.ErrForbidden, o.ID)
}
