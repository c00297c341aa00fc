package domain

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPreparing  Status = "preparing"
	StatusReady      Status = "ready"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
	StatusDelivering, StatusDelivered, StatusCompleted, StatusCancelled,
}

// ParseStatus accepts only the canonical lower-case names.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// KitchenVisible reports whether cooks see orders in this status.
func (s Status) KitchenVisible() bool {
	return s == StatusConfirmed || s == StatusPreparing
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCompleted || s == StatusCancelled
}

// edges lists every allowed move. pending -> confirmed is only reachable
// through settlement and is kept here so the table stays complete.
var edges = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusPreparing, StatusCancelled},
	StatusPreparing:  {StatusReady, StatusCancelled},
	StatusReady:      {StatusDelivering, StatusCompleted},
	StatusDelivering: {StatusDelivered},
}

// CheckTransition validates a move for an order of the given type.
func CheckTransition(t OrderType, from, to Status) error {
	allowed := false
	for _, next := range edges[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StatusDelivering && t != OrderTypeDelivery {
		return fmt.Errorf("%w: %s -> %s only for delivery orders", ErrInvalidTransition, from, to)
	}
	if to == StatusCompleted && t == OrderTypeDelivery {
		return fmt.Errorf("%w: delivery orders finish through %s", ErrInvalidTransition, StatusDelivering)
	}
	return nil
}
