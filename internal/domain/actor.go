package domain

import "fmt"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCashier  Role = "cashier"
	RoleCook     Role = "cook"
	RoleManager  Role = "manager"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleCashier, RoleCook, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// Actor is whoever issues a request, as identified by the identity service.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleCashier || a.Role == RoleCook || a.Role == RoleManager
}
