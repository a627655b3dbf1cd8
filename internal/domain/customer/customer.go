package customer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a storefront buyer with an optional loyalty tier.
type Customer struct {
	ID    string
	Name  string
	Email string
	Tier  string
	// MemberDiscount is the loyalty fraction in [0,1] taken off an order
	// subtotal once.
	MemberDiscount decimal.Decimal
}

// Repository provides customer lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}
