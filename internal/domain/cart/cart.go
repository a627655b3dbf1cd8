// Package cart keeps per-session shopping cart state. Each session owns its
// cart; there is no process-wide cart.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned by a Store when the session has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidSession is returned for an empty or malformed session id.
	ErrInvalidSession = errors.New("invalid session id")
)

// Cart is the state owned by one storefront session.
type Cart struct {
	SessionID  string
	CustomerID string
	CouponCode string
	Items      []Item
	UpdatedAt  time.Time
}

// Item is a product and quantity in the cart.
type Item struct {
	ProductID string
	Quantity  int
}

// ItemCount returns the number of units in the cart.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// setQuantity sets an absolute quantity; qty <= 0 removes the line.
func (c *Cart) setQuantity(productID string, qty int) {
	i := c.find(productID)
	switch {
	case qty <= 0 && i >= 0:
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	case qty <= 0:
	case i >= 0:
		c.Items[i].Quantity = qty
	default:
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
	}
}

// Store persists carts keyed by session id.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}
