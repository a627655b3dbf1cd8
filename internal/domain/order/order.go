package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed order. Lines, member fraction and coupon are snapshots
// taken at checkout, so the breakdown can be recomputed later without
// consulting the current catalog.
type Order struct {
	ID             string
	CustomerID     string
	CouponCode     string
	Lines          []Line
	MemberDiscount decimal.Decimal
	Coupon         pricing.Discount
	// Subtotal, Discounts and Total are rounded to the store currency.
	Subtotal  decimal.Decimal
	Discounts decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Line is a priced order line.
type Line struct {
	ProductID    string
	Name         string
	UnitPrice    decimal.Decimal
	ItemDiscount pricing.Discount
	Quantity     int
}

// Breakdown recomputes the stacked totals from the order's snapshot.
func (o *Order) Breakdown() pricing.Breakdown {
	lines := make([]pricing.Line, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = pricing.Line{
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			ItemDiscount: l.ItemDiscount,
		}
	}
	return pricing.Stack(lines, o.MemberDiscount, o.Coupon)
}

// ItemCount returns the number of units across all lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// OrderItem is a requested product and quantity.
type OrderItem struct {
	ProductID string
	Quantity  int
}

// Summary is an order list row.
type Summary struct {
	ID         string
	CustomerID string
	CouponCode string
	ItemCount  int
	Discounts  decimal.Decimal
	Total      decimal.Decimal
	CreatedAt  time.Time
}

// Detail is an order with its recomputed breakdown.
type Detail struct {
	Order     *Order
	Breakdown pricing.Breakdown
	Total     decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists order. When CouponCode is set it consumes one use of
	// that coupon atomically with the insert, and returns
	// coupon.ErrCouponUsageLimitReached without writing when none is left.
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, limit, offset int) ([]Order, error)
}
