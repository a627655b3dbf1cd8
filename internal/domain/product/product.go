package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	// Promotion is the per-item discount applied before any order-level
	// discount.
	Promotion pricing.Discount
	Image     Image
}

// Line returns the pricing line for qty units of p.
func (p Product) Line(qty int) pricing.Line {
	return pricing.Line{
		UnitPrice:    p.Price,
		Quantity:     qty,
		ItemDiscount: p.Promotion,
	}
}

// Image holds responsive image paths for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// PriceChange is one entry of a product's price history.
type PriceChange struct {
	ProductID string
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	ChangedBy string
	ChangedAt time.Time
}

// Repository defines catalog reads and price maintenance.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// UpdatePrice sets a new price and records the change in price history.
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal, changedBy string) (*PriceChange, error)
	PriceHistory(ctx context.Context, id string) ([]PriceChange, error)
}
