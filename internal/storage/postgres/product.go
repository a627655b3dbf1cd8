package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

const (
	productColumns = `id, name, price, category, promo_kind, promo_value,
		image_thumbnail, image_mobile, image_tablet, image_desktop`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	lockProductPriceSQL = `SELECT price FROM products WHERE id = $1 FOR UPDATE`

	updateProductPriceSQL = `UPDATE products SET price = $2 WHERE id = $1`

	insertPriceHistorySQL = `INSERT INTO price_history (product_id, old_price, new_price, changed_by)
		VALUES ($1, $2, $3, $4) RETURNING changed_at`

	listPriceHistorySQL = `SELECT product_id, old_price, new_price, changed_by, changed_at
		FROM price_history WHERE product_id = $1 ORDER BY changed_at DESC, id DESC`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, category = EXCLUDED.category,
			promo_kind = EXCLUDED.promo_kind, promo_value = EXCLUDED.promo_value,
			image_thumbnail = EXCLUDED.image_thumbnail, image_mobile = EXCLUDED.image_mobile,
			image_tablet = EXCLUDED.image_tablet, image_desktop = EXCLUDED.image_desktop`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// UpdatePrice changes a product's price and appends a price history entry in
// the same transaction.
func (r *ProductRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal, changedBy string) (*product.PriceChange, error) {
	change := &product.PriceChange{
		ProductID: id,
		NewPrice:  price,
		ChangedBy: changedBy,
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, lockProductPriceSQL, id).Scan(&change.OldPrice); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return fmt.Errorf("locking product %q: %w", id, err)
		}
		if _, err := tx.Exec(ctx, updateProductPriceSQL, id, price); err != nil {
			return fmt.Errorf("updating price of %q: %w", id, err)
		}
		if err := tx.QueryRow(ctx, insertPriceHistorySQL, id, change.OldPrice, price, changedBy).Scan(&change.ChangedAt); err != nil {
			return fmt.Errorf("recording price history of %q: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// PriceHistory returns a product's price changes, newest first.
func (r *ProductRepository) PriceHistory(ctx context.Context, id string) ([]product.PriceChange, error) {
	rows, err := r.pool.Query(ctx, listPriceHistorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing price history of %q: %w", id, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.PriceChange, error) {
		var c product.PriceChange
		err := row.Scan(&c.ProductID, &c.OldPrice, &c.NewPrice, &c.ChangedBy, &c.ChangedAt)
		return c, err
	})
}

// Upsert inserts or replaces a catalog product. It is used by seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	kind, value := discountColumns(p.Promotion)
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.Category, kind, value,
		p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p          product.Product
		promoKind  string
		promoValue decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Category, &promoKind, &promoValue,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
	)
	if err != nil {
		return p, err
	}
	p.Promotion, err = pricing.Parse(promoKind, promoValue)
	if err != nil {
		return p, fmt.Errorf("product %q promotion: %w", p.ID, err)
	}
	return p, nil
}
