package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

const (
	orderColumns = `id, customer_id, coupon_code, lines, member_discount,
		coupon_kind, coupon_value, subtotal, discounts, total, created_at`

	// The usage guard makes concurrent redemptions of the last use race-free.
	redeemCouponSQL = `UPDATE coupons SET uses = uses + 1
		WHERE UPPER(code) = UPPER($1) AND active = TRUE
			AND (max_uses = 0 OR uses < max_uses)`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The coupon use, if any, is consumed in the
// same transaction, so either both writes land or neither does. The order
// lines are serialized to JSON for storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	couponKind, couponValue := discountColumns(o.Coupon)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if o.CouponCode != "" {
			tag, err := tx.Exec(ctx, redeemCouponSQL, o.CouponCode)
			if err != nil {
				return fmt.Errorf("redeeming coupon %q: %w", o.CouponCode, err)
			}
			if tag.RowsAffected() == 0 {
				return coupon.ErrCouponUsageLimitReached
			}
		}
		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.CustomerID, o.CouponCode, encodeLines(o.Lines), o.MemberDiscount,
			couponKind, couponValue, o.Subtotal, o.Discounts, o.Total, o.CreatedAt,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, coupon.ErrCouponUsageLimitReached) {
			return err
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order by identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns a page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		lines       []byte
		couponKind  string
		couponValue decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CouponCode, &lines, &o.MemberDiscount,
		&couponKind, &couponValue, &o.Subtotal, &o.Discounts, &o.Total, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if o.Coupon, err = pricing.Parse(couponKind, couponValue); err != nil {
		return o, fmt.Errorf("order %q coupon: %w", o.ID, err)
	}
	if o.Lines, err = decodeLines(lines); err != nil {
		return o, fmt.Errorf("order %q lines: %w", o.ID, err)
	}
	return o, nil
}
