package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_kind, discount_value, min_items, description,
		valid_from, valid_until, max_uses, uses, active
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_kind, discount_value, min_items, description,
		valid_from, valid_until, max_uses, active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			discount_kind = EXCLUDED.discount_kind, discount_value = EXCLUDED.discount_value,
			min_items = EXCLUDED.min_items, description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses, active = EXCLUDED.active`

	// Bulk imports only carry a discount. Limits, window and description of an
	// existing coupon are kept.
	upsertCouponDiscountSQL = `INSERT INTO coupons (code, discount_kind, discount_value, description, active)
		VALUES (UPPER($1), $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			discount_kind = EXCLUDED.discount_kind, discount_value = EXCLUDED.discount_value`

	listCouponCodesSQL = `SELECT code FROM coupons`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Upsert creates or replaces a coupon. The usage counter of an existing
// coupon is preserved.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	kind, value := discountColumns(rule.Discount)
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, kind, value, rule.MinItems, rule.Description,
		rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

// UpsertDiscount inserts an imported coupon, or replaces only the discount of
// an existing one.
func (r *CouponRepository) UpsertDiscount(ctx context.Context, rule *coupon.Rule) error {
	kind, value := discountColumns(rule.Discount)
	_, err := r.pool.Exec(ctx, upsertCouponDiscountSQL,
		rule.Code, kind, value, rule.Description, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("importing coupon %q: %w", rule.Code, err)
	}
	return nil
}

// EachCode calls fn for every stored coupon code.
func (r *CouponRepository) EachCode(ctx context.Context, fn func(code string) error) error {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		return fn(code)
	})
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	return nil
}

// CopyInsert bulk-inserts coupons that are known not to exist yet. It returns
// the number of rows written.
func (r *CouponRepository) CopyInsert(ctx context.Context, rules []coupon.Rule) (int64, error) {
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"coupons"},
		[]string{"code", "discount_kind", "discount_value", "min_items", "description", "max_uses", "active"},
		pgx.CopyFromSlice(len(rules), func(i int) ([]any, error) {
			rule := rules[i]
			kind, value := discountColumns(rule.Discount)
			return []any{rule.Code, kind, value, rule.MinItems, rule.Description, rule.MaxUses, rule.Active}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copying coupons: %w", err)
	}
	return n, nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule       coupon.Rule
		kind       string
		value      decimal.Decimal
		minItems   int32
		validFrom  *time.Time
		validUntil *time.Time
		maxUses    int32
		uses       int32
	)
	err := row.Scan(
		&rule.Code, &kind, &value, &minItems, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses, &rule.Active,
	)
	if err != nil {
		return rule, err
	}
	rule.Discount, err = pricing.Parse(kind, value)
	if err != nil {
		return rule, fmt.Errorf("coupon %q discount: %w", rule.Code, err)
	}
	rule.MinItems = int(minItems)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, nil
}
