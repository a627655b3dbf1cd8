package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Validator resolves coupon codes to rules. Uses are consumed by the order
// repository together with the order insert.
type Validator interface {
	// Check returns the rule for code if it can be used on a cart holding
	// itemCount units. It does not consume a use.
	Check(ctx context.Context, code string, itemCount int) (*Rule, error)
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Check looks up the coupon rule for the given code and checks temporal
// validity, usage limits and the minimum item count.
func (v *RepoValidator) Check(ctx context.Context, code string, itemCount int) (*Rule, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	if rule.MinItems > 0 && itemCount < rule.MinItems {
		return nil, ErrInvalidCoupon
	}

	return rule, nil
}
