// Package pricing holds the discount stacking rules shared by cart, checkout
// and order views. Everything here is pure: no I/O, no hidden state.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates how a Discount value is interpreted.
type Kind string

const (
	// KindNone means no discount.
	KindNone Kind = ""
	// KindPercentage means Value is a fraction in [0,1] taken off the amount.
	KindPercentage Kind = "percentage"
	// KindAbsolute means Value is a currency amount subtracted from the amount.
	KindAbsolute Kind = "absolute"
)

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// ErrInvalidDiscount is returned when a discount value is out of range for
// its kind.
var ErrInvalidDiscount = errors.New("invalid discount")

// Discount is either a percentage (fraction) or an absolute amount.
// The zero value is "no discount".
type Discount struct {
	Kind  Kind
	Value decimal.Decimal
}

// None returns the empty discount.
func None() Discount { return Discount{} }

// NewPercentage returns a percentage discount. fraction must be in [0,1].
func NewPercentage(fraction decimal.Decimal) (Discount, error) {
	if fraction.IsNegative() || fraction.GreaterThan(one) {
		return Discount{}, errors.Wrapf(ErrInvalidDiscount, "percentage %s out of [0,1]", fraction)
	}
	if fraction.IsZero() {
		return None(), nil
	}
	return Discount{Kind: KindPercentage, Value: fraction}, nil
}

// NewAbsolute returns an absolute currency discount. amount must be >= 0.
func NewAbsolute(amount decimal.Decimal) (Discount, error) {
	if amount.IsNegative() {
		return Discount{}, errors.Wrapf(ErrInvalidDiscount, "absolute amount %s is negative", amount)
	}
	if amount.IsZero() {
		return None(), nil
	}
	return Discount{Kind: KindAbsolute, Value: amount}, nil
}

// Parse builds a Discount from a stored kind and value pair.
func Parse(kind string, value decimal.Decimal) (Discount, error) {
	switch Kind(kind) {
	case KindNone:
		return None(), nil
	case KindPercentage:
		return NewPercentage(value)
	case KindAbsolute:
		return NewAbsolute(value)
	default:
		return Discount{}, errors.Wrapf(ErrInvalidDiscount, "unknown kind %q", kind)
	}
}

// FromLegacy reads the single-number convention carried by REST payloads
// (discountValue, coupon value): values up to and including 1 are fractions,
// larger values are currency amounts. Non-positive values mean no discount.
func FromLegacy(v decimal.Decimal) Discount {
	switch {
	case !v.IsPositive():
		return None()
	case v.LessThanOrEqual(one):
		return Discount{Kind: KindPercentage, Value: v}
	default:
		return Discount{Kind: KindAbsolute, Value: v}
	}
}

// Legacy returns the single-number form of d, the inverse of FromLegacy.
// An absolute discount of exactly 1 cannot be represented and is reported
// as ok=false.
func (d Discount) Legacy() (v decimal.Decimal, ok bool) {
	switch d.Kind {
	case KindPercentage:
		return d.Value, true
	case KindAbsolute:
		return d.Value, d.Value.GreaterThan(one)
	default:
		return zero, true
	}
}

// IsZero reports whether d takes nothing off.
func (d Discount) IsZero() bool {
	return d.Kind == KindNone || !d.Value.IsPositive()
}

func (d Discount) String() string {
	switch d.Kind {
	case KindPercentage:
		return d.Value.Shift(2).String() + "%"
	case KindAbsolute:
		return d.Value.String()
	default:
		return "none"
	}
}
