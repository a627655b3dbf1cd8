package pricing

import "github.com/shopspring/decimal"

// Line is a single cart or order line before order-level discounts.
type Line struct {
	UnitPrice    decimal.Decimal
	Quantity     int
	ItemDiscount Discount
}

// LineResult is a Line after the item discount was applied.
type LineResult struct {
	Line
	DiscountedUnitPrice decimal.Decimal
	Total               decimal.Decimal
}

// Breakdown is the full stacking result. No field is rounded; use Payable or
// Currency.Round at display or submission time.
type Breakdown struct {
	Lines          []LineResult
	Subtotal       decimal.Decimal
	MemberDiscount decimal.Decimal
	AfterMember    decimal.Decimal
	CouponDiscount decimal.Decimal
	Final          decimal.Decimal
}

// Payable returns the final amount rounded to the currency's minor unit.
func (b Breakdown) Payable(c Currency) decimal.Decimal {
	return c.Round(b.Final)
}

// TotalDiscount returns everything taken off the undiscounted line prices.
func (b Breakdown) TotalDiscount() decimal.Decimal {
	gross := zero
	for _, l := range b.Lines {
		gross = gross.Add(floorAtZero(l.UnitPrice).Mul(decimal.NewFromInt(int64(max(l.Quantity, 0)))))
	}
	return floorAtZero(gross.Sub(b.Final))
}

// DiscountedUnitPrice applies a per-item discount to one unit.
func DiscountedUnitPrice(unitPrice decimal.Decimal, d Discount) decimal.Decimal {
	unitPrice = floorAtZero(unitPrice)
	if d.IsZero() {
		return unitPrice
	}
	switch d.Kind {
	case KindPercentage:
		return floorAtZero(unitPrice.Mul(one.Sub(clampFraction(d.Value))))
	case KindAbsolute:
		return floorAtZero(unitPrice.Sub(d.Value))
	default:
		return unitPrice
	}
}

// LineTotal multiplies a discounted unit price by quantity without rounding.
func LineTotal(discountedUnitPrice decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return zero
	}
	return discountedUnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ApplyMemberDiscount takes the member fraction off the subtotal. The
// fraction is always a fraction, never an amount.
func ApplyMemberDiscount(subtotal, fraction decimal.Decimal) decimal.Decimal {
	return floorAtZero(floorAtZero(subtotal).Mul(one.Sub(clampFraction(fraction))))
}

// ApplyCoupon applies the coupon to what remains after the member discount.
// The result never exceeds afterMember.
func ApplyCoupon(afterMember decimal.Decimal, coupon Discount) decimal.Decimal {
	afterMember = floorAtZero(afterMember)
	if coupon.IsZero() {
		return afterMember
	}
	switch coupon.Kind {
	case KindPercentage:
		discount := afterMember.Mul(clampFraction(coupon.Value))
		return floorAtZero(afterMember.Sub(discount))
	case KindAbsolute:
		discount := decimal.Min(coupon.Value, afterMember)
		return floorAtZero(afterMember.Sub(discount))
	default:
		return afterMember
	}
}

// Stack runs item discount, member discount and coupon, in that fixed order.
func Stack(lines []Line, memberFraction decimal.Decimal, coupon Discount) Breakdown {
	b := Breakdown{Lines: make([]LineResult, len(lines))}

	subtotal := zero
	for i, l := range lines {
		unit := DiscountedUnitPrice(l.UnitPrice, l.ItemDiscount)
		total := LineTotal(unit, l.Quantity)
		b.Lines[i] = LineResult{
			Line:                l,
			DiscountedUnitPrice: unit,
			Total:               total,
		}
		subtotal = subtotal.Add(total)
	}

	b.Subtotal = subtotal
	b.AfterMember = ApplyMemberDiscount(subtotal, memberFraction)
	b.MemberDiscount = subtotal.Sub(b.AfterMember)
	b.Final = ApplyCoupon(b.AfterMember, coupon)
	b.CouponDiscount = b.AfterMember.Sub(b.Final)
	return b
}

func clampFraction(f decimal.Decimal) decimal.Decimal {
	if f.IsNegative() {
		return zero
	}
	if f.GreaterThan(one) {
		return one
	}
	return f
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
