package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency describes rounding granularity and display for an amount.
type Currency struct {
	Code       string
	Symbol     string
	MinorUnits int32
	Locale     language.Tag
}

// VND is the store currency: whole dong, vi-VN grouping.
var VND = Currency{
	Code:       "VND",
	Symbol:     "₫",
	MinorUnits: 0,
	Locale:     language.Vietnamese,
}

// Round rounds x to the currency's minor unit, half away from zero.
func (c Currency) Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(c.MinorUnits)
}

// Format renders x for display, e.g. "427.500 ₫" for VND.
func (c Currency) Format(x decimal.Decimal) string {
	p := message.NewPrinter(c.Locale)
	rounded := c.Round(x)

	var s string
	if c.MinorUnits == 0 {
		s = p.Sprintf("%d", rounded.IntPart())
	} else {
		s = p.Sprintf(fmt.Sprintf("%%.%df", c.MinorUnits), rounded.InexactFloat64())
	}
	if c.Symbol == "" {
		return s
	}
	return s + " " + c.Symbol
}

// ParseAmount parses a loosely formatted number, such as a value column of a
// bulk import. Anything that does not parse to a non-negative number becomes
// zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return zero
	}
	if v.IsNegative() {
		return zero
	}
	return v
}
