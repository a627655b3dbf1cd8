package postgres

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// Order line snapshots are stored as a JSON array. Decimals are encoded as
// strings to keep them exact.

func encodeLines(lines []order.Line) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
				e.Field("unit_price", func(e *jx.Encoder) { e.Str(l.UnitPrice.String()) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
				if !l.ItemDiscount.IsZero() {
					e.Field("discount_kind", func(e *jx.Encoder) { e.Str(string(l.ItemDiscount.Kind)) })
					e.Field("discount_value", func(e *jx.Encoder) { e.Str(l.ItemDiscount.Value.String()) })
				}
			})
		}
	})

	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}

func decodeLines(data []byte) ([]order.Line, error) {
	var lines []order.Line
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		l, err := decodeLine(d)
		if err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func decodeLine(d *jx.Decoder) (order.Line, error) {
	var (
		l             order.Line
		discountKind  string
		discountValue = decimal.Zero
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "unit_price":
			l.UnitPrice, err = decodeDecimal(d)
		case "discount_kind":
			discountKind, err = d.Str()
		case "discount_value":
			discountValue, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return l, err
	}
	l.ItemDiscount, err = pricing.Parse(discountKind, discountValue)
	return l, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", s)
	}
	return v, nil
}
