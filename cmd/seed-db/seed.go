package main

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/customer"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

type seedData struct {
	Products  []product.Product
	Customers []customer.Customer
	Coupons   []coupon.Rule
}

// parseSeed decodes a seed file. Discounts are given either as a
// {"type", "value"} object or as a single legacy number, where values up to
// 1 are fractions and larger values are amounts.
func parseSeed(data []byte) (*seedData, error) {
	var s seedData
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product %d", len(s.Products))
				}
				s.Products = append(s.Products, p)
				return nil
			})
		case "customers":
			return d.Arr(func(d *jx.Decoder) error {
				c, err := decodeCustomer(d)
				if err != nil {
					return errors.Wrapf(err, "customer %d", len(s.Customers))
				}
				s.Customers = append(s.Customers, c)
				return nil
			})
		case "coupons":
			return d.Arr(func(d *jx.Decoder) error {
				r, err := decodeCoupon(d)
				if err != nil {
					return errors.Wrapf(err, "coupon %d", len(s.Coupons))
				}
				s.Coupons = append(s.Coupons, r)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = decodeNumber(d)
		case "discountValue":
			var v decimal.Decimal
			v, err = decodeNumber(d)
			p.Promotion = pricing.FromLegacy(v)
		case "promotion":
			p.Promotion, err = decodeDiscount(d)
		case "image":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "thumbnail":
					p.Image.Thumbnail, err = d.Str()
				case "mobile":
					p.Image.Mobile, err = d.Str()
				case "tablet":
					p.Image.Tablet, err = d.Str()
				case "desktop":
					p.Image.Desktop, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && p.ID == "" {
		err = errors.New("id is required")
	}
	return p, err
}

func decodeCustomer(d *jx.Decoder) (customer.Customer, error) {
	var c customer.Customer
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "tier":
			c.Tier, err = d.Str()
		case "memberDiscount":
			c.MemberDiscount, err = decodeNumber(d)
		default:
			err = d.Skip()
		}
		return err
	})
	switch {
	case err != nil:
	case c.ID == "":
		err = errors.New("id is required")
	case c.MemberDiscount.GreaterThan(decimal.NewFromInt(1)):
		err = errors.Errorf("memberDiscount %s is not a fraction", c.MemberDiscount)
	}
	return c, err
}

func decodeCoupon(d *jx.Decoder) (coupon.Rule, error) {
	r := coupon.Rule{Active: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			var code string
			code, err = d.Str()
			r.Code = strings.ToUpper(strings.TrimSpace(code))
		case "value":
			var v decimal.Decimal
			v, err = decodeNumber(d)
			r.Discount = pricing.FromLegacy(v)
		case "discount":
			r.Discount, err = decodeDiscount(d)
		case "minItems":
			r.MinItems, err = d.Int()
		case "maxUses":
			r.MaxUses, err = d.Int()
		case "description":
			r.Description, err = d.Str()
		case "active":
			r.Active, err = d.Bool()
		case "validFrom":
			r.ValidFrom, err = decodeTime(d)
		case "validUntil":
			r.ValidUntil, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && r.Code == "" {
		err = errors.New("code is required")
	}
	return r, err
}

func decodeDiscount(d *jx.Decoder) (pricing.Discount, error) {
	var (
		kind  string
		value decimal.Decimal
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			kind, err = d.Str()
		case "value":
			value, err = decodeNumber(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return pricing.Discount{}, err
	}
	return pricing.Parse(kind, value)
}

// decodeNumber reads a JSON number or numeric string exactly.
func decodeNumber(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		s = v
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		s = n.String()
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %q", s)
	}
	if v.IsNegative() {
		return decimal.Zero, errors.Errorf("negative amount %s", v)
	}
	return v, nil
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse time %q", s)
	}
	return &t, nil
}
