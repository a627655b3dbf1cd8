package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuoteRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.orders.Quote(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) { h.quoteFields(e, q) })
	})
}

func decodeQuoteRequest(r *http.Request) (order.QuoteRequest, error) {
	var req order.QuoteRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = decodeItems(d)
		case "customerId":
			req.CustomerID, err = decodeStr(d)
		case "couponCode":
			req.CouponCode, err = decodeStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeItems(d *jx.Decoder) ([]order.OrderItem, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var items []order.OrderItem
	err := d.Arr(func(d *jx.Decoder) error {
		var item order.OrderItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				item.ProductID, err = decodeStr(d)
			case "quantity":
				item.Quantity, err = decodeInt(d, key)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if item.ProductID == "" {
			return badRequest("productId is required")
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// quoteFields writes the priced lines and stacked totals of q into the
// enclosing object.
func (h *Handler) quoteFields(e *jx.Encoder, q *order.Quote) {
	b := q.Breakdown
	cur := q.Currency
	e.Field("items", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i, item := range q.Items {
				p := q.Products[i]
				l := b.Lines[i]
				e.Obj(func(e *jx.Encoder) {
					e.Field("productId", func(e *jx.Encoder) { e.Str(p.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
					e.Field("unitPrice", func(e *jx.Encoder) { num(e, p.Price) })
					if !p.Promotion.IsZero() {
						e.Field("itemDiscount", func(e *jx.Encoder) { encodeDiscount(e, p.Promotion) })
					}
					e.Field("discountedUnitPrice", func(e *jx.Encoder) { num(e, l.DiscountedUnitPrice) })
					e.Field("total", func(e *jx.Encoder) { num(e, l.Total) })
				})
			}
		})
	})
	if q.Customer != nil {
		e.Field("customerId", func(e *jx.Encoder) { e.Str(q.Customer.ID) })
	}
	if q.Coupon != nil {
		e.Field("couponCode", func(e *jx.Encoder) { e.Str(q.Coupon.Code) })
	}
	totalFields(e, cur, b, q.MemberFraction(), q.CouponDiscount())
}

// totalFields writes the breakdown totals shared by quotes and order details.
func totalFields(e *jx.Encoder, cur pricing.Currency, b pricing.Breakdown, member decimal.Decimal, coupon pricing.Discount) {
	total := b.Payable(cur)
	e.Field("subtotal", func(e *jx.Encoder) { num(e, b.Subtotal) })
	e.Field("memberDiscount", func(e *jx.Encoder) { num(e, member) })
	e.Field("memberDiscountAmount", func(e *jx.Encoder) { num(e, b.MemberDiscount) })
	if !coupon.IsZero() {
		e.Field("coupon", func(e *jx.Encoder) { encodeDiscount(e, coupon) })
	}
	e.Field("couponDiscountAmount", func(e *jx.Encoder) { num(e, b.CouponDiscount) })
	e.Field("discounts", func(e *jx.Encoder) { num(e, cur.Round(b.TotalDiscount())) })
	e.Field("total", func(e *jx.Encoder) { num(e, total) })
	e.Field("formatted", func(e *jx.Encoder) { e.Str(cur.Format(total)) })
}
