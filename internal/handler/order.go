package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/shopdesk/internal/domain/order"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuoteRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writePlaced(w, res)
}

func (h *Handler) writePlaced(w http.ResponseWriter, res *order.PlaceOrderResult) {
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(res.Order.ID) })
			e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, res.Order.CreatedAt) })
			h.quoteFields(e, res.Quote)
		})
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		fail(w, r, err)
		return
	}

	summaries, err := h.orders.List(r.Context(), limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, s := range summaries {
				h.encodeSummary(e, s)
			}
		})
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeDetail(e, d) })
}

func (h *Handler) encodeSummary(e *jx.Encoder, s order.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		if s.CustomerID != "" {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(s.CustomerID) })
		}
		if s.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(s.CouponCode) })
		}
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(s.ItemCount) })
		e.Field("discounts", func(e *jx.Encoder) { num(e, s.Discounts) })
		e.Field("total", func(e *jx.Encoder) { num(e, s.Total) })
		e.Field("formatted", func(e *jx.Encoder) { e.Str(h.currency.Format(s.Total)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, s.CreatedAt) })
	})
}

// encodeDetail writes an order with the breakdown recomputed from its
// snapshot rather than the current catalog.
func (h *Handler) encodeDetail(e *jx.Encoder, d *order.Detail) {
	o := d.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i, l := range o.Lines {
					res := d.Breakdown.Lines[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { num(e, l.UnitPrice) })
						if !l.ItemDiscount.IsZero() {
							e.Field("itemDiscount", func(e *jx.Encoder) { encodeDiscount(e, l.ItemDiscount) })
						}
						e.Field("discountedUnitPrice", func(e *jx.Encoder) { num(e, res.DiscountedUnitPrice) })
						e.Field("total", func(e *jx.Encoder) { num(e, res.Total) })
					})
				}
			})
		})
		if o.CustomerID != "" {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		}
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		totalFields(e, h.currency, d.Breakdown, o.MemberDiscount, o.Coupon)
	})
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}
