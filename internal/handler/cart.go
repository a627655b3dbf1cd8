package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/shopdesk/internal/domain/cart"
)

func sessionOf(r *http.Request) string {
	return chi.URLParam(r, "session")
}

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), sessionOf(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		qty       = 1
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			productID, err = decodeStr(d)
		case "quantity":
			qty, err = decodeInt(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && productID == "" {
		err = badRequest("productId is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.carts.AddItem(r.Context(), sessionOf(r), productID, qty); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	qty := -1
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		qty, err = decodeInt(d, key)
		return err
	})
	if err == nil && qty < 0 {
		err = badRequest("quantity must be zero or greater")
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.carts.SetQuantity(r.Context(), sessionOf(r), chi.URLParam(r, "productId"), qty); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.carts.RemoveItem(r.Context(), sessionOf(r), chi.URLParam(r, "productId")); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) applyCartCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := decodeStringField(r, "couponCode")
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.carts.ApplyCoupon(r.Context(), sessionOf(r), code); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) setCartCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := decodeStringField(r, "customerId")
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.carts.SetCustomer(r.Context(), sessionOf(r), id); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.carts.Checkout(r.Context(), sessionOf(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writePlaced(w, res)
}

func decodeStringField(r *http.Request, field string) (string, error) {
	var v string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		var err error
		v, err = decodeStr(d)
		return err
	})
	return v, err
}

// writeCart responds with the session's cart and its current totals.
func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	v, err := h.carts.View(r.Context(), sessionOf(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { h.encodeView(e, v) })
}

func (h *Handler) encodeView(e *jx.Encoder, v *cart.View) {
	c := v.Cart
	e.Obj(func(e *jx.Encoder) {
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(c.SessionID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range c.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(c.ItemCount()) })
		if c.CustomerID != "" {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(c.CustomerID) })
		}
		if c.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(c.CouponCode) })
		}
		if v.CouponErr != nil {
			_, msg := statusOf(v.CouponErr)
			e.Field("couponError", func(e *jx.Encoder) { e.Str(msg) })
		}
		if !c.UpdatedAt.IsZero() {
			e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, c.UpdatedAt) })
		}
		if v.Quote != nil {
			e.Field("quote", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) { h.quoteFields(e, v.Quote) })
			})
		}
	})
}
