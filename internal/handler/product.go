package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				h.encodeProduct(e, p)
			}
		})
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

type priceInput struct {
	Price string `validate:"required,numeric"`
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	var in priceInput
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "price":
			in.Price, err = numericText(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		fail(w, r, validationError(err))
		return
	}
	price, err := decimal.NewFromString(in.Price)
	if err != nil || !price.IsPositive() {
		fail(w, r, badRequest("price must be a positive number"))
		return
	}
	if price.GreaterThan(maxAmount) {
		fail(w, r, badRequest("price must not exceed %s", maxAmount))
		return
	}

	changedBy := ""
	if info := apiKeyFrom(r.Context()); info != nil {
		changedBy = info.Name
	}
	change, err := h.products.UpdatePrice(r.Context(), chi.URLParam(r, "id"), price, changedBy)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodePriceChange(e, *change) })
}

func (h *Handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.products.GetByID(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	changes, err := h.products.PriceHistory(r.Context(), id)
	if err != nil {
		fail(w, r, errors.Wrap(err, "price history"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range changes {
				h.encodePriceChange(e, c)
			}
		})
	})
}

// encodeProduct writes a catalog product. Image paths are prefixed with the
// configured base URL.
func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	discounted := pricing.DiscountedUnitPrice(p.Price, p.Promotion)
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { num(e, p.Price) })
		e.Field("formatted", func(e *jx.Encoder) { e.Str(h.currency.Format(p.Price)) })
		if !p.Promotion.IsZero() {
			e.Field("promotion", func(e *jx.Encoder) { encodeDiscount(e, p.Promotion) })
			if v, ok := p.Promotion.Legacy(); ok {
				e.Field("discountValue", func(e *jx.Encoder) { num(e, v) })
			}
		}
		e.Field("discountedPrice", func(e *jx.Encoder) { num(e, discounted) })
		e.Field("discountedFormatted", func(e *jx.Encoder) { e.Str(h.currency.Format(discounted)) })
		e.Field("image", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("thumbnail", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image.Thumbnail)) })
				e.Field("mobile", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image.Mobile)) })
				e.Field("tablet", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image.Tablet)) })
				e.Field("desktop", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image.Desktop)) })
			})
		})
	})
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) encodePriceChange(e *jx.Encoder, c product.PriceChange) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(c.ProductID) })
		e.Field("oldPrice", func(e *jx.Encoder) { num(e, c.OldPrice) })
		e.Field("newPrice", func(e *jx.Encoder) { num(e, c.NewPrice) })
		e.Field("formatted", func(e *jx.Encoder) { e.Str(h.currency.Format(c.NewPrice)) })
		e.Field("changedBy", func(e *jx.Encoder) { e.Str(c.ChangedBy) })
		e.Field("changedAt", func(e *jx.Encoder) { encodeTime(e, c.ChangedAt) })
	})
}
