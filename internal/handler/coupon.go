package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// previewCoupon reports what a code would take off. Without an items query
// the minimum item requirement is not checked.
func (h *Handler) previewCoupon(w http.ResponseWriter, r *http.Request) {
	items := math.MaxInt32
	if s := r.URL.Query().Get("items"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			fail(w, r, badRequest("items must be a non-negative integer"))
			return
		}
		items = n
	}

	rule, err := h.validator.Check(r.Context(), chi.URLParam(r, "code"), items)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRule(e, rule) })
}

type couponInput struct {
	Type        string `validate:"omitempty,oneof=percentage absolute"`
	Value       string `validate:"required,numeric"`
	MinItems    int    `validate:"gte=0,lte=1000000"`
	MaxUses     int    `validate:"gte=0,lte=1000000000"`
	Description string `validate:"max=255"`
	Code        string `validate:"required,max=64"`
}

func (h *Handler) upsertCoupon(w http.ResponseWriter, r *http.Request) {
	in := couponInput{Code: strings.TrimSpace(chi.URLParam(r, "code"))}
	var (
		validFrom  *time.Time
		validUntil *time.Time
		active     = true
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			in.Type, err = decodeStr(d)
		case "value":
			in.Value, err = numericText(d)
		case "minItems":
			in.MinItems, err = decodeInt(d, key)
		case "maxUses":
			in.MaxUses, err = decodeInt(d, key)
		case "description":
			in.Description, err = decodeStr(d)
		case "validFrom":
			validFrom, err = decodeTime(d, key)
		case "validUntil":
			validUntil, err = decodeTime(d, key)
		case "active":
			active, err = d.Bool()
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
	if validFrom != nil && validUntil != nil && validUntil.Before(*validFrom) {
		fail(w, r, badRequest("validUntil must not be before validFrom"))
		return
	}

	value, err := decimal.NewFromString(in.Value)
	if err != nil {
		fail(w, r, badRequest("value must be a number"))
		return
	}
	if value.IsNegative() {
		fail(w, r, badRequest("value must not be negative"))
		return
	}
	if value.GreaterThan(maxAmount) {
		fail(w, r, badRequest("value must not exceed %s", maxAmount))
		return
	}
	// Without a type the value follows the single-number convention.
	var discount pricing.Discount
	if in.Type == "" {
		discount = pricing.FromLegacy(value)
	} else if discount, err = pricing.Parse(in.Type, value); err != nil {
		fail(w, r, badRequest("invalid %s discount %s", in.Type, value))
		return
	}

	rule := &coupon.Rule{
		Code:        strings.ToUpper(in.Code),
		Discount:    discount,
		MinItems:    in.MinItems,
		Description: in.Description,
		ValidFrom:   validFrom,
		ValidUntil:  validUntil,
		MaxUses:     in.MaxUses,
		Active:      active,
	}
	if err := h.coupons.Upsert(r.Context(), rule); err != nil {
		fail(w, r, errors.Wrap(err, "upsert coupon"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRule(e, rule) })
}

func encodeRule(e *jx.Encoder, rule *coupon.Rule) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(rule.Code) })
		e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, rule.Discount) })
		if v, ok := rule.Discount.Legacy(); ok {
			e.Field("value", func(e *jx.Encoder) { num(e, v) })
		}
		e.Field("minItems", func(e *jx.Encoder) { e.Int(rule.MinItems) })
		if rule.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(rule.Description) })
		}
		if rule.ValidFrom != nil {
			e.Field("validFrom", func(e *jx.Encoder) { encodeTime(e, *rule.ValidFrom) })
		}
		if rule.ValidUntil != nil {
			e.Field("validUntil", func(e *jx.Encoder) { encodeTime(e, *rule.ValidUntil) })
		}
		if rule.MaxUses > 0 {
			e.Field("maxUses", func(e *jx.Encoder) { e.Int(rule.MaxUses) })
			e.Field("uses", func(e *jx.Encoder) { e.Int(rule.Uses) })
		}
	})
}
