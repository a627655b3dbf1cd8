package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/domain/cart"
	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/customer"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// statusOf maps a domain error to an HTTP status and client message.
func statusOf(err error) (int, string) {
	var (
		bre    *badRequestError
		iqErr  *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
	)
	switch {
	case errors.As(err, &bre):
		return http.StatusBadRequest, bre.msg
	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, order.ErrEmptyItems.Error()
	case errors.Is(err, order.ErrTooManyLines):
		return http.StatusBadRequest, order.ErrTooManyLines.Error()
	case errors.Is(err, cart.ErrInvalidSession):
		return http.StatusBadRequest, cart.ErrInvalidSession.Error()
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return http.StatusBadRequest, "invalid discount"
	case errors.As(err, &iqErr):
		return http.StatusUnprocessableEntity, iqErr.Error()
	case errors.As(err, &pnfErr):
		return http.StatusUnprocessableEntity, pnfErr.Error()
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity, coupon.ErrInvalidCoupon.Error()
	case errors.Is(err, coupon.ErrCouponExpired):
		return http.StatusUnprocessableEntity, coupon.ErrCouponExpired.Error()
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusUnprocessableEntity, coupon.ErrCouponUsageLimitReached.Error()
	case errors.Is(err, customer.ErrNotFound):
		return http.StatusUnprocessableEntity, customer.ErrNotFound.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, product.ErrNotFound.Error()
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, order.ErrNotFound.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail writes the error response for err. Unexpected errors are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeError(w, status, msg)
}
