// Package handler exposes the storefront and admin HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/shopdesk/internal/domain/auth"
	"github.com/xenking/shopdesk/internal/domain/cart"
	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// OrderService prices carts and manages placed orders.
type OrderService interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.QuoteRequest) (*order.PlaceOrderResult, error)
	Get(ctx context.Context, id string) (*order.Detail, error)
	List(ctx context.Context, limit, offset int) ([]order.Summary, error)
}

// CartService manages per-session carts.
type CartService interface {
	View(ctx context.Context, sessionID string) (*cart.View, error)
	AddItem(ctx context.Context, sessionID, productID string, qty int) (*cart.Cart, error)
	SetQuantity(ctx context.Context, sessionID, productID string, qty int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (*cart.Cart, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (*cart.Cart, error)
	SetCustomer(ctx context.Context, sessionID, customerID string) (*cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
	Checkout(ctx context.Context, sessionID string) (*order.PlaceOrderResult, error)
}

var (
	_ OrderService = (*order.Service)(nil)
	_ CartService  = (*cart.Service)(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
	// APIKeyPepper is the HMAC key admin API keys are hashed with.
	APIKeyPepper []byte
	// Currency totals are formatted in. Defaults to VND.
	Currency pricing.Currency
}

// Deps are the domain collaborators of the Handler.
type Deps struct {
	Products  product.Repository
	Coupons   coupon.Repository
	Validator coupon.Validator
	Orders    OrderService
	Carts     CartService
	APIKeys   auth.Repository
}

// Handler serves the HTTP API.
type Handler struct {
	products     product.Repository
	coupons      coupon.Repository
	validator    coupon.Validator
	orders       OrderService
	carts        CartService
	apikeys      auth.Repository
	pepper       []byte
	imageBaseURL string
	currency     pricing.Currency
	validate     *validator.Validate
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	cur := cfg.Currency
	if cur.Code == "" {
		cur = pricing.VND
	}
	return &Handler{
		products:     deps.Products,
		coupons:      deps.Coupons,
		validator:    deps.Validator,
		orders:       deps.Orders,
		carts:        deps.Carts,
		apikeys:      deps.APIKeys,
		pepper:       cfg.APIKeyPepper,
		imageBaseURL: cfg.ImageBaseURL,
		currency:     cur,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register adds the API routes to r. Routes are registered on r's own tree
// so that a route finder can resolve full patterns.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/products", h.listProducts)
	r.Get("/api/products/{id}", h.getProduct)
	r.Get("/api/coupons/{code}", h.previewCoupon)
	r.Post("/api/quote", h.quote)

	r.Get("/api/carts/{session}", h.viewCart)
	r.Delete("/api/carts/{session}", h.clearCart)
	r.Post("/api/carts/{session}/items", h.addCartItem)
	r.Put("/api/carts/{session}/items/{productId}", h.setCartItem)
	r.Delete("/api/carts/{session}/items/{productId}", h.removeCartItem)
	r.Put("/api/carts/{session}/coupon", h.applyCartCoupon)
	r.Put("/api/carts/{session}/customer", h.setCartCustomer)
	r.Post("/api/carts/{session}/checkout", h.checkoutCart)

	r.Post("/api/orders", h.placeOrder)
	r.Get("/api/orders", h.listOrders)
	r.Get("/api/orders/{id}", h.getOrder)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey(adminScope))
		r.Put("/api/admin/coupons/{code}", h.upsertCoupon)
		r.Put("/api/admin/products/{id}/price", h.updatePrice)
		r.Get("/api/admin/products/{id}/prices", h.priceHistory)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
