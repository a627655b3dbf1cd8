package cart

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/customer"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// Pricer prices and places orders for cart contents.
type Pricer interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.QuoteRequest) (*order.PlaceOrderResult, error)
}

// View is a cart together with its current totals. Quote is nil for an
// empty cart. CouponErr is set when the stored coupon no longer applies; the
// quote is then computed without it.
type View struct {
	Cart      *Cart
	Quote     *order.Quote
	CouponErr error
}

// Service implements cart operations on top of a Store.
type Service struct {
	store     Store
	products  product.Repository
	customers customer.Repository
	coupons   coupon.Validator
	pricer    Pricer
	now       func() time.Time
}

// NewService creates a cart Service.
func NewService(
	store Store,
	products product.Repository,
	customers customer.Repository,
	coupons coupon.Validator,
	pricer Pricer,
) *Service {
	return &Service{
		store:     store,
		products:  products,
		customers: customers,
		coupons:   coupons,
		pricer:    pricer,
		now:       time.Now,
	}
}

// Get returns the session's cart, or an empty one if none is stored.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	if !ValidSessionID(sessionID) {
		return nil, ErrInvalidSession
	}
	c, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return &Cart{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// AddItem adds qty units of a product to the cart. The resulting line
// quantity is bounded by order.MaxQuantity.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, qty int) (*Cart, error) {
	if err := order.CheckQuantity(productID, qty); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &order.ProductNotFoundError{ProductID: productID}
		}
		return nil, errors.Wrap(err, "get product")
	}
	return s.update(ctx, sessionID, func(c *Cart) error {
		i := c.find(productID)
		if i < 0 {
			if len(c.Items) >= order.MaxLines {
				return order.ErrTooManyLines
			}
			c.setQuantity(productID, qty)
			return nil
		}
		// Both terms are at most MaxQuantity, so the sum cannot wrap.
		total := c.Items[i].Quantity + qty
		if err := order.CheckQuantity(productID, total); err != nil {
			return err
		}
		c.setQuantity(productID, total)
		return nil
	})
}

// SetQuantity sets the quantity of a product already in the cart. A
// quantity of zero removes it.
func (s *Service) SetQuantity(ctx context.Context, sessionID, productID string, qty int) (*Cart, error) {
	if qty < 0 || qty > order.MaxQuantity {
		return nil, &order.InvalidQuantityError{ProductID: productID, Quantity: qty}
	}
	return s.update(ctx, sessionID, func(c *Cart) error {
		if c.find(productID) < 0 {
			return &order.ProductNotFoundError{ProductID: productID}
		}
		c.setQuantity(productID, qty)
		return nil
	})
}

// RemoveItem removes a product from the cart. Removing an absent product is
// not an error.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (*Cart, error) {
	return s.update(ctx, sessionID, func(c *Cart) error {
		c.setQuantity(productID, 0)
		return nil
	})
}

// ApplyCoupon validates code against the cart and stores it. An empty code
// removes the coupon.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (*Cart, error) {
	return s.update(ctx, sessionID, func(c *Cart) error {
		code = strings.TrimSpace(code)
		if code == "" {
			c.CouponCode = ""
			return nil
		}
		rule, err := s.coupons.Check(ctx, code, c.ItemCount())
		if err != nil {
			return err
		}
		c.CouponCode = rule.Code
		return nil
	})
}

// SetCustomer attaches a customer, and with it the member discount. An
// empty id detaches.
func (s *Service) SetCustomer(ctx context.Context, sessionID, customerID string) (*Cart, error) {
	if customerID != "" {
		if _, err := s.customers.GetByID(ctx, customerID); err != nil {
			return nil, errors.Wrap(err, "get customer")
		}
	}
	return s.update(ctx, sessionID, func(c *Cart) error {
		c.CustomerID = customerID
		return nil
	})
}

// Clear drops the session's cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if !ValidSessionID(sessionID) {
		return ErrInvalidSession
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// View returns the cart with current totals.
func (s *Service) View(ctx context.Context, sessionID string) (*View, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v := &View{Cart: c}
	if len(c.Items) == 0 {
		return v, nil
	}

	req := quoteRequest(c)
	q, err := s.pricer.Quote(ctx, req)
	if err != nil && req.CouponCode != "" && isCouponError(err) {
		v.CouponErr = err
		req.CouponCode = ""
		q, err = s.pricer.Quote(ctx, req)
	}
	if err != nil {
		return nil, errors.Wrap(err, "quote cart")
	}
	v.Quote = q
	return v, nil
}

// Checkout places an order for the cart and clears it.
func (s *Service) Checkout(ctx context.Context, sessionID string) (*order.PlaceOrderResult, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, order.ErrEmptyItems
	}

	res, err := s.pricer.PlaceOrder(ctx, quoteRequest(c))
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return res, nil
}

func (s *Service) update(ctx context.Context, sessionID string, fn func(c *Cart) error) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

func quoteRequest(c *Cart) order.QuoteRequest {
	items := make([]order.OrderItem, len(c.Items))
	for i, it := range c.Items {
		items[i] = order.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return order.QuoteRequest{
		Items:      items,
		CustomerID: c.CustomerID,
		CouponCode: c.CouponCode,
	}
}

func isCouponError(err error) bool {
	return errors.Is(err, coupon.ErrInvalidCoupon) ||
		errors.Is(err, coupon.ErrCouponExpired) ||
		errors.Is(err, coupon.ErrCouponUsageLimitReached)
}

// ValidSessionID reports whether id is 1-128 characters of [A-Za-z0-9_-].
func ValidSessionID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
