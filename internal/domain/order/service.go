package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/customer"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// Limits on a single order. They keep totals within the stored precision.
const (
	MaxQuantity = 10000
	MaxLines    = 100
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrTooManyLines    = errors.New("too many items")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item quantity outside 1..MaxQuantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	if e.Quantity > MaxQuantity {
		return fmt.Sprintf("quantity must not exceed %d for product %s", MaxQuantity, e.ProductID)
	}
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// CheckQuantity validates a single line quantity.
func CheckQuantity(productID string, qty int) error {
	if qty <= 0 || qty > MaxQuantity {
		return &InvalidQuantityError{ProductID: productID, Quantity: qty}
	}
	return nil
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// QuoteRequest holds the input for pricing a cart.
type QuoteRequest struct {
	Items      []OrderItem
	CustomerID string
	CouponCode string
}

// Quote is a priced cart. Products is index-aligned with Items.
type Quote struct {
	Items     []OrderItem
	Products  []product.Product
	Customer  *customer.Customer
	Coupon    *coupon.Rule
	Breakdown pricing.Breakdown
	Currency  pricing.Currency
}

// Total returns the payable amount rounded to the quote currency.
func (q *Quote) Total() decimal.Decimal {
	return q.Breakdown.Payable(q.Currency)
}

// MemberFraction returns the customer's loyalty fraction, or zero.
func (q *Quote) MemberFraction() decimal.Decimal {
	if q.Customer == nil {
		return decimal.Zero
	}
	return q.Customer.MemberDiscount
}

// CouponDiscount returns the applied coupon discount, or none.
func (q *Quote) CouponDiscount() pricing.Discount {
	if q.Coupon == nil {
		return pricing.None()
	}
	return q.Coupon.Discount
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order *Order
	Quote *Quote
}

// Service encapsulates pricing and order placement.
type Service struct {
	products  product.Repository
	customers customer.Repository
	coupons   coupon.Validator
	orders    Repository
	currency  pricing.Currency
	now       func() time.Time

	tracer     trace.Tracer
	placed     metric.Int64Counter
	discounted metric.Float64Histogram
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	customers customer.Repository,
	coupons coupon.Validator,
	orders Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("github.com/xenking/shopdesk/internal/domain/order")

	placed, err := meter.Int64Counter("shopdesk.orders.placed",
		metric.WithDescription("Number of orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	discounted, err := meter.Float64Histogram("shopdesk.orders.discount",
		metric.WithDescription("Total discount granted per order"),
		metric.WithUnit("{VND}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "discount histogram")
	}

	return &Service{
		products:   products,
		customers:  customers,
		coupons:    coupons,
		orders:     orders,
		currency:   pricing.VND,
		now:        time.Now,
		tracer:     tp.Tracer("github.com/xenking/shopdesk/internal/domain/order"),
		placed:     placed,
		discounted: discounted,
	}, nil
}

// Currency returns the currency totals are rounded and formatted in.
func (s *Service) Currency() pricing.Currency {
	return s.currency
}

// Quote prices the requested items for a customer and optional coupon
// without persisting anything or consuming the coupon.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if len(req.Items) > MaxLines {
		return nil, ErrTooManyLines
	}

	// Bounded by MaxLines*MaxQuantity.
	ids := make([]string, len(req.Items))
	itemCount := 0
	for i, item := range req.Items {
		if err := CheckQuantity(item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		ids[i] = item.ProductID
		itemCount += item.Quantity
	}

	var (
		fetched []product.Product
		cust    *customer.Customer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fetched, err = s.products.GetByIDs(gctx, ids)
		if err != nil {
			return errors.Wrap(err, "get products")
		}
		return nil
	})
	if req.CustomerID != "" {
		g.Go(func() error {
			var err error
			cust, err = s.customers.GetByID(gctx, req.CustomerID)
			if err != nil {
				return errors.Wrap(err, "get customer")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	products := make([]product.Product, 0, len(req.Items))
	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)
		lines = append(lines, p.Line(item.Quantity))
	}

	q := &Quote{
		Items:    req.Items,
		Products: products,
		Customer: cust,
		Currency: s.currency,
	}

	if req.CouponCode != "" {
		rule, err := s.coupons.Check(ctx, req.CouponCode, itemCount)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		q.Coupon = rule
	}

	q.Breakdown = pricing.Stack(lines, q.MemberFraction(), q.CouponDiscount())

	span.SetAttributes(
		attribute.Int("order.items", itemCount),
		attribute.Bool("order.coupon", q.Coupon != nil),
	)
	return q, nil
}

// PlaceOrder prices the request and persists the order with its pricing
// snapshot. The repository consumes the coupon use in the same write, so a
// failed insert never spends a use.
func (s *Service) PlaceOrder(ctx context.Context, req QuoteRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	q, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, len(q.Items))
	for i, item := range q.Items {
		p := q.Products[i]
		lines[i] = Line{
			ProductID:    p.ID,
			Name:         p.Name,
			UnitPrice:    p.Price,
			ItemDiscount: p.Promotion,
			Quantity:     item.Quantity,
		}
	}

	b := q.Breakdown
	o := &Order{
		ID:             uuid.New().String(),
		Lines:          lines,
		MemberDiscount: q.MemberFraction(),
		Coupon:         q.CouponDiscount(),
		Subtotal:       s.currency.Round(b.Subtotal),
		Discounts:      s.currency.Round(b.TotalDiscount()),
		Total:          b.Payable(s.currency),
		CreatedAt:      s.now().UTC(),
	}
	if q.Customer != nil {
		o.CustomerID = q.Customer.ID
	}
	if q.Coupon != nil {
		o.CouponCode = q.Coupon.Code
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	attrs := metric.WithAttributes(attribute.Bool("coupon", q.Coupon != nil))
	s.placed.Add(ctx, 1, attrs)
	s.discounted.Record(ctx, o.Discounts.InexactFloat64(), attrs)
	span.SetAttributes(attribute.String("order.id", o.ID))

	return &PlaceOrderResult{Order: o, Quote: q}, nil
}

// Get returns an order with its breakdown recomputed from the snapshot.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	b := o.Breakdown()
	return &Detail{
		Order:     o,
		Breakdown: b,
		Total:     b.Payable(s.currency),
	}, nil
}

// List returns order summaries, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.orders.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	out := make([]Summary, len(orders))
	for i := range orders {
		o := &orders[i]
		b := o.Breakdown()
		out[i] = Summary{
			ID:         o.ID,
			CustomerID: o.CustomerID,
			CouponCode: o.CouponCode,
			ItemCount:  o.ItemCount(),
			Discounts:  s.currency.Round(b.TotalDiscount()),
			Total:      b.Payable(s.currency),
			CreatedAt:  o.CreatedAt,
		}
	}
	return out, nil
}
