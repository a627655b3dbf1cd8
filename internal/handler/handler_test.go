package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/shopdesk/internal/domain/auth"
	"github.com/xenking/shopdesk/internal/domain/cart"
	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/customer"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// --- In-memory collaborators ---

type memProducts struct {
	mu      sync.Mutex
	byID    map[string]*product.Product
	history []product.PriceChange
}

func (m *memProducts) List(_ context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.byID))
	for _, id := range []string{"p1", "p2"} {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) UpdatePrice(_ context.Context, id string, price decimal.Decimal, changedBy string) (*product.PriceChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	change := product.PriceChange{
		ProductID: id,
		OldPrice:  p.Price,
		NewPrice:  price,
		ChangedBy: changedBy,
		ChangedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	p.Price = price
	m.history = append([]product.PriceChange{change}, m.history...)
	return &change, nil
}

func (m *memProducts) PriceHistory(_ context.Context, id string) ([]product.PriceChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.PriceChange
	for _, c := range m.history {
		if c.ProductID == id {
			out = append(out, c)
		}
	}
	return out, nil
}

type memCustomers map[string]*customer.Customer

func (m memCustomers) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

type memCoupons struct {
	mu     sync.Mutex
	byCode map[string]*coupon.Rule
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byCode[strings.ToUpper(code)]
	if !ok || !r.Active {
		return nil, coupon.ErrInvalidCoupon
	}
	cp := *r
	return &cp, nil
}

func (m *memCoupons) redeem(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return coupon.ErrInvalidCoupon
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return coupon.ErrCouponUsageLimitReached
	}
	r.Uses++
	return nil
}

func (m *memCoupons) Upsert(_ context.Context, rule *coupon.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rule
	m.byCode[strings.ToUpper(rule.Code)] = &cp
	return nil
}

func (m *memCoupons) uses(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byCode[code].Uses
}

type memOrders struct {
	mu      sync.Mutex
	coupons *memCoupons
	orders  []order.Order
	err     error
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if o.CouponCode != "" {
		if err := m.coupons.redeem(o.CouponCode); err != nil {
			return err
		}
	}
	m.orders = append([]order.Order{*o}, m.orders...)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			o := m.orders[i]
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) List(_ context.Context, limit, offset int) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.orders) {
		return nil, nil
	}
	end := min(offset+limit, len(m.orders))
	return append([]order.Order(nil), m.orders[offset:end]...), nil
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]cart.Cart
}

func (m *memCarts) Get(_ context.Context, sessionID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	c.Items = append([]cart.Item(nil), c.Items...)
	return &c, nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	m.carts[c.SessionID] = cp
	return nil
}

func (m *memCarts) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

type memAPIKeys map[string]*auth.APIKeyInfo

func (m memAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	k, ok := m[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return k, nil
}

// --- Fixture ---

var testPepper = []byte("test-pepper")

type fixture struct {
	router   http.Handler
	products *memProducts
	coupons  *memCoupons
	orders   *memOrders
	carts    *memCarts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tenPct, err := pricing.NewPercentage(decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	fiftyK, err := pricing.NewAbsolute(decimal.NewFromInt(50000))
	require.NoError(t, err)

	f := &fixture{
		products: &memProducts{byID: map[string]*product.Product{
			"p1": {
				ID: "p1", Name: "Phở bò", Category: "Noodles",
				Price: decimal.NewFromInt(100000),
				Image: product.Image{Thumbnail: "/img/p1-thumb.jpg"},
			},
			"p2": {
				ID: "p2", Name: "Bánh mì", Category: "Bread",
				Price:     decimal.NewFromInt(50000),
				Promotion: tenPct,
			},
		}},
		coupons: &memCoupons{byCode: map[string]*coupon.Rule{
			"SAVE50K": {Code: "SAVE50K", Discount: fiftyK, Active: true},
			"BULK":    {Code: "BULK", Discount: tenPct, MinItems: 3, Active: true},
		}},
		carts: &memCarts{carts: map[string]cart.Cart{}},
	}
	f.orders = &memOrders{coupons: f.coupons}
	customers := memCustomers{
		"c1": {ID: "c1", Name: "Lan", MemberDiscount: decimal.RequireFromString("0.1")},
	}
	keys := memAPIKeys{}
	for raw, info := range map[string]*auth.APIKeyInfo{
		"admin-key":  {ID: "k1", Name: "ops", Scopes: []string{"admin"}},
		"reader-key": {ID: "k2", Name: "reader", Scopes: []string{"read"}},
	} {
		info.KeyHash = auth.HashKey(testPepper, raw)
		keys[info.KeyHash] = info
	}

	validator := coupon.NewRepoValidator(f.coupons)
	orders, err := order.NewService(f.products, customers, validator, f.orders,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	carts := cart.NewService(f.carts, f.products, customers, validator, orders)

	h := New(Config{
		ImageBaseURL: "https://cdn.example.com",
		APIKeyPepper: testPepper,
	}, Deps{
		Products:  f.products,
		Coupons:   f.coupons,
		Validator: validator,
		Orders:    orders,
		Carts:     carts,
		APIKeys:   keys,
	})
	r := chi.NewRouter()
	h.Register(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	d := json.NewDecoder(rec.Body)
	d.UseNumber()
	require.NoError(t, d.Decode(&v), "body: %s", rec.Body.String())
	return v
}

func obj(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	return decodeJSON[map[string]any](t, rec)
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := obj(t, rec)
	assert.Equal(t, json.Number(strconv.Itoa(status)), body["code"])
	if msg != "" {
		assert.Contains(t, body["message"], msg)
	}
}

// --- Products ---

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, list, 2)

	p1 := list[0]
	assert.Equal(t, "p1", p1["id"])
	assert.Equal(t, json.Number("100000"), p1["price"])
	assert.Contains(t, p1["formatted"], "₫")
	assert.NotContains(t, p1, "promotion")
	img := p1["image"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/img/p1-thumb.jpg", img["thumbnail"])
	assert.Equal(t, "", img["desktop"])

	p2 := list[1]
	assert.Equal(t, json.Number("0.1"), p2["discountValue"])
	assert.Equal(t, json.Number("45000"), p2["discountedPrice"])
	promo := p2["promotion"].(map[string]any)
	assert.Equal(t, "percentage", promo["type"])
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products/p2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bánh mì", obj(t, rec)["name"])

	assertError(t, f.do(t, http.MethodGet, "/api/products/nope", ""), http.StatusNotFound, "product not found")
}

// --- Quote ---

func TestQuote(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/quote", `{
		"items": [{"productId": "p1", "quantity": 2}],
		"customerId": "c1",
		"couponCode": "save50k"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := obj(t, rec)
	assert.Equal(t, json.Number("200000"), body["subtotal"])
	assert.Equal(t, json.Number("0.1"), body["memberDiscount"])
	assert.Equal(t, json.Number("20000"), body["memberDiscountAmount"])
	assert.Equal(t, json.Number("50000"), body["couponDiscountAmount"])
	assert.Equal(t, json.Number("70000"), body["discounts"])
	assert.Equal(t, json.Number("130000"), body["total"])
	assert.Equal(t, "SAVE50K", body["couponCode"])
	assert.Contains(t, body["formatted"], "₫")

	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, json.Number("2"), line["quantity"])
	assert.Equal(t, json.Number("200000"), line["total"])

	// Quoting never consumes a coupon use.
	assert.Equal(t, 0, f.coupons.uses("SAVE50K"))
}

func TestQuote_ItemDiscountThenMember(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/quote",
		`{"items": [{"productId": "p2", "quantity": "3"}], "customerId": "c1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := obj(t, rec)
	// 3 x (50000 - 10%) = 135000, member 10% -> 121500.
	assert.Equal(t, json.Number("135000"), body["subtotal"])
	assert.Equal(t, json.Number("121500"), body["total"])
	assert.Equal(t, json.Number("28500"), body["discounts"])
}

func TestQuote_Errors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"EmptyBody", ``, http.StatusBadRequest, "request body required"},
		{"InvalidJSON", `{"items": [`, http.StatusBadRequest, "invalid JSON"},
		{"NoItems", `{"items": []}`, http.StatusBadRequest, "items required"},
		{"MissingProductID", `{"items": [{"quantity": 1}]}`, http.StatusBadRequest, "productId is required"},
		{"ZeroQuantity", `{"items": [{"productId": "p1", "quantity": 0}]}`, http.StatusUnprocessableEntity, "quantity must be greater than 0"},
		{"HugeQuantity", `{"items": [{"productId": "p1", "quantity": 10001}]}`, http.StatusUnprocessableEntity, "quantity must not exceed 10000"},
		{"QuantityOutOfRange", `{"items": [{"productId": "p1", "quantity": 99999999999999999999}]}`, http.StatusBadRequest, "quantity must be an integer"},
		{"UnknownProduct", `{"items": [{"productId": "zz", "quantity": 1}]}`, http.StatusUnprocessableEntity, "product zz not found"},
		{"UnknownCustomer", `{"items": [{"productId": "p1", "quantity": 1}], "customerId": "ghost"}`, http.StatusUnprocessableEntity, "customer not found"},
		{"UnknownCoupon", `{"items": [{"productId": "p1", "quantity": 1}], "couponCode": "NOPE"}`, http.StatusUnprocessableEntity, "invalid coupon code"},
		{"BelowMinItems", `{"items": [{"productId": "p1", "quantity": 2}], "couponCode": "BULK"}`, http.StatusUnprocessableEntity, "invalid coupon code"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			assertError(t, f.do(t, http.MethodPost, "/api/quote", tt.body), tt.status, tt.msg)
		})
	}
}

// --- Orders ---

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orders", `{
		"items": [{"productId": "p1", "quantity": 2}],
		"customerId": "c1",
		"couponCode": "SAVE50K"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	placed := obj(t, rec)
	id, ok := placed["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, json.Number("130000"), placed["total"])
	assert.Equal(t, 1, f.coupons.uses("SAVE50K"))

	// Price changes after checkout do not alter the stored breakdown.
	f.products.byID["p1"].Price = decimal.NewFromInt(999999)

	rec = f.do(t, http.MethodGet, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := obj(t, rec)
	assert.Equal(t, id, detail["id"])
	assert.Equal(t, json.Number("130000"), detail["total"])
	assert.Equal(t, json.Number("200000"), detail["subtotal"])
	assert.Equal(t, "c1", detail["customerId"])
	assert.Equal(t, "SAVE50K", detail["couponCode"])
	lines := detail["items"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, json.Number("100000"), lines[0].(map[string]any)["unitPrice"])

	rec = f.do(t, http.MethodGet, "/api/orders?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0]["id"])
	assert.Equal(t, json.Number("2"), list[0]["itemCount"])
	assert.Equal(t, json.Number("130000"), list[0]["total"])
}

func TestOrders_Errors(t *testing.T) {
	f := newFixture(t)

	assertError(t, f.do(t, http.MethodGet, "/api/orders/missing", ""), http.StatusNotFound, "order not found")
	assertError(t, f.do(t, http.MethodGet, "/api/orders?limit=ten", ""), http.StatusBadRequest, "limit must be an integer")
	assertError(t, f.do(t, http.MethodPost, "/api/orders",
		`{"items": [{"productId": "p1", "quantity": 1}], "couponCode": "BULK"}`),
		http.StatusUnprocessableEntity, "invalid coupon code")
	assert.Empty(t, f.orders.orders)
}

func TestPlaceOrder_FailedWriteKeepsCouponUse(t *testing.T) {
	f := newFixture(t)
	f.orders.err = errors.New("disk full")

	rec := f.do(t, http.MethodPost, "/api/orders",
		`{"items": [{"productId": "p1", "quantity": 1}], "couponCode": "SAVE50K"}`)
	assertError(t, rec, http.StatusInternalServerError, "internal server error")
	assert.Equal(t, 0, f.coupons.uses("SAVE50K"))
	assert.Empty(t, f.orders.orders)
}

func TestPlaceOrder_CouponExhausted(t *testing.T) {
	f := newFixture(t)
	f.coupons.byCode["SAVE50K"].MaxUses = 1
	const body = `{"items": [{"productId": "p1", "quantity": 1}], "couponCode": "SAVE50K"}`

	rec := f.do(t, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assertError(t, f.do(t, http.MethodPost, "/api/orders", body),
		http.StatusUnprocessableEntity, "coupon usage limit reached")
	assert.Equal(t, 1, f.coupons.uses("SAVE50K"))
	assert.Len(t, f.orders.orders, 1)
}

// --- Carts ---

func TestCart_Flow(t *testing.T) {
	f := newFixture(t)
	const base = "/api/carts/sess-1"

	rec := f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := obj(t, rec)
	assert.Equal(t, "sess-1", empty["sessionId"])
	assert.Empty(t, empty["items"])
	assert.NotContains(t, empty, "quote")

	rec = f.do(t, http.MethodPost, base+"/items", `{"productId": "p1", "quantity": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, base+"/items", `{"productId": "p1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := obj(t, rec)
	assert.Equal(t, json.Number("2"), view["itemCount"])
	quote := view["quote"].(map[string]any)
	assert.Equal(t, json.Number("200000"), quote["total"])

	rec = f.do(t, http.MethodPut, base+"/coupon", `{"couponCode": "save50k"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SAVE50K", obj(t, rec)["couponCode"])

	rec = f.do(t, http.MethodPut, base+"/customer", `{"customerId": "c1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote = obj(t, rec)["quote"].(map[string]any)
	assert.Equal(t, json.Number("130000"), quote["total"])

	rec = f.do(t, http.MethodPost, base+"/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, json.Number("130000"), obj(t, rec)["total"])
	assert.Equal(t, 1, f.coupons.uses("SAVE50K"))
	require.Len(t, f.orders.orders, 1)

	rec = f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	after := obj(t, rec)
	assert.Empty(t, after["items"])
	assert.NotContains(t, after, "couponCode")
}

func TestCart_SetAndRemoveItems(t *testing.T) {
	f := newFixture(t)
	const base = "/api/carts/sess-2"

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/items", `{"productId": "p1", "quantity": 1}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/items", `{"productId": "p2", "quantity": 1}`).Code)

	rec := f.do(t, http.MethodPut, base+"/items/p2", `{"quantity": 4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, json.Number("5"), obj(t, rec)["itemCount"])

	rec = f.do(t, http.MethodPut, base+"/items/p2", `{"quantity": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, json.Number("1"), obj(t, rec)["itemCount"])

	rec = f.do(t, http.MethodDelete, base+"/items/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, json.Number("0"), obj(t, rec)["itemCount"])

	assertError(t, f.do(t, http.MethodPut, base+"/items/p1", `{"quantity": 2}`), http.StatusUnprocessableEntity, "product p1 not found")
	assertError(t, f.do(t, http.MethodPut, base+"/items/p1", `{}`), http.StatusBadRequest, "quantity must be zero or greater")

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, base, "").Code)
}

func TestCart_Errors(t *testing.T) {
	f := newFixture(t)

	assertError(t, f.do(t, http.MethodGet, "/api/carts/bad.id", ""), http.StatusBadRequest, "invalid session id")
	assertError(t, f.do(t, http.MethodPost, "/api/carts/s/items", `{"quantity": 1}`), http.StatusBadRequest, "productId is required")
	assertError(t, f.do(t, http.MethodPost, "/api/carts/s/items", `{"productId": "zz"}`), http.StatusUnprocessableEntity, "product zz not found")
	assertError(t, f.do(t, http.MethodPost, "/api/carts/s/items", `{"productId": "p1", "quantity": -1}`), http.StatusUnprocessableEntity, "quantity must be greater than 0")
	assertError(t, f.do(t, http.MethodPost, "/api/carts/s/items", `{"productId": "p1", "quantity": 10001}`), http.StatusUnprocessableEntity, "quantity must not exceed 10000")
	assertError(t, f.do(t, http.MethodPut, "/api/carts/s/items/p1", `{"quantity": 10001}`), http.StatusUnprocessableEntity, "quantity must not exceed 10000")
	assertError(t, f.do(t, http.MethodPut, "/api/carts/s/coupon", `{"couponCode": "NOPE"}`), http.StatusUnprocessableEntity, "invalid coupon code")
	assertError(t, f.do(t, http.MethodPut, "/api/carts/s/customer", `{"customerId": "ghost"}`), http.StatusUnprocessableEntity, "customer not found")
	assertError(t, f.do(t, http.MethodPost, "/api/carts/s/checkout", ""), http.StatusBadRequest, "items required")
}

func TestCart_StaleCoupon(t *testing.T) {
	f := newFixture(t)
	const base = "/api/carts/sess-3"

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/items", `{"productId": "p1", "quantity": 1}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, base+"/coupon", `{"couponCode": "SAVE50K"}`).Code)

	f.coupons.byCode["SAVE50K"].Active = false

	rec := f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := obj(t, rec)
	assert.Equal(t, "invalid coupon code", view["couponError"])
	quote := view["quote"].(map[string]any)
	assert.Equal(t, json.Number("100000"), quote["total"])
}

// --- Coupons ---

func TestPreviewCoupon(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/coupons/save50k", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := obj(t, rec)
	assert.Equal(t, "SAVE50K", body["code"])
	assert.Equal(t, json.Number("50000"), body["value"])
	assert.Equal(t, "absolute", body["discount"].(map[string]any)["type"])

	// Minimum items only apply when the caller says how many it has.
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/coupons/BULK", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/coupons/BULK?items=3", "").Code)
	assertError(t, f.do(t, http.MethodGet, "/api/coupons/BULK?items=2", ""), http.StatusUnprocessableEntity, "invalid coupon code")
	assertError(t, f.do(t, http.MethodGet, "/api/coupons/BULK?items=x", ""), http.StatusBadRequest, "items must be")
	assertError(t, f.do(t, http.MethodGet, "/api/coupons/NOPE", ""), http.StatusUnprocessableEntity, "invalid coupon code")
}

// --- Admin ---

func TestAdmin_Auth(t *testing.T) {
	f := newFixture(t)
	const path = "/api/admin/products/p1/prices"

	assertError(t, f.do(t, http.MethodGet, path, ""), http.StatusUnauthorized, "unauthorized")
	assertError(t, f.do(t, http.MethodGet, path, "", APIKeyHeader, "wrong"), http.StatusUnauthorized, "unauthorized")
	assertError(t, f.do(t, http.MethodGet, path, "", APIKeyHeader, "reader-key"), http.StatusForbidden, "forbidden")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, "", APIKeyHeader, "admin-key").Code)
}

func TestAdmin_UpdatePrice(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/admin/products/p1/price", `{"price": "120000"}`, APIKeyHeader, "admin-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	change := obj(t, rec)
	assert.Equal(t, json.Number("100000"), change["oldPrice"])
	assert.Equal(t, json.Number("120000"), change["newPrice"])
	assert.Equal(t, "ops", change["changedBy"])

	rec = f.do(t, http.MethodGet, "/api/admin/products/p1/prices", "", APIKeyHeader, "admin-key")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "2026-01-02T03:04:05Z", history[0]["changedAt"])

	for _, tt := range []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"Missing", "/api/admin/products/p1/price", `{}`, http.StatusBadRequest},
		{"NotNumeric", "/api/admin/products/p1/price", `{"price": "cheap"}`, http.StatusBadRequest},
		{"Zero", "/api/admin/products/p1/price", `{"price": 0}`, http.StatusBadRequest},
		{"Negative", "/api/admin/products/p1/price", `{"price": -5}`, http.StatusBadRequest},
		{"TooLarge", "/api/admin/products/p1/price", `{"price": "1000000000.01"}`, http.StatusBadRequest},
		{"UnknownProduct", "/api/admin/products/zz/price", `{"price": 10}`, http.StatusNotFound},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, f.do(t, http.MethodPut, tt.path, tt.body, APIKeyHeader, "admin-key"), tt.status, "")
		})
	}
	assertError(t, f.do(t, http.MethodGet, "/api/admin/products/zz/prices", "", APIKeyHeader, "admin-key"), http.StatusNotFound, "")
}

func TestAdmin_UpsertCoupon(t *testing.T) {
	f := newFixture(t)
	const path = "/api/admin/coupons/"

	rec := f.do(t, http.MethodPut, path+"summer", `{"value": 0.2, "minItems": 2, "description": "Summer"}`, APIKeyHeader, "admin-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := obj(t, rec)
	assert.Equal(t, "SUMMER", body["code"])
	assert.Equal(t, "percentage", body["discount"].(map[string]any)["type"])

	stored := f.coupons.byCode["SUMMER"]
	require.NotNil(t, stored)
	assert.True(t, stored.Active)
	assert.Equal(t, 2, stored.MinItems)
	assert.Equal(t, pricing.KindPercentage, stored.Discount.Kind)

	rec = f.do(t, http.MethodPut, path+"flat", `{"type": "absolute", "value": "1", "validUntil": "2030-01-01T00:00:00Z"}`, APIKeyHeader, "admin-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, pricing.KindAbsolute, f.coupons.byCode["FLAT"].Discount.Kind)
	assert.NotContains(t, obj(t, rec), "value")

	for _, tt := range []struct {
		name string
		body string
		msg  string
	}{
		{"MissingValue", `{"type": "percentage"}`, "value is required"},
		{"BadType", `{"type": "bogus", "value": 1}`, "type must be one of"},
		{"NotNumeric", `{"value": "lots"}`, "value must be a number"},
		{"PercentageAboveOne", `{"type": "percentage", "value": 1.5}`, "invalid percentage discount"},
		{"Negative", `{"value": -3}`, "value must not be negative"},
		{"NegativeMinItems", `{"value": 1, "minItems": -1}`, "minItems must be at least 0"},
		{"HugeMinItems", `{"value": 1, "minItems": 1000001}`, "minItems must be at most 1000000"},
		{"HugeMaxUses", `{"value": 1, "maxUses": 4294967296}`, "maxUses must be at most 1000000000"},
		{"HugeValue", `{"value": 1000000001}`, "value must not exceed 1000000000"},
		{"BadTime", `{"value": 1, "validFrom": "yesterday"}`, "validFrom must be an RFC 3339 timestamp"},
		{"InvertedWindow", `{"value": 1, "validFrom": "2030-01-02T00:00:00Z", "validUntil": "2030-01-01T00:00:00Z"}`, "validUntil must not be before validFrom"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, f.do(t, http.MethodPut, path+"x", tt.body, APIKeyHeader, "admin-key"), http.StatusBadRequest, tt.msg)
		})
	}
	assert.NotContains(t, f.coupons.byCode, "X")
}

func TestRouting_Fallbacks(t *testing.T) {
	f := newFixture(t)

	assertError(t, f.do(t, http.MethodGet, "/api/nowhere", ""), http.StatusNotFound, "not found")
	assertError(t, f.do(t, http.MethodPatch, "/api/products", ""), http.StatusMethodNotAllowed, "method not allowed")
}
