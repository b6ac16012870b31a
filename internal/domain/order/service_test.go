package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendora/checkout/internal/domain/cart"
	"github.com/trendora/checkout/internal/domain/coupon"
	"github.com/trendora/checkout/internal/domain/inventory"
	"github.com/trendora/checkout/internal/domain/product"
	"github.com/trendora/checkout/internal/validate"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]product.Product
	err  error
}

func (m *mockProductRepo) List(_ context.Context, _, _ int) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCouponRepo struct {
	rule *coupon.Rule
	err  error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rule, nil
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, _ string) error { return nil }

type mockOrderRepo struct {
	lastOrder  *Order
	lastCoupon string
	createErr  error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order, couponCode string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.lastOrder = o
	m.lastCoupon = couponCode
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, _ string) (*Order, error) { return nil, nil }

func (m *mockOrderRepo) ListByBuyer(_ context.Context, _ string, _, _ int) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _ Status) error { return nil }
func (m *mockOrderRepo) MarkPaid(_ context.Context, _ string) error               { return nil }

type mockCartRepo struct {
	cleared  []string
	clearErr error
}

func (m *mockCartRepo) Get(_ context.Context, buyerID string) (*cart.Cart, error) {
	return &cart.Cart{BuyerID: buyerID, Items: cart.Items{}}, nil
}

func (m *mockCartRepo) SetItem(_ context.Context, _, _, _ string, _ int) error { return nil }

func (m *mockCartRepo) Clear(_ context.Context, buyerID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, buyerID)
	return nil
}

// --- Helpers ---

type testEnv struct {
	products *mockProductRepo
	coupons  *mockCouponRepo
	ledger   *inventory.MemoryLedger
	orders   *mockOrderRepo
	carts    *mockCartRepo
	svc      *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		products: &mockProductRepo{byID: map[string]product.Product{}},
		coupons:  &mockCouponRepo{},
		ledger:   inventory.NewMemoryLedger(inventory.ModeAggregate),
		orders:   &mockOrderRepo{},
		carts:    &mockCartRepo{},
	}
	env.svc = NewService(
		env.products, env.coupons, env.ledger, env.orders, env.carts,
		NewPricingEngine(dec("10")),
	)
	env.svc.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	env.svc.pricing.now = env.svc.now
	return env
}

func (e *testEnv) addProduct(id, name, price string, stock int, sizes ...string) {
	e.products.byID[id] = product.Product{
		ID:    id,
		Name:  name,
		Price: dec(price),
		Sizes: sizes,
		Stock: stock,
	}
	e.ledger.SetStock(id, "", stock)
}

func baseRequest(items ...validate.OrderItem) PlaceOrderRequest {
	return PlaceOrderRequest{
		BuyerID:       "buyer-1",
		Items:         items,
		Address:       Address{FirstName: "Ada", Street: "1 Main St", City: "Metz", Zip: "57000", Country: "FR"},
		PaymentMethod: "COD",
	}
}

// --- Tests ---

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.PlaceOrder(context.Background(), baseRequest())
	require.ErrorIs(t, err, validate.ErrEmptyCart)
}

// Stock 10, quantity 2: order created, stock becomes 8, cart emptied.
func TestPlaceOrder_Success(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Linen Shirt", "50", 10)

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 2, Price: 50})
	req.Amount = dec("110") // 2*50 + 10 delivery

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 8, env.ledger.Stock("p1", ""))
	assert.True(t, result.CartCleared)
	assert.Equal(t, []string{"buyer-1"}, env.carts.cleared)

	o := env.orders.lastOrder
	require.NotNil(t, o)
	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, PaymentCOD, o.PaymentMethod)
	assert.False(t, o.Paid)
	assert.True(t, dec("110").Equal(o.Amount))
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Linen Shirt", o.Lines[0].Name)
	assert.True(t, dec("50").Equal(o.Lines[0].UnitPrice))
}

// Stock 5, quantity 10: rejected naming the maximum, stock untouched, no
// order row, cart untouched.
func TestPlaceOrder_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Linen Shirt", "50", 5)

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 10, Price: 50})
	req.Amount = dec("510")

	_, err := env.svc.PlaceOrder(context.Background(), req)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Contains(t, err.Error(), "maximum")
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Available)

	assert.Equal(t, 5, env.ledger.Stock("p1", ""))
	assert.Nil(t, env.orders.lastOrder)
	assert.Empty(t, env.carts.cleared)
}

func TestPlaceOrder_MultiLineRollback(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "10", 10)
	env.addProduct("p2", "Jeans", "20", 1)

	req := baseRequest(
		validate.OrderItem{ProductID: "p1", Quantity: 5, Price: 10},
		validate.OrderItem{ProductID: "p2", Quantity: 3, Price: 20},
	)
	req.Amount = dec("120")

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.Error(t, err)

	// The successful p1 decrement must have been compensated.
	assert.Equal(t, 10, env.ledger.Stock("p1", ""))
	assert.Equal(t, 1, env.ledger.Stock("p2", ""))
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := baseRequest(validate.OrderItem{ProductID: "ghost", Quantity: 1, Price: 10})
	req.Amount = dec("20")

	_, err := env.svc.PlaceOrder(context.Background(), req)

	var pnf *ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "ghost", pnf.ProductID)
}

func TestPlaceOrder_InvalidSize(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "50", 10, "S", "M", "L")

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 1, Price: 50, Size: "XXXL"})
	req.Amount = dec("60")

	_, err := env.svc.PlaceOrder(context.Background(), req)

	var sizeErr *InvalidSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 10, env.ledger.Stock("p1", ""))
}

func TestPlaceOrder_UnknownPaymentMethod(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "50", 10)

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 1, Price: 50})
	req.PaymentMethod = "Bitcoin"
	req.Amount = dec("60")

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrUnknownPaymentMethod)
	assert.Equal(t, 10, env.ledger.Stock("p1", ""))
}

// The server price is authoritative: lying client line prices are ignored,
// but a client amount that disagrees with the server total is rejected
// before any stock mutation.
func TestPlaceOrder_AmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "50", 10)

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 1, Price: 1})
	req.Amount = dec("11") // client hoped for its own price

	_, err := env.svc.PlaceOrder(context.Background(), req)

	var mismatch *AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, dec("60").Equal(mismatch.Computed))
	assert.Equal(t, 10, env.ledger.Stock("p1", ""))
	assert.Nil(t, env.orders.lastOrder)
}

func TestPlaceOrder_ServerPriceWinsInSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "50", 10)

	// Client submits a wrong line price but the correct total.
	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 1, Price: 1, Name: "Cheap Shirt"})
	req.Amount = dec("60")

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(result.Order.Lines[0].UnitPrice))
	assert.Equal(t, "Shirt", result.Order.Lines[0].Name)
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "100", 10)
	env.coupons.rule = &coupon.Rule{
		Code:      "SUMMER10",
		Kind:      coupon.KindPercentage,
		Value:     dec("10"),
		ExpiresAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 1, Price: 100})
	req.CouponCode = "summer10"
	req.Amount = dec("100") // 100 - 10 + 10 delivery

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(result.Breakdown.Discount))
	assert.Equal(t, "SUMMER10", env.orders.lastCoupon,
		"coupon code must reach the repository for the usage increment")
}

func TestPlaceOrder_ExpiredCouponLeavesStockUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "100", 10)
	env.coupons.rule = &coupon.Rule{
		Code:      "OLD",
		Kind:      coupon.KindPercentage,
		Value:     dec("10"),
		ExpiresAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 1, Price: 100})
	req.CouponCode = "OLD"
	req.Amount = dec("100")

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, coupon.ErrExpired)
	assert.Equal(t, 10, env.ledger.Stock("p1", ""))
	assert.Nil(t, env.orders.lastOrder)
}

// A persistence failure after the reservation must compensate the decrement
// before the error surfaces.
func TestPlaceOrder_PersistFailureReleasesStock(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "50", 10)
	env.orders.createErr = errors.New("connection reset")

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 2, Price: 50})
	req.Amount = dec("110")

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Equal(t, 10, env.ledger.Stock("p1", ""))
	assert.Empty(t, env.carts.cleared)
}

// Cart reset is best-effort: its failure is a warning, never a rollback.
func TestPlaceOrder_CartResetFailureKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct("p1", "Shirt", "50", 10)
	env.carts.clearErr = errors.New("cart store down")

	req := baseRequest(validate.OrderItem{ProductID: "p1", Quantity: 2, Price: 50})
	req.Amount = dec("110")

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.CartCleared)
	assert.NotNil(t, env.orders.lastOrder)
	assert.Equal(t, 8, env.ledger.Stock("p1", ""))
}
