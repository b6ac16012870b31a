package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trendora/checkout/internal/domain/cart"
	"github.com/trendora/checkout/internal/domain/coupon"
	"github.com/trendora/checkout/internal/domain/inventory"
	"github.com/trendora/checkout/internal/domain/product"
	"github.com/trendora/checkout/internal/validate"
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidSizeError indicates a line requested a size the product is not
// offered in.
type InvalidSizeError struct {
	ProductID string
	Size      string
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("product %s is not available in size %q", e.ProductID, e.Size)
}

// PlaceOrderRequest holds the input for placing an order. Item prices and
// the amount are client-submitted and used only as confirmation checks;
// authoritative values come from the catalog.
type PlaceOrderRequest struct {
	BuyerID       string
	Items         []validate.OrderItem
	Address       Address
	PaymentMethod string
	// PaymentCaptured indicates the gateway collaborator already confirmed
	// capture for this order. Ignored for cash on delivery.
	PaymentCaptured bool
	Amount          decimal.Decimal
	CouponCode      string
}

// PlaceOrderResult holds the output of a successfully placed order.
// CartCleared is false when the post-commit cart reset failed; the order
// still stands and the failure is reported as a warning only.
type PlaceOrderResult struct {
	Order       *Order
	Breakdown   Breakdown
	CartCleared bool
}

// Service runs the order placement pipeline: validation, pricing, atomic
// stock reservation, durable order creation, and the best-effort cart reset.
type Service struct {
	products product.Repository
	coupons  coupon.Repository
	ledger   inventory.Ledger
	orders   Repository
	carts    cart.Repository
	pricing  *PricingEngine
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	products product.Repository,
	coupons coupon.Repository,
	ledger inventory.Ledger,
	orders Repository,
	carts cart.Repository,
	pricing *PricingEngine,
) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		ledger:   ledger,
		orders:   orders,
		carts:    carts,
		pricing:  pricing,
		now:      time.Now,
	}
}

// PlaceOrder executes the pipeline. All business-rule failures are detected
// before any stock mutation; once the ledger reservation begins the operation
// runs to success or full rollback without caller interruption.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	items, err := validate.OrderItems(req.Items)
	if err != nil {
		return nil, err
	}

	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var rule *coupon.Rule
	if req.CouponCode != "" {
		code, err := validate.CouponCode(req.CouponCode)
		if err != nil {
			return nil, errors.Wrap(coupon.ErrInvalidCoupon, err.Error())
		}
		rule, err = s.coupons.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	lines, err := s.snapshotLines(ctx, items)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricing.Quote(lines, rule)
	if err != nil {
		return nil, err
	}
	if err := s.pricing.CheckAmount(breakdown, req.Amount); err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New().String(),
		BuyerID:       req.BuyerID,
		Lines:         lines,
		Subtotal:      breakdown.Subtotal,
		Discount:      breakdown.Discount,
		DeliveryFee:   breakdown.DeliveryFee,
		Amount:        breakdown.Total,
		Address:       sanitizeAddress(req.Address),
		PaymentMethod: method,
		Paid:          method.InitialPaid(req.PaymentCaptured),
		Status:        StatusPlaced,
		CreatedAt:     s.now().UTC(),
	}
	if rule != nil {
		o.CouponCode = rule.Code
	}

	// Reserve stock for every line, all-or-nothing. From here on a failure
	// must compensate before surfacing.
	reserved := reservationLines(lines)
	if err := s.ledger.Reserve(ctx, o.ID, reserved); err != nil {
		return nil, err
	}

	couponCode := o.CouponCode
	if err := s.orders.Create(ctx, o, couponCode); err != nil {
		if relErr := s.ledger.Release(ctx, o.ID, reserved); relErr != nil {
			zctx.From(ctx).Error("compensating stock release failed",
				zap.String("order_id", o.ID),
				zap.Error(relErr),
			)
		}
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.ledger.Confirm(ctx, o.ID); err != nil {
		// The order is durable; the recovery sweep re-checks committed
		// orders before releasing, so a dangling pending row is harmless.
		zctx.From(ctx).Warn("confirm reservation failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	result := &PlaceOrderResult{Order: o, Breakdown: breakdown, CartCleared: true}
	if err := s.carts.Clear(ctx, req.BuyerID); err != nil {
		// Best-effort relative to the already-durable order.
		result.CartCleared = false
		zctx.From(ctx).Warn("cart reset failed after order commit",
			zap.String("order_id", o.ID),
			zap.String("buyer_id", req.BuyerID),
			zap.Error(err),
		)
	}

	return result, nil
}

// snapshotLines re-fetches every product in one batch and freezes
// server-trusted name and price into line snapshots.
func (s *Service) snapshotLines(ctx context.Context, items []validate.OrderItem) ([]LineSnapshot, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	now := s.now()
	lines := make([]LineSnapshot, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if item.Size != "" && len(p.Sizes) > 0 && !p.HasSize(item.Size) {
			return nil, &InvalidSizeError{ProductID: item.ProductID, Size: item.Size}
		}
		lines[i] = LineSnapshot{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.EffectivePrice(now),
			Quantity:  item.Quantity,
			Size:      item.Size,
		}
	}
	return lines, nil
}

// ListOrders returns the buyer's order history, newest first.
func (s *Service) ListOrders(ctx context.Context, buyerID string, page, limit int) ([]Order, error) {
	page, limit = validate.Pagination(page, limit)
	orders, err := s.orders.ListByBuyer(ctx, buyerID, page, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func reservationLines(lines []LineSnapshot) []inventory.Line {
	out := make([]inventory.Line, len(lines))
	for i, line := range lines {
		out[i] = inventory.Line{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
		}
	}
	return out
}

func sanitizeAddress(a Address) Address {
	return Address{
		FirstName: validate.SanitizeString(a.FirstName, 100),
		LastName:  validate.SanitizeString(a.LastName, 100),
		Street:    validate.SanitizeString(a.Street, 200),
		City:      validate.SanitizeString(a.City, 100),
		State:     validate.SanitizeString(a.State, 100),
		Zip:       validate.SanitizeString(a.Zip, 20),
		Country:   validate.SanitizeString(a.Country, 100),
		Phone:     validate.SanitizeString(a.Phone, 20),
	}
}
