package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. The main sequence is monotonic;
// Cancelled is reachable from any state before Delivered. Delivered and
// Cancelled are terminal.
type Status string

const (
	StatusPlaced         Status = "Order Placed"
	StatusPacking        Status = "Packing"
	StatusShipped        Status = "Shipped"
	StatusOutForDelivery Status = "Out for delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

// sequence holds the main lifecycle in order. Cancelled sits outside it.
var sequence = []Status{StatusPlaced, StatusPacking, StatusShipped, StatusOutForDelivery, StatusDelivered}

func rank(s Status) int {
	for i, st := range sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	return s == StatusCancelled || rank(s) >= 0
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Only forward moves along the main sequence are allowed; cancellation is
// allowed from any non-terminal state.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return rank(to) > rank(from)
}

// PaymentMethod is the closed set of payment method tags an order may carry.
// The pipeline only records the tag and the initial paid flag; capture itself
// belongs to an external collaborator.
type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "COD"
	PaymentStripe   PaymentMethod = "Stripe"
	PaymentRazorpay PaymentMethod = "Razorpay"
)

// ErrUnknownPaymentMethod is returned for tags outside the closed set.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ParsePaymentMethod validates a payment method tag.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCOD, PaymentStripe, PaymentRazorpay:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownPaymentMethod, "%q", s)
	}
}

// InitialPaid returns the paid flag an order starts with for this method.
// Cash on delivery is always unpaid at placement; gateway methods reflect
// whether the capture collaborator has already confirmed payment.
func (m PaymentMethod) InitialPaid(captured bool) bool {
	if m == PaymentCOD {
		return false
	}
	return captured
}

// LineSnapshot is a frozen copy of line-item data, taken at order time and
// immune to later catalog edits. An Order never references live product data.
type LineSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
}

// Address is the delivery address captured with the order.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// Order is the immutable snapshot persisted at placement. Status is advanced
// later by the fulfillment collaborator; Paid is flipped by the
// payment-confirmation event.
type Order struct {
	ID            string
	BuyerID       string
	Lines         []LineSnapshot
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Amount        decimal.Decimal
	Address       Address
	PaymentMethod PaymentMethod
	Paid          bool
	Status        Status
	CouponCode    string
	CreatedAt     time.Time
}

// Repository defines persistence operations for orders.
//
// Create persists the order and, when couponCode is non-empty, increments the
// coupon's usage counter within the same transaction; no path that aborts the
// order may increment the counter.
type Repository interface {
	Create(ctx context.Context, o *Order, couponCode string) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string, page, limit int) ([]Order, error)
	// UpdateStatus advances the lifecycle state; implementations must
	// reject transitions CanTransition forbids.
	UpdateStatus(ctx context.Context, id string, to Status) error
	// MarkPaid flips the paid flag, driven by the external
	// payment-confirmation event.
	MarkPaid(ctx context.Context, id string) error
}
