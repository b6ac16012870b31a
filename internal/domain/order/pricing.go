package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trendora/checkout/internal/domain/coupon"
)

// amountTolerance is the largest difference between the client-submitted
// amount and the server-computed total that is still accepted as rounding
// noise.
var amountTolerance = decimal.RequireFromString("0.01")

// AmountMismatchError indicates the client-submitted total disagrees with the
// server-computed total beyond rounding tolerance. The server price is
// authoritative; the client amount is only a confirmation check.
type AmountMismatchError struct {
	Submitted decimal.Decimal
	Computed  decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("submitted amount %s does not match computed total %s",
		e.Submitted.StringFixed(2), e.Computed.StringFixed(2))
}

// Breakdown is the authoritative price computation for an order.
type Breakdown struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// PricingEngine computes order totals from line snapshots, an optional
// coupon, and the fixed delivery fee. Prices on the snapshots are
// server-trusted, re-fetched from the catalog; client prices never enter
// the computation.
type PricingEngine struct {
	deliveryFee decimal.Decimal
	now         func() time.Time
}

// NewPricingEngine creates a PricingEngine with the given delivery fee.
func NewPricingEngine(deliveryFee decimal.Decimal) *PricingEngine {
	return &PricingEngine{deliveryFee: deliveryFee, now: time.Now}
}

// Quote computes the price breakdown for the given lines. When rule is
// non-nil the coupon gate (expiry, minimum purchase, usage limit) is applied
// before its discount; discounts never exceed the subtotal and the total is
// rounded to two decimal places.
func (e *PricingEngine) Quote(lines []LineSnapshot, rule *coupon.Rule) (Breakdown, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.UnitPrice.Mul(qty))
	}

	discount := decimal.Zero
	if rule != nil {
		if err := coupon.Validate(rule, subtotal, e.now()); err != nil {
			return Breakdown{}, err
		}
		var err error
		discount, err = coupon.Apply(rule, subtotal)
		if err != nil {
			return Breakdown{}, err
		}
	}

	total := subtotal.Sub(discount).Add(e.deliveryFee)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:    subtotal.Round(2),
		Discount:    discount,
		DeliveryFee: e.deliveryFee,
		Total:       total.Round(2),
	}, nil
}

// CheckAmount compares the client-submitted amount against the computed
// total. Mismatches beyond the rounding tolerance are rejected, never
// coerced.
func (e *PricingEngine) CheckAmount(b Breakdown, submitted decimal.Decimal) error {
	if submitted.Sub(b.Total).Abs().GreaterThan(amountTolerance) {
		return &AmountMismatchError{Submitted: submitted, Computed: b.Total}
	}
	return nil
}
