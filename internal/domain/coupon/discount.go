package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate checks whether the rule may be applied to an order with the given
// subtotal at the given instant. A coupon is accepted iff it has not expired,
// the subtotal reaches the minimum purchase, and the usage limit (when set)
// has headroom.
func Validate(rule *Rule, subtotal decimal.Decimal, now time.Time) error {
	if !rule.ExpiresAt.IsZero() && !now.Before(rule.ExpiresAt) {
		return ErrExpired
	}
	if subtotal.LessThan(rule.MinPurchase) {
		return ErrBelowMinimum
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return ErrUsageLimitReached
	}
	return nil
}

// Apply computes the discount amount the rule yields on the given subtotal.
// Percentage discounts are capped at the rule's MaxDiscount when set; fixed
// discounts are capped at the subtotal. The result is clamped to
// [0, subtotal] and rounded to two decimal places.
func Apply(rule *Rule, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch rule.Kind {
	case KindPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, rule.MaxDiscount)
		}
	case KindFixed:
		amount = rule.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", rule.Kind)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = decimal.Min(amount, subtotal)
	return amount.Round(2), nil
}
