package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage applies a percentage of the subtotal, optionally
	// capped by the rule's MaxDiscount.
	KindPercentage Kind = "percentage"
	// KindFixed subtracts a fixed amount, capped at the subtotal.
	KindFixed Kind = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrExpired is returned when a coupon is past its expiry timestamp.
	ErrExpired = errors.New("coupon expired")
	// ErrBelowMinimum is returned when the subtotal does not reach the
	// coupon's minimum purchase amount.
	ErrBelowMinimum = errors.New("subtotal below coupon minimum purchase")
	// ErrUsageLimitReached is returned when a coupon has exhausted its
	// allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
// MaxUses of zero means unlimited; MaxDiscount of zero means uncapped.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinPurchase decimal.Decimal
	MaxDiscount decimal.Decimal // percentage kind only
	MaxUses     int
	Uses        int
	ExpiresAt   time.Time
	Description string
}

// Repository provides lookup and mutation of coupon rules. IncrementUses
// must only be called on the same logical operation that commits an order
// using the coupon.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
