// Package validate holds the pure input validators used at the edge of the
// order pipeline. Every function is side-effect free and returns either the
// sanitized value or an error describing the first violation.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
)

// Limits enforced on incoming order data.
const (
	MaxQuantity      = 99
	MaxPrice         = 1_000_000
	MaxFixedDiscount = 10_000

	MaxPageLimit     = 100
	DefaultPageLimit = 20
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
)

var (
	couponCodeRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
)

// OrderItem is a raw line item as submitted by the client. Price is the
// client's view of the unit price and is only used for confirmation; the
// catalog price is authoritative.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Size      string  `json:"size"`
}

// OrderItems validates a submitted cart. It rejects an empty cart, any
// quantity outside [1, MaxQuantity] and any negative or oversized price.
func OrderItems(items []OrderItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range items {
		if item.ProductID == "" {
			return nil, errors.New("item is missing a product id")
		}
		if item.Quantity < 1 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", item.ProductID)
		}
		if item.Quantity > MaxQuantity {
			return nil, errors.Wrapf(ErrInvalidQuantity,
				"product %s: maximum quantity per line is %d", item.ProductID, MaxQuantity)
		}
		if err := Price(item.Price); err != nil {
			return nil, errors.Wrapf(err, "product %s", item.ProductID)
		}
	}
	return items, nil
}

// CouponCode sanitizes a coupon code: trims whitespace, enforces length and
// character constraints, and normalizes to upper case.
func CouponCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) < 3 || len(code) > 20 {
		return "", errors.New("coupon code must be between 3 and 20 characters")
	}
	if !couponCodeRe.MatchString(code) {
		return "", errors.New("coupon code may only contain letters, numbers, and hyphens")
	}
	return strings.ToUpper(code), nil
}

// Quantity validates a numeric quantity within [min, max]. Fractional values
// are rejected rather than truncated.
func Quantity(value float64, min, max int) (int, error) {
	if value != math.Trunc(value) {
		return 0, errors.Wrap(ErrInvalidQuantity, "quantity must be an integer")
	}
	q := int(value)
	if q < min || q > max {
		return 0, errors.Wrapf(ErrInvalidQuantity, "quantity must be between %d and %d", min, max)
	}
	return q, nil
}

// Price validates a unit price within [0, MaxPrice].
func Price(price float64) error {
	if price < 0 || price > MaxPrice {
		return errors.Wrapf(ErrInvalidPrice, "price must be between 0 and %d", MaxPrice)
	}
	return nil
}

// Discount validates a discount value for the given kind: percentages stay
// within [0, 100], fixed amounts within [0, MaxFixedDiscount].
func Discount(kind string, value float64) error {
	if value < 0 {
		return errors.New("discount must not be negative")
	}
	switch kind {
	case "percentage":
		if value > 100 {
			return errors.New("percentage discount must not exceed 100")
		}
	case "fixed":
		if value > MaxFixedDiscount {
			return fmt.Errorf("fixed discount must not exceed %d", MaxFixedDiscount)
		}
	default:
		return fmt.Errorf("unknown discount kind %q", kind)
	}
	return nil
}

// SanitizeString strips HTML tags, trims whitespace and truncates to maxLen
// runes. Used on free-form address fields before persistence.
func SanitizeString(s string, maxLen int) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}

// Pagination clamps page and limit to sane values: page defaults to 1,
// limit defaults to DefaultPageLimit and never exceeds MaxPageLimit.
func Pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
