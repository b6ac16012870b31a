package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock and
// SoldCount are mutated only through the inventory ledger; price and
// discount fields are owned by catalog-management collaborators.
type Product struct {
	ID              string
	Name            string
	Price           decimal.Decimal
	Category        string
	SubCategory     string
	Sizes           []string
	Stock           int
	Discount        decimal.Decimal // percentage, 0-100
	DiscountEndDate *time.Time
	Bestseller      bool
	SoldCount       int
	CreatedAt       time.Time
}

// EffectivePrice returns the unit price after applying the product's own
// discount, when one is set and has not expired. The result is rounded to
// two decimal places.
func (p Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.Discount.IsZero() {
		return p.Price
	}
	if p.DiscountEndDate != nil && !now.Before(*p.DiscountEndDate) {
		return p.Price
	}
	factor := decimal.NewFromInt(100).Sub(p.Discount).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor).Round(2)
}

// HasSize reports whether the product is offered in the given size label.
func (p Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, page, limit int) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
