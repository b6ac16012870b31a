package product

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	p := Product{Price: decimal.NewFromInt(100)}
	assert.True(t, decimal.NewFromInt(100).Equal(p.EffectivePrice(now)), "no discount")

	p.Discount = decimal.NewFromInt(20)
	p.DiscountEndDate = &future
	assert.True(t, decimal.NewFromInt(80).Equal(p.EffectivePrice(now)), "active discount")

	p.DiscountEndDate = &past
	assert.True(t, decimal.NewFromInt(100).Equal(p.EffectivePrice(now)), "expired discount")

	p.DiscountEndDate = nil
	assert.True(t, decimal.NewFromInt(80).Equal(p.EffectivePrice(now)), "open-ended discount")
}

func TestHasSize(t *testing.T) {
	p := Product{Sizes: []string{"S", "M", "L"}}
	assert.True(t, p.HasSize("M"))
	assert.False(t, p.HasSize("XL"))
}
