package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderItems(t *testing.T) {
	t.Run("rejects empty cart", func(t *testing.T) {
		_, err := OrderItems(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("rejects invalid quantity", func(t *testing.T) {
		_, err := OrderItems([]OrderItem{{ProductID: "123", Name: "Product", Quantity: -1, Price: 100}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quantity")
	})

	t.Run("rejects quantity above limit", func(t *testing.T) {
		_, err := OrderItems([]OrderItem{{ProductID: "123", Name: "Product", Quantity: 100, Price: 100}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maximum")
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := OrderItems([]OrderItem{{ProductID: "123", Name: "Product", Quantity: 1, Price: -10}})
		require.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("rejects missing product id", func(t *testing.T) {
		_, err := OrderItems([]OrderItem{{Quantity: 1, Price: 10}})
		require.Error(t, err)
	})

	t.Run("accepts valid items", func(t *testing.T) {
		items := []OrderItem{
			{ProductID: "123", Name: "Product", Quantity: 2, Price: 100},
			{ProductID: "456", Name: "Product 2", Quantity: 1, Price: 50},
		}
		got, err := OrderItems(items)
		require.NoError(t, err)
		assert.Equal(t, items, got)
	})
}

func TestCouponCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    string
		wantErr string
	}{
		{name: "empty", code: "", wantErr: "3 and 20"},
		{name: "too short", code: "AB", wantErr: "3 and 20"},
		{name: "too long", code: strings.Repeat("A", 21), wantErr: "3 and 20"},
		{name: "invalid characters", code: "CODE@123", wantErr: "letters, numbers, and hyphens"},
		{name: "valid and uppercased", code: "summer-2024", want: "SUMMER-2024"},
		{name: "trims whitespace", code: "  SUMMER10  ", want: "SUMMER10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CouponCode(tt.code)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantity(t *testing.T) {
	t.Run("rejects non-integer", func(t *testing.T) {
		_, err := Quantity(1.5, 0, 99)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "integer")
	})

	t.Run("rejects negative", func(t *testing.T) {
		_, err := Quantity(-1, 0, 99)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("rejects above max", func(t *testing.T) {
		_, err := Quantity(100, 0, 99)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("accepts valid quantity", func(t *testing.T) {
		q, err := Quantity(5, 0, 99)
		require.NoError(t, err)
		assert.Equal(t, 5, q)
	})
}

func TestPrice(t *testing.T) {
	assert.Error(t, Price(-10))
	assert.Error(t, Price(2_000_000))
	assert.NoError(t, Price(99.99))
	assert.NoError(t, Price(0))
}

func TestDiscount(t *testing.T) {
	assert.Error(t, Discount("percentage", 101))
	assert.Error(t, Discount("percentage", -10))
	assert.NoError(t, Discount("percentage", 15))
	assert.Error(t, Discount("fixed", 15_000))
	assert.NoError(t, Discount("fixed", 50))
	assert.Error(t, Discount("bogus", 10))
}

func TestSanitizeString(t *testing.T) {
	t.Run("removes html tags", func(t *testing.T) {
		got := SanitizeString(`<script>alert("xss")</script>`, 100)
		assert.NotContains(t, got, "<")
		assert.NotContains(t, got, ">")
	})

	t.Run("trims whitespace", func(t *testing.T) {
		assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	})

	t.Run("limits length", func(t *testing.T) {
		got := SanitizeString(strings.Repeat("a", 2000), 100)
		assert.Len(t, got, 100)
	})
}

func TestPagination(t *testing.T) {
	page, limit := Pagination(0, 20)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)

	_, limit = Pagination(1, 200)
	assert.LessOrEqual(t, limit, MaxPageLimit)

	page, limit = Pagination(-1, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageLimit, limit)
}
