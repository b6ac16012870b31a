package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	fixedNow := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		rule     Rule
		subtotal decimal.Decimal
		wantErr  error
	}{
		{
			name: "valid coupon accepted",
			rule: Rule{
				Code:      "SUMMER10",
				Kind:      KindPercentage,
				Value:     decimal.NewFromInt(10),
				ExpiresAt: fixedNow.Add(24 * time.Hour),
			},
			subtotal: decimal.NewFromInt(100),
		},
		{
			name: "expired coupon rejected regardless of other validity",
			rule: Rule{
				Code:      "OLD",
				Kind:      KindPercentage,
				Value:     decimal.NewFromInt(10),
				ExpiresAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrExpired,
		},
		{
			name: "expiry exactly now rejected",
			rule: Rule{
				Code:      "EDGE",
				Kind:      KindFixed,
				Value:     decimal.NewFromInt(5),
				ExpiresAt: fixedNow,
			},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrExpired,
		},
		{
			name: "subtotal below minimum purchase rejected",
			rule: Rule{
				Code:        "MIN100",
				Kind:        KindFixed,
				Value:       decimal.NewFromInt(20),
				MinPurchase: decimal.NewFromInt(100),
				ExpiresAt:   fixedNow.Add(24 * time.Hour),
			},
			subtotal: decimal.NewFromInt(50),
			wantErr:  ErrBelowMinimum,
		},
		{
			name: "subtotal meeting minimum accepted",
			rule: Rule{
				Code:        "MIN100",
				Kind:        KindFixed,
				Value:       decimal.NewFromInt(20),
				MinPurchase: decimal.NewFromInt(100),
				ExpiresAt:   fixedNow.Add(24 * time.Hour),
			},
			subtotal: decimal.NewFromInt(100),
		},
		{
			name: "usage limit reached rejected",
			rule: Rule{
				Code:      "LIMITED",
				Kind:      KindPercentage,
				Value:     decimal.NewFromInt(10),
				MaxUses:   100,
				Uses:      100,
				ExpiresAt: fixedNow.Add(24 * time.Hour),
			},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrUsageLimitReached,
		},
		{
			name: "usage under limit accepted",
			rule: Rule{
				Code:      "HASROOM",
				Kind:      KindPercentage,
				Value:     decimal.NewFromInt(10),
				MaxUses:   100,
				Uses:      99,
				ExpiresAt: fixedNow.Add(24 * time.Hour),
			},
			subtotal: decimal.NewFromInt(100),
		},
		{
			name: "zero max uses means unlimited",
			rule: Rule{
				Code:      "UNLIMITED",
				Kind:      KindFixed,
				Value:     decimal.NewFromInt(5),
				Uses:      9999,
				ExpiresAt: fixedNow.Add(24 * time.Hour),
			},
			subtotal: decimal.NewFromInt(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.rule, tt.subtotal, fixedNow)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		subtotal string
		want     string
	}{
		{
			name:     "ten percent of 100 is 10",
			rule:     Rule{Kind: KindPercentage, Value: decimal.NewFromInt(10)},
			subtotal: "100",
			want:     "10",
		},
		{
			name:     "percentage capped by max discount",
			rule:     Rule{Kind: KindPercentage, Value: decimal.NewFromInt(20), MaxDiscount: decimal.NewFromInt(100)},
			subtotal: "1000",
			want:     "100",
		},
		{
			name:     "percentage under cap untouched",
			rule:     Rule{Kind: KindPercentage, Value: decimal.NewFromInt(20), MaxDiscount: decimal.NewFromInt(100)},
			subtotal: "200",
			want:     "40",
		},
		{
			name:     "hundred percent never exceeds subtotal",
			rule:     Rule{Kind: KindPercentage, Value: decimal.NewFromInt(100)},
			subtotal: "50",
			want:     "50",
		},
		{
			name:     "fixed applied",
			rule:     Rule{Kind: KindFixed, Value: decimal.NewFromInt(20)},
			subtotal: "100",
			want:     "20",
		},
		{
			name:     "fixed capped at subtotal",
			rule:     Rule{Kind: KindFixed, Value: decimal.NewFromInt(100)},
			subtotal: "50",
			want:     "50",
		},
		{
			name:     "decimal percentage rounds to cents",
			rule:     Rule{Kind: KindPercentage, Value: decimal.RequireFromString("15.5")},
			subtotal: "99.99",
			want:     "15.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(&tt.rule, decimal.RequireFromString(tt.subtotal))
			require.NoError(t, err)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(got), "expected %s, got %s", want, got)
		})
	}
}

func TestApply_UnknownKind(t *testing.T) {
	_, err := Apply(&Rule{Kind: "bogus", Value: decimal.NewFromInt(10)}, decimal.NewFromInt(100))
	require.Error(t, err)
}
