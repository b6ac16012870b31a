package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/trendora/checkout/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, kind, value, min_purchase, max_discount,
		max_uses, uses, expires_at, description
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	// The usage cap is enforced here rather than at validation time:
	// validation reads a snapshot, so two concurrent orders could both
	// pass it with one use left. max_uses of zero means unlimited.
	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1
		WHERE code = $1 AND (max_uses = 0 OR uses < max_uses)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given coupon
// code, refusing once the cap is reached. Order placement does this inside
// the order-commit transaction; this standalone variant exists for
// administrative tooling.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule        coupon.Rule
		kind        string
		value       decimal.Decimal
		minPurchase decimal.Decimal
		maxDiscount decimal.Decimal
		expiresAt   *time.Time
	)
	err := row.Scan(
		&rule.Code, &kind, &value, &minPurchase, &maxDiscount,
		&rule.MaxUses, &rule.Uses, &expiresAt, &rule.Description,
	)
	rule.Kind = coupon.Kind(kind)
	rule.Value = value
	rule.MinPurchase = minPurchase
	rule.MaxDiscount = maxDiscount
	if expiresAt != nil {
		rule.ExpiresAt = *expiresAt
	}
	return rule, err
}
