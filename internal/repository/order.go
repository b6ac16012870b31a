package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendora/checkout/internal/domain/coupon"
	"github.com/trendora/checkout/internal/domain/order"
)

const (
	orderColumns = `id, buyer_id, lines, subtotal, discount, delivery_fee, amount,
		address, payment_method, paid, status, coupon_code, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByBuyerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	lockOrderStatusSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`
	setOrderStatusSQL  = `UPDATE orders SET status = $2 WHERE id = $1`
	markOrderPaidSQL   = `UPDATE orders SET paid = TRUE WHERE id = $1`
	confirmReservedSQL = `DELETE FROM reservations WHERE order_id = $1`
)

// ErrOrderNotFound is returned for lookups and updates of unknown orders.
var ErrOrderNotFound = errors.New("order not found")

// InvalidTransitionError reports an attempted lifecycle move the state
// machine forbids.
type InvalidTransitionError struct {
	From order.Status
	To   order.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %q to %q", e.From, e.To)
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and, in the same transaction, increments the
// coupon usage counter (when a coupon was applied) and confirms the pending
// stock reservation. The increment is conditional on the coupon's cap, so
// of two concurrent orders racing for the last use exactly one commits; the
// loser gets coupon.ErrUsageLimitReached. A rollback leaves the coupon
// counter untouched and the reservation eligible for the recovery sweep.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, couponCode string) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling order address: %w", err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.BuyerID, linesJSON, o.Subtotal, o.Discount, o.DeliveryFee,
			o.Amount, addressJSON, string(o.PaymentMethod), o.Paid,
			string(o.Status), o.CouponCode, o.CreatedAt,
		); err != nil {
			return err
		}
		if couponCode != "" {
			tag, err := tx.Exec(ctx, incrementCouponUsesSQL, couponCode)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				// A concurrent order took the last use after this one
				// validated. Abort; the caller releases the reservation.
				return coupon.ErrUsageLimitReached
			}
		}
		if _, err := tx.Exec(ctx, confirmReservedSQL, o.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, page, limit int) ([]order.Order, error) {
	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx, listOrdersByBuyerSQL, buyerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %q: %w", buyerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus advances the order lifecycle after validating the transition
// against the current status under a row lock.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, to order.Status) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return err
		}
		from := order.Status(current)
		if !order.CanTransition(from, to) {
			return &InvalidTransitionError{From: from, To: to}
		}
		_, err := tx.Exec(ctx, setOrderStatusSQL, id, string(to))
		return err
	})
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.As(err, &invalid) {
			return err
		}
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return nil
}

// MarkPaid flips the paid flag for the given order.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		linesJSON     []byte
		addressJSON   []byte
		paymentMethod string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &linesJSON, &o.Subtotal, &o.Discount, &o.DeliveryFee,
		&o.Amount, &addressJSON, &paymentMethod, &o.Paid, &status,
		&o.CouponCode, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return o, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)
	return o, nil
}
