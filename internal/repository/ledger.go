package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendora/checkout/internal/domain/inventory"
)

const (
	// Conditional decrements: the WHERE clause guarantees stock never goes
	// negative and lets the row count signal an insufficient line.
	reserveProductSQL = `UPDATE products
		SET stock = stock - $2, sold_count = sold_count + $2
		WHERE id = $1 AND stock >= $2`
	reserveVariantSQL = `UPDATE product_variants
		SET stock = stock - $3, sold_count = sold_count + $3
		WHERE product_id = $1 AND size = $2 AND stock >= $3`

	releaseProductSQL = `UPDATE products
		SET stock = stock + $2, sold_count = sold_count - $2
		WHERE id = $1`
	releaseVariantSQL = `UPDATE product_variants
		SET stock = stock + $3, sold_count = sold_count - $3
		WHERE product_id = $1 AND size = $2`

	availableProductSQL = `SELECT stock FROM products WHERE id = $1`
	availableVariantSQL = `SELECT stock FROM product_variants WHERE product_id = $1 AND size = $2`

	insertReservationSQL = `INSERT INTO reservations (order_id, lines, created_at)
		VALUES ($1, $2, now())`
	deleteReservationSQL = `DELETE FROM reservations WHERE order_id = $1`

	// Stale rows are claimed under SKIP LOCKED so concurrent sweeps never
	// release the same reservation twice. The order-existence check guards
	// against a reservation whose order committed but whose confirm was
	// lost: releasing it would hand the stock back twice.
	claimStaleSQL = `SELECT order_id, lines FROM reservations
		WHERE created_at < $1
		FOR UPDATE SKIP LOCKED`
	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ inventory.Ledger = (*PostgresLedger)(nil)

// PostgresLedger implements inventory.Ledger on the products or
// product_variants table depending on the configured mode. Reserve runs the
// per-line decrements and the pending-reservation insert in one transaction,
// so a failed line rolls everything back without explicit compensation.
type PostgresLedger struct {
	pool *pgxpool.Pool
	mode inventory.Mode
}

// NewPostgresLedger returns a ledger tracking stock in the given mode.
func NewPostgresLedger(pool *pgxpool.Pool, mode inventory.Mode) *PostgresLedger {
	return &PostgresLedger{pool: pool, mode: mode}
}

// Reserve atomically decrements stock for every line and records the pending
// reservation. The first line whose stock does not cover the quantity aborts
// the transaction and is reported as *inventory.InsufficientStockError.
func (l *PostgresLedger) Reserve(ctx context.Context, orderID string, lines []inventory.Line) error {
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		for _, line := range lines {
			tag, err := l.decrement(ctx, tx, line)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				available, err := l.available(ctx, tx, line)
				if err != nil {
					return err
				}
				return &inventory.InsufficientStockError{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: available,
				}
			}
		}
		linesJSON, err := json.Marshal(lines)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertReservationSQL, orderID, linesJSON)
		return err
	})
	if err != nil {
		var insufficient *inventory.InsufficientStockError
		if errors.As(err, &insufficient) {
			return insufficient
		}
		return fmt.Errorf("reserving stock for order %q: %w", orderID, err)
	}
	return nil
}

// Confirm deletes the pending row, marking the decrements durable. The order
// repository already does this inside the order-commit transaction; Confirm
// covers ledgers wired without that coupling and is a no-op when the row is
// already gone.
func (l *PostgresLedger) Confirm(ctx context.Context, orderID string) error {
	if _, err := l.pool.Exec(ctx, deleteReservationSQL, orderID); err != nil {
		return fmt.Errorf("confirming reservation for order %q: %w", orderID, err)
	}
	return nil
}

// Release compensates the reservation's decrements and drops the pending
// row. Releasing an order with no pending row is a no-op, so a release
// racing the recovery sweep cannot hand stock back twice.
func (l *PostgresLedger) Release(ctx context.Context, orderID string, lines []inventory.Line) error {
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteReservationSQL, orderID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return l.restock(ctx, tx, lines)
	})
	if err != nil {
		return fmt.Errorf("releasing reservation for order %q: %w", orderID, err)
	}
	return nil
}

// RecoverStale releases every pending reservation created before the cutoff
// whose order never committed, and returns how many were repaired.
func (l *PostgresLedger) RecoverStale(ctx context.Context, olderThan time.Time) (int, error) {
	released := 0
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, claimStaleSQL, olderThan)
		if err != nil {
			return err
		}
		type staleRow struct {
			orderID string
			lines   []inventory.Line
		}
		var stale []staleRow
		for rows.Next() {
			var (
				row       staleRow
				linesJSON []byte
			)
			if err := rows.Scan(&row.orderID, &linesJSON); err != nil {
				rows.Close()
				return err
			}
			if err := json.Unmarshal(linesJSON, &row.lines); err != nil {
				rows.Close()
				return err
			}
			stale = append(stale, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, row := range stale {
			var committed bool
			if err := tx.QueryRow(ctx, orderExistsSQL, row.orderID).Scan(&committed); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, deleteReservationSQL, row.orderID); err != nil {
				return err
			}
			if committed {
				continue
			}
			if err := l.restock(ctx, tx, row.lines); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recovering stale reservations: %w", err)
	}
	return released, nil
}

func (l *PostgresLedger) decrement(ctx context.Context, tx pgx.Tx, line inventory.Line) (pgconn.CommandTag, error) {
	if l.mode == inventory.ModePerVariant {
		return tx.Exec(ctx, reserveVariantSQL, line.ProductID, line.Size, line.Quantity)
	}
	return tx.Exec(ctx, reserveProductSQL, line.ProductID, line.Quantity)
}

func (l *PostgresLedger) available(ctx context.Context, tx pgx.Tx, line inventory.Line) (int, error) {
	var stock int
	var err error
	if l.mode == inventory.ModePerVariant {
		err = tx.QueryRow(ctx, availableVariantSQL, line.ProductID, line.Size).Scan(&stock)
	} else {
		err = tx.QueryRow(ctx, availableProductSQL, line.ProductID).Scan(&stock)
	}
	if err != nil {
		// An unknown product or variant simply has nothing available.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return stock, nil
}

func (l *PostgresLedger) restock(ctx context.Context, tx pgx.Tx, lines []inventory.Line) error {
	for _, line := range lines {
		var err error
		if l.mode == inventory.ModePerVariant {
			_, err = tx.Exec(ctx, releaseVariantSQL, line.ProductID, line.Size, line.Quantity)
		} else {
			_, err = tx.Exec(ctx, releaseProductSQL, line.ProductID, line.Quantity)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
