// Package inventory defines the stock ledger used by order placement.
// Reservations are all-or-nothing across every line of one order: a failed
// line rolls back all decrements already applied for that order.
package inventory

import (
	"context"
	"fmt"
	"time"
)

// Mode selects how stock is tracked. The catalog carries a size label on
// every line, but historically stock was a single counter per product;
// per-variant tracking is offered as a deployment choice.
type Mode string

const (
	// ModeAggregate tracks one stock counter per product.
	ModeAggregate Mode = "aggregate"
	// ModePerVariant tracks stock per (product, size) pair.
	ModePerVariant Mode = "per-variant"
)

// Line is one stock movement of a reservation.
type Line struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// InsufficientStockError reports the line that could not be reserved along
// with the quantity actually available at the moment of the attempt.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: maximum available quantity is %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// Ledger performs atomic stock reservations.
//
// Reserve applies a conditional decrement per line; the decrement only
// succeeds while remaining stock covers the quantity, and concurrent
// reservations against the same product are linearized. On the first failing
// line every decrement already applied for the order is compensated and an
// *InsufficientStockError is returned. Each reservation is recorded as a
// short-lived pending row so a crash between reservation and order commit
// can be repaired.
//
// Confirm marks the reservation durable once the order is committed.
// Release compensates a reservation whose order never committed.
// RecoverStale releases every pending reservation older than the cutoff and
// returns how many were repaired.
type Ledger interface {
	Reserve(ctx context.Context, orderID string, lines []Line) error
	Confirm(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID string, lines []Line) error
	RecoverStale(ctx context.Context, olderThan time.Time) (int, error)
}
