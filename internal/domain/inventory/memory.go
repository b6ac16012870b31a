package inventory

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-memory Ledger used by tests and local development.
// A single mutex makes every reservation linearizable, mirroring the
// conditional-update guarantee of the database-backed ledger.
type MemoryLedger struct {
	mode Mode

	mu      sync.Mutex
	stock   map[string]int
	pending map[string]pendingReservation
}

type pendingReservation struct {
	lines []Line
	at    time.Time
}

// NewMemoryLedger creates a MemoryLedger tracking stock in the given mode.
func NewMemoryLedger(mode Mode) *MemoryLedger {
	return &MemoryLedger{
		mode:    mode,
		stock:   make(map[string]int),
		pending: make(map[string]pendingReservation),
	}
}

// SetStock sets the available stock for a product (or variant, in
// per-variant mode).
func (l *MemoryLedger) SetStock(productID, size string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[l.key(productID, size)] = quantity
}

// Stock returns the current stock for a product or variant.
func (l *MemoryLedger) Stock(productID, size string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[l.key(productID, size)]
}

func (l *MemoryLedger) key(productID, size string) string {
	if l.mode == ModePerVariant {
		return productID + "\x00" + size
	}
	return productID
}

// Reserve implements Ledger.
func (l *MemoryLedger) Reserve(_ context.Context, orderID string, lines []Line) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	applied := make([]Line, 0, len(lines))
	for _, line := range lines {
		key := l.key(line.ProductID, line.Size)
		available := l.stock[key]
		if available < line.Quantity {
			// Compensate decrements already applied for this order.
			for _, prev := range applied {
				l.stock[l.key(prev.ProductID, prev.Size)] += prev.Quantity
			}
			return &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
		l.stock[key] = available - line.Quantity
		applied = append(applied, line)
	}

	l.pending[orderID] = pendingReservation{lines: lines, at: time.Now()}
	return nil
}

// Confirm implements Ledger.
func (l *MemoryLedger) Confirm(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, orderID)
	return nil
}

// Release implements Ledger.
func (l *MemoryLedger) Release(_ context.Context, orderID string, lines []Line) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[orderID]; !ok {
		return nil
	}
	for _, line := range lines {
		l.stock[l.key(line.ProductID, line.Size)] += line.Quantity
	}
	delete(l.pending, orderID)
	return nil
}

// RecoverStale implements Ledger.
func (l *MemoryLedger) RecoverStale(_ context.Context, olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	repaired := 0
	for orderID, res := range l.pending {
		if res.at.Before(olderThan) {
			for _, line := range res.lines {
				l.stock[l.key(line.ProductID, line.Size)] += line.Quantity
			}
			delete(l.pending, orderID)
			repaired++
		}
	}
	return repaired, nil
}
