// Package cart models the buyer-owned pending cart. Items are keyed by
// product then size; all mutation goes through the Repository so the cart
// follows the same atomicity discipline as stock.
package cart

import "context"

// Items maps productID -> size -> quantity.
type Items map[string]map[string]int

// Cart is the pending cart of a single buyer.
type Cart struct {
	BuyerID string
	Items   Items
}

// TotalQuantity returns the number of units across all lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, sizes := range c.Items {
		for _, qty := range sizes {
			total += qty
		}
	}
	return total
}

// Repository defines persistence operations for buyer carts.
type Repository interface {
	Get(ctx context.Context, buyerID string) (*Cart, error)
	SetItem(ctx context.Context, buyerID, productID, size string, quantity int) error
	// Clear empties the buyer's cart. Called after a successful order
	// commit; a failure here must not reverse the order.
	Clear(ctx context.Context, buyerID string) error
}
