package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendora/checkout/internal/domain/cart"
)

const (
	getCartSQL = `SELECT items FROM carts WHERE buyer_id = $1`

	// The whole items document is rewritten under the buyer's row lock so
	// concurrent SetItem calls for one buyer serialize on the row.
	upsertCartItemSQL = `INSERT INTO carts (buyer_id, items, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (buyer_id) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`

	lockCartSQL  = `SELECT items FROM carts WHERE buyer_id = $1 FOR UPDATE`
	clearCartSQL = `UPDATE carts SET items = '{}', updated_at = now() WHERE buyer_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The cart
// is stored as a single JSONB document per buyer.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the buyer's cart. A buyer without a row gets an empty cart.
func (r *CartRepository) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	var itemsJSON []byte
	err := r.pool.QueryRow(ctx, getCartSQL, buyerID).Scan(&itemsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return &cart.Cart{BuyerID: buyerID, Items: cart.Items{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cart for buyer %q: %w", buyerID, err)
	}
	items := cart.Items{}
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart for buyer %q: %w", buyerID, err)
	}
	return &cart.Cart{BuyerID: buyerID, Items: items}, nil
}

// SetItem sets the quantity for one (product, size) line. A zero quantity
// removes the line.
func (r *CartRepository) SetItem(ctx context.Context, buyerID, productID, size string, quantity int) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		items := cart.Items{}
		var itemsJSON []byte
		err := tx.QueryRow(ctx, lockCartSQL, buyerID).Scan(&itemsJSON)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(itemsJSON, &items); err != nil {
				return err
			}
		}

		if quantity <= 0 {
			if sizes, ok := items[productID]; ok {
				delete(sizes, size)
				if len(sizes) == 0 {
					delete(items, productID)
				}
			}
		} else {
			if items[productID] == nil {
				items[productID] = map[string]int{}
			}
			items[productID][size] = quantity
		}

		updated, err := json.Marshal(items)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, upsertCartItemSQL, buyerID, updated)
		return err
	})
	if err != nil {
		return fmt.Errorf("setting cart item for buyer %q: %w", buyerID, err)
	}
	return nil
}

// Clear empties the buyer's cart. Clearing an absent cart is a no-op.
func (r *CartRepository) Clear(ctx context.Context, buyerID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, buyerID); err != nil {
		return fmt.Errorf("clearing cart for buyer %q: %w", buyerID, err)
	}
	return nil
}
