package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/cart"
)

const (
	getCartSQL = `SELECT items, version, updated_at FROM carts WHERE user_id = $1`

	// Inserts a fresh cart or, when a row exists, replaces its items only if
	// the stored version matches the one the caller read. A failed version
	// check updates zero rows, which Upsert reports as a conflict.
	upsertCartSQL = `INSERT INTO carts (user_id, items, version, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET items = EXCLUDED.items, version = carts.version + 1, updated_at = EXCLUDED.updated_at
		WHERE carts.version = $4`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Cart items
// are stored as a JSONB document on the per-user cart row, so a cart write
// is a single-row atomic operation.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart, or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var itemsJSON []byte
	c := cart.Cart{UserID: userID}

	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(&itemsJSON, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return &c, nil
}

// Upsert writes the cart. A zero c.Version means the caller saw no cart; the
// write then only succeeds as a fresh insert. On success the stored version
// is bumped (the caller should re-read rather than reuse c).
func (r *CartRepository) Upsert(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	tag, err := r.pool.Exec(ctx, upsertCartSQL, c.UserID, itemsJSON, c.UpdatedAt, c.Version)
	if err != nil {
		return fmt.Errorf("upserting cart for user %q: %w", c.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrVersionConflict
	}
	return nil
}
