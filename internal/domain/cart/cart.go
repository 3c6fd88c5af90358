package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/product"
)

// Sentinel errors for cart persistence and mutation.
var (
	// ErrNotFound is returned when the user has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrVersionConflict is returned by Upsert when the cart row changed
	// since it was read. Callers reload and retry.
	ErrVersionConflict = errors.New("cart was modified concurrently")
	// ErrInvalidQuantity is returned for add requests with quantity < 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Item is a single cart entry. Price is the product price captured when the
// item was first added and is never refreshed by later adds.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Cart is a user's staging area of selected products. A user has at most one
// cart, and a cart holds at most one item per product (adds merge
// quantities). Version backs optimistic concurrency: it is the value read
// from storage and is checked on every write.
type Cart struct {
	UserID    string
	Items     []Item
	Version   int64
	UpdatedAt time.Time
}

// item returns the index of the entry for productID, or -1.
func (c *Cart) item(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// add merges quantity into an existing entry or appends a new one with the
// given price snapshot.
func (c *Cart) add(productID string, quantity int, price decimal.Decimal) {
	if i := c.item(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		return
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity, Price: price})
}

// remove drops every entry for productID. Removing an absent product is a
// no-op.
func (c *Cart) remove(productID string) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
}

// ResolvedItem is a cart entry joined with the live catalog record for
// display. Product is nil when the referenced product has been deleted.
type ResolvedItem struct {
	Product  *product.Product
	Quantity int
	Price    decimal.Decimal
}

// View is a cart prepared for display, with items resolved against the
// catalog.
type View struct {
	UserID    string
	Items     []ResolvedItem
	UpdatedAt time.Time
}

// Repository defines persistence operations for carts.
type Repository interface {
	// Get returns the user's cart or ErrNotFound.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Upsert writes the cart, inserting it when c.Version is zero. It fails
	// with ErrVersionConflict when the stored version differs from
	// c.Version.
	Upsert(ctx context.Context, c *Cart) error
}
