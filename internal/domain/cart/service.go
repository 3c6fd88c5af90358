package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-api/internal/domain/product"
)

// upsertRetries bounds how many times a mutation is replayed after losing an
// optimistic-concurrency race.
const upsertRetries = 3

// Service implements cart assembly: resolving carts for display and mutating
// them in response to add/remove requests.
type Service struct {
	products product.Repository
	carts    Repository
}

// NewService creates a cart Service.
func NewService(products product.Repository, carts Repository) *Service {
	return &Service{products: products, carts: carts}
}

// Get returns the user's cart with items resolved against the live catalog.
// A user without a cart gets an empty view, not an error.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &View{UserID: userID, Items: []ResolvedItem{}}, nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return s.resolve(ctx, c)
}

// AddItem adds quantity units of a product to the user's cart, creating the
// cart lazily on first add. Adding a product already in the cart merges
// quantities and keeps the original price snapshot.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}

	return s.mutate(ctx, userID, true, func(c *Cart) {
		c.add(productID, quantity, p.Price)
	})
}

// RemoveItem removes every entry for productID from the user's cart. A user
// without a cart gets ErrNotFound; removing a product that is not in the
// cart succeeds and leaves the cart unchanged.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	return s.mutate(ctx, userID, false, func(c *Cart) {
		c.remove(productID)
	})
}

// mutate loads the cart (creating an empty one when createMissing is set),
// applies fn, and writes it back. Lost optimistic-concurrency races are
// replayed against a fresh read up to upsertRetries times.
func (s *Service) mutate(ctx context.Context, userID string, createMissing bool, fn func(*Cart)) (*Cart, error) {
	for attempt := 0; ; attempt++ {
		c, err := s.carts.Get(ctx, userID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, errors.Wrap(err, "get cart")
			}
			if !createMissing {
				return nil, ErrNotFound
			}
			c = &Cart{UserID: userID}
		}

		fn(c)
		c.UpdatedAt = time.Now().UTC()

		err = s.carts.Upsert(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= upsertRetries {
			return nil, errors.Wrap(err, "save cart")
		}
	}
}

// resolve joins cart items with live catalog records in a single batch
// lookup. Deleted products resolve to a nil Product but keep their snapshot
// price and quantity.
func (s *Service) resolve(ctx context.Context, c *Cart) (*View, error) {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}

	var byID map[string]*product.Product
	if len(ids) > 0 {
		fetched, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "resolve cart products")
		}
		byID = make(map[string]*product.Product, len(fetched))
		for i := range fetched {
			byID[fetched[i].ID] = &fetched[i]
		}
	}

	view := &View{
		UserID:    c.UserID,
		Items:     make([]ResolvedItem, len(c.Items)),
		UpdatedAt: c.UpdatedAt,
	}
	for i, it := range c.Items {
		view.Items[i] = ResolvedItem{
			Product:  byID[it.ProductID],
			Quantity: it.Quantity,
			Price:    it.Price,
		}
	}
	return view, nil
}
