package order

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/user"
)

// UserRef is the subset of the owning user exposed on expanded orders.
type UserRef struct {
	ID       string
	Username string
	Email    string
}

// LineItem is an order item joined with the live product record for display.
// ProductName and ProductPrice reflect the catalog now; Price stays the
// snapshot frozen at checkout. Deleted products leave the live fields zero.
type LineItem struct {
	Item
	ProductName  string
	ProductPrice decimal.Decimal
}

// Detail is an order expanded with user and product display data.
type Detail struct {
	Order
	User  *UserRef
	Items []LineItem
}

// Page is one page of an administrative listing.
type Page struct {
	Orders []Detail
	Total  int
	Page   int
	Pages  int
}

// Service implements the checkout transition and the order query engine.
type Service struct {
	carts    cart.Repository
	products product.Repository
	users    user.Repository
	orders   Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	products product.Repository,
	users user.Repository,
	orders Repository,
) *Service {
	return &Service{
		carts:    carts,
		products: products,
		users:    users,
		orders:   orders,
	}
}

// Checkout converts the user's cart into an order and empties the cart. The
// order copies the cart items with their snapshot prices; its total is the
// sum of price times quantity over those items. Both writes happen in one
// transaction keyed to the cart version read here, so a concurrent cart
// mutation fails the whole checkout instead of losing an update.
func (s *Service) Checkout(ctx context.Context, userID string, addr Address) (*Order, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]Item, len(c.Items))
	total := decimal.Zero
	for i, it := range c.Items {
		items[i] = Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           items,
		Total:           total.Round(2),
		ShippingAddress: addr,
		PaymentStatus:   StatusPending,
		PaymentMethod:   DefaultPaymentMethod,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.orders.CreateAndClearCart(ctx, o, c.Version); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// ListForUser returns the user's own orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// AdminList returns one page of orders matching the filter, each expanded
// with user and product display data, plus pagination metadata.
func (s *Service) AdminList(ctx context.Context, f Filter) (*Page, error) {
	f.Normalize()

	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	details, err := s.expand(ctx, orders)
	if err != nil {
		return nil, err
	}

	return &Page{
		Orders: details,
		Total:  total,
		Page:   f.Page,
		Pages:  int(math.Ceil(float64(total) / float64(f.Limit))),
	}, nil
}

// AdminGet returns a single order expanded with user and product display
// data, or ErrNotFound.
func (s *Service) AdminGet(ctx context.Context, id string) (*Detail, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}

	details, err := s.expand(ctx, []Order{*o})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// UpdateStatus validates the new status against the closed enumeration and
// persists it, returning the updated expanded order. Any transition between
// recognized values is accepted, including paid back to pending.
func (s *Service) UpdateStatus(ctx context.Context, id, rawStatus string) (*Detail, error) {
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update order status")
	}
	return s.AdminGet(ctx, id)
}

// Delete permanently removes an order, or returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete order")
	}
	return nil
}

// expand joins orders with their users and the live catalog records for
// every referenced product, using one batch lookup per store.
func (s *Service) expand(ctx context.Context, orders []Order) ([]Detail, error) {
	userIDs := make([]string, 0, len(orders))
	seenUsers := make(map[string]struct{}, len(orders))
	productIDs := make([]string, 0)
	seenProducts := make(map[string]struct{})

	for _, o := range orders {
		if _, ok := seenUsers[o.UserID]; !ok {
			seenUsers[o.UserID] = struct{}{}
			userIDs = append(userIDs, o.UserID)
		}
		for _, it := range o.Items {
			if _, ok := seenProducts[it.ProductID]; !ok {
				seenProducts[it.ProductID] = struct{}{}
				productIDs = append(productIDs, it.ProductID)
			}
		}
	}

	usersByID := make(map[string]UserRef, len(userIDs))
	if len(userIDs) > 0 {
		users, err := s.users.GetByIDs(ctx, userIDs)
		if err != nil {
			return nil, errors.Wrap(err, "expand order users")
		}
		for _, u := range users {
			usersByID[u.ID] = UserRef{ID: u.ID, Username: u.Username, Email: u.Email}
		}
	}

	productsByID := make(map[string]product.Product, len(productIDs))
	if len(productIDs) > 0 {
		products, err := s.products.GetByIDs(ctx, productIDs)
		if err != nil {
			return nil, errors.Wrap(err, "expand order products")
		}
		for _, p := range products {
			productsByID[p.ID] = p
		}
	}

	details := make([]Detail, len(orders))
	for i, o := range orders {
		d := Detail{Order: o, Items: make([]LineItem, len(o.Items))}
		if ref, ok := usersByID[o.UserID]; ok {
			d.User = &ref
		}
		for j, it := range o.Items {
			line := LineItem{Item: it}
			if p, ok := productsByID[it.ProductID]; ok {
				line.ProductName = p.Name
				line.ProductPrice = p.Price
			}
			d.Items[j] = line
		}
		details[i] = d
	}
	return details, nil
}
