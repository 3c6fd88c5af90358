package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned when no order matches the requested ID.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned by Checkout when the user has no cart or the
	// cart holds no items.
	ErrEmptyCart = errors.New("cart is empty")
)

// Status is the payment status of an order.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// InvalidStatusError indicates a status value outside the recognized set.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return "invalid payment status: " + e.Value
}

// ParseStatus validates a raw status string against the closed enumeration.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusFailed:
		return st, nil
	default:
		return "", &InvalidStatusError{Value: s}
	}
}

// DefaultPaymentMethod is assigned to orders at creation.
const DefaultPaymentMethod = "card"

// Item is a frozen copy of a cart item at checkout time. Later catalog or
// cart changes never affect it.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Address is a structured shipping destination.
type Address struct {
	FullName   string
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Order is a finalized purchase. Items and Total are computed once at
// creation and never recomputed.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	Total           decimal.Decimal
	ShippingAddress Address
	PaymentStatus   Status
	PaymentMethod   string
	CreatedAt       time.Time
}

// Sort selects the ordering of an administrative listing.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortOldest    Sort = "oldest"
	SortTotalAsc  Sort = "total_asc"
	SortTotalDesc Sort = "total_desc"
)

// Filter configures the administrative order listing. Zero values fall back
// to defaults: page 1, limit 10, newest first, no status or date
// restriction. Date bounds are inclusive.
type Filter struct {
	Status    *Status
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
	Sort      Sort
}

// Normalize applies listing defaults in place.
func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	switch f.Sort {
	case SortNewest, SortOldest, SortTotalAsc, SortTotalDesc:
	default:
		f.Sort = SortNewest
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateAndClearCart persists the order and empties the owning user's
	// cart in a single transaction. The cart clear is conditional on
	// cartVersion; a concurrent cart mutation aborts the whole transaction
	// with cart.ErrVersionConflict.
	CreateAndClearCart(ctx context.Context, o *Order, cartVersion int64) error
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// List returns one page of orders matching the filter plus the total
	// match count ignoring pagination.
	List(ctx context.Context, f Filter) ([]Order, int, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus sets the payment status. ErrNotFound when no row matches.
	UpdateStatus(ctx context.Context, id string, status Status) error
	// Delete permanently removes the order. ErrNotFound when no row matches.
	Delete(ctx context.Context, id string) error
}
