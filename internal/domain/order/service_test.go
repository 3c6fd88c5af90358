package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/user"
)

// --- Mock implementations ---

type mockCartRepo struct {
	cart *cart.Cart
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	if m.cart == nil || m.cart.UserID != userID {
		return nil, cart.ErrNotFound
	}
	cp := *m.cart
	cp.Items = append([]cart.Item(nil), m.cart.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Upsert(context.Context, *cart.Cart) error { return nil }

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) Create(context.Context, *product.Product) error { return nil }

func (m *mockProductRepo) List(context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Update(context.Context, string, product.Update) (*product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) Delete(context.Context, string) error { return nil }

type mockUserRepo struct {
	byID map[string]user.User
}

func (m *mockUserRepo) Create(context.Context, *user.User) error { return nil }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]user.User, error) {
	var out []user.User
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) List(context.Context) ([]user.User, error) { return nil, nil }

func (m *mockUserRepo) Update(context.Context, string, user.Update) (*user.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Delete(context.Context, string) error { return nil }

type mockOrderRepo struct {
	created         *Order
	clearedVersion  int64
	createErr       error
	byID            map[string]Order
	listOrders      []Order
	listTotal       int
	lastFilter      Filter
	updatedStatuses map[string]Status
	deleted         []string
}

func (m *mockOrderRepo) CreateAndClearCart(_ context.Context, o *Order, cartVersion int64) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = o
	m.clearedVersion = cartVersion
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.listOrders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context, f Filter) ([]Order, int, error) {
	m.lastFilter = f
	return m.listOrders, m.listTotal, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = status
	m.byID[id] = o
	if m.updatedStatuses == nil {
		m.updatedStatuses = make(map[string]Status)
	}
	m.updatedStatuses[id] = status
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAddress() Address {
	return Address{
		FullName:   "Ada Lovelace",
		Address:    "12 Analytical Way",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "UK",
	}
}

type fixture struct {
	svc      *Service
	carts    *mockCartRepo
	products *mockProductRepo
	users    *mockUserRepo
	orders   *mockOrderRepo
}

func newFixture() *fixture {
	f := &fixture{
		carts:    &mockCartRepo{},
		products: &mockProductRepo{byID: make(map[string]product.Product)},
		users:    &mockUserRepo{byID: make(map[string]user.User)},
		orders:   &mockOrderRepo{byID: make(map[string]Order)},
	}
	f.svc = NewService(f.carts, f.products, f.users, f.orders)
	return f
}

// --- Checkout ---

func TestCheckout_TotalsAndStatus(t *testing.T) {
	f := newFixture()
	f.carts.cart = &cart.Cart{
		UserID:  "u1",
		Version: 4,
		Items: []cart.Item{
			{ProductID: "p1", Quantity: 2, Price: dec("10.00")},
			{ProductID: "p2", Quantity: 1, Price: dec("5.00")},
		},
	}

	o, err := f.svc.Checkout(context.Background(), "u1", testAddress())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "u1", o.UserID)
	assert.True(t, dec("25.00").Equal(o.Total), "total = 2*10 + 1*5, got %s", o.Total)
	assert.Equal(t, StatusPending, o.PaymentStatus)
	assert.Equal(t, DefaultPaymentMethod, o.PaymentMethod)
	assert.Equal(t, testAddress(), o.ShippingAddress)
	require.Len(t, o.Items, 2)

	require.NotNil(t, f.orders.created)
	assert.Equal(t, int64(4), f.orders.clearedVersion,
		"cart clear must be keyed to the version read at checkout")
}

func TestCheckout_NoCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), "u1", testAddress())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, f.orders.created, "no order may be created for an empty cart")
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()
	f.carts.cart = &cart.Cart{UserID: "u1", Version: 1}

	_, err := f.svc.Checkout(context.Background(), "u1", testAddress())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, f.orders.created)
}

func TestCheckout_VersionConflictSurfaces(t *testing.T) {
	f := newFixture()
	f.carts.cart = &cart.Cart{
		UserID:  "u1",
		Version: 1,
		Items:   []cart.Item{{ProductID: "p1", Quantity: 1, Price: dec("10.00")}},
	}
	f.orders.createErr = cart.ErrVersionConflict

	_, err := f.svc.Checkout(context.Background(), "u1", testAddress())
	require.ErrorIs(t, err, cart.ErrVersionConflict)
}

func TestCheckout_ItemsAreDeepCopies(t *testing.T) {
	f := newFixture()
	f.carts.cart = &cart.Cart{
		UserID:  "u1",
		Version: 1,
		Items:   []cart.Item{{ProductID: "p1", Quantity: 2, Price: dec("10.00")}},
	}

	o, err := f.svc.Checkout(context.Background(), "u1", testAddress())
	require.NoError(t, err)

	// Mutating the source cart afterwards must not bleed into the order.
	f.carts.cart.Items[0].Quantity = 99
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, dec("10.00").Equal(o.Items[0].Price))
}

// --- Listing ---

func TestListForUser(t *testing.T) {
	f := newFixture()
	f.orders.listOrders = []Order{
		{ID: "o1", UserID: "u1"},
		{ID: "o2", UserID: "u2"},
		{ID: "o3", UserID: "u1"},
	}

	orders, err := f.svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "o3", orders[1].ID)
}

func TestAdminList_PaginationMath(t *testing.T) {
	f := newFixture()
	f.orders.listTotal = 25

	page, err := f.svc.AdminList(context.Background(), Filter{Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Pages, "25 orders at 10 per page is 3 pages")
}

func TestAdminList_NormalizesFilter(t *testing.T) {
	f := newFixture()

	page, err := f.svc.AdminList(context.Background(), Filter{Page: 0, Limit: 0})
	require.NoError(t, err)

	assert.Equal(t, 1, f.orders.lastFilter.Page)
	assert.Equal(t, 10, f.orders.lastFilter.Limit)
	assert.Equal(t, SortNewest, f.orders.lastFilter.Sort)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 0, page.Pages)
}

func TestAdminList_PassesFilterThrough(t *testing.T) {
	f := newFixture()
	status := StatusPaid
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.AdminList(context.Background(), Filter{
		Status:    &status,
		StartDate: &start,
		Page:      1,
		Limit:     20,
		Sort:      SortTotalDesc,
	})
	require.NoError(t, err)

	require.NotNil(t, f.orders.lastFilter.Status)
	assert.Equal(t, StatusPaid, *f.orders.lastFilter.Status)
	require.NotNil(t, f.orders.lastFilter.StartDate)
	assert.Equal(t, start, *f.orders.lastFilter.StartDate)
	assert.Equal(t, SortTotalDesc, f.orders.lastFilter.Sort)
}

func TestAdminList_ExpandsUsersAndProducts(t *testing.T) {
	f := newFixture()
	f.users.byID["u1"] = user.User{ID: "u1", Username: "ada", Email: "ada@example.com"}
	f.products.byID["p1"] = product.Product{ID: "p1", Name: "Widget", Price: dec("12.00")}
	f.orders.listOrders = []Order{{
		ID:     "o1",
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 1, Price: dec("10.00")}},
	}}
	f.orders.listTotal = 1

	page, err := f.svc.AdminList(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)

	d := page.Orders[0]
	require.NotNil(t, d.User)
	assert.Equal(t, "ada", d.User.Username)
	assert.Equal(t, "ada@example.com", d.User.Email)

	require.Len(t, d.Items, 1)
	assert.Equal(t, "Widget", d.Items[0].ProductName)
	assert.True(t, dec("12.00").Equal(d.Items[0].ProductPrice), "live catalog price")
	assert.True(t, dec("10.00").Equal(d.Items[0].Price), "frozen snapshot price")
}

func TestAdminList_DeletedReferencesExpandToZero(t *testing.T) {
	f := newFixture()
	f.orders.listOrders = []Order{{
		ID:     "o1",
		UserID: "gone",
		Items:  []Item{{ProductID: "gone-too", Quantity: 1, Price: dec("10.00")}},
	}}
	f.orders.listTotal = 1

	page, err := f.svc.AdminList(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)

	d := page.Orders[0]
	assert.Nil(t, d.User)
	require.Len(t, d.Items, 1)
	assert.Empty(t, d.Items[0].ProductName)
	assert.True(t, d.Items[0].ProductPrice.IsZero())
}

// --- Single-order admin operations ---

func TestAdminGet(t *testing.T) {
	f := newFixture()
	f.users.byID["u1"] = user.User{ID: "u1", Username: "ada", Email: "ada@example.com"}
	f.orders.byID["o1"] = Order{ID: "o1", UserID: "u1", PaymentStatus: StatusPending}

	d, err := f.svc.AdminGet(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", d.ID)
	require.NotNil(t, d.User)
	assert.Equal(t, "ada", d.User.Username)
}

func TestAdminGet_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AdminGet(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = Order{ID: "o1", UserID: "u1", PaymentStatus: StatusPending}

	d, err := f.svc.UpdateStatus(context.Background(), "o1", "paid")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, d.PaymentStatus)
	assert.Equal(t, StatusPaid, f.orders.updatedStatuses["o1"])
}

func TestUpdateStatus_PaidBackToPending(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = Order{ID: "o1", UserID: "u1", PaymentStatus: StatusPaid}

	d, err := f.svc.UpdateStatus(context.Background(), "o1", "pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, d.PaymentStatus)
}

func TestUpdateStatus_RejectsUnknownValue(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = Order{ID: "o1", PaymentStatus: StatusPending}

	_, err := f.svc.UpdateStatus(context.Background(), "o1", "shipped")

	var invalid *InvalidStatusError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "shipped", invalid.Value)
	assert.Empty(t, f.orders.updatedStatuses, "invalid status must not reach the store")
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UpdateStatus(context.Background(), "missing", "paid")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = Order{ID: "o1"}

	require.NoError(t, f.svc.Delete(context.Background(), "o1"))
	assert.Equal(t, []string{"o1"}, f.orders.deleted)

	err := f.svc.Delete(context.Background(), "o1")
	require.ErrorIs(t, err, ErrNotFound)
}
