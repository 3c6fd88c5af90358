package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/user"
)

// In-memory repositories backing the router under test. They honor the same
// contracts as the PostgreSQL implementations: sentinel not-found errors,
// optimistic cart versioning, and the transactional create-and-clear.

type memStore struct {
	mu       sync.Mutex
	products map[string]product.Product
	users    map[string]user.User
	carts    map[string]cart.Cart
	orders   map[string]order.Order
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]product.Product),
		users:    make(map[string]user.User),
		carts:    make(map[string]cart.Cart),
		orders:   make(map[string]order.Order),
	}
}

type memProductRepo struct{ s *memStore }

func (r *memProductRepo) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products[p.ID] = *p
	return nil
}

func (r *memProductRepo) List(context.Context) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) Update(_ context.Context, id string, u product.Update) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	r.s.products[id] = p
	return &p, nil
}

func (r *memProductRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r *memUserRepo) GetByIDs(_ context.Context, ids []string) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *memUserRepo) List(context.Context) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memUserRepo) Update(_ context.Context, id string, up user.Update) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if up.Role != nil {
		u.Role = *up.Role
	}
	if up.IsActive != nil {
		u.IsActive = *up.IsActive
	}
	r.s.users[id] = u
	return &u, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

type memCartRepo struct{ s *memStore }

func (r *memCartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	c.Items = append([]cart.Item(nil), c.Items...)
	return &c, nil
}

func (r *memCartRepo) Upsert(_ context.Context, c *cart.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.carts[c.UserID]
	switch {
	case !ok && c.Version != 0:
		return cart.ErrVersionConflict
	case ok && stored.Version != c.Version:
		return cart.ErrVersionConflict
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	cp.Version = c.Version + 1
	r.s.carts[c.UserID] = cp
	return nil
}

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) CreateAndClearCart(_ context.Context, o *order.Order, cartVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[o.UserID]
	if !ok || c.Version != cartVersion {
		return cart.ErrVersionConflict
	}
	c.Items = nil
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	r.s.carts[o.UserID] = c
	r.s.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []order.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) List(_ context.Context, f order.Filter) ([]order.Order, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []order.Order
	for _, o := range r.s.orders {
		if f.Status != nil && o.PaymentStatus != *f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id string, status order.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentStatus = status
	r.s.orders[id] = o
	return nil
}

func (r *memOrderRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(r.s.orders, id)
	return nil
}

// --- Fixture ---

type apiFixture struct {
	router http.Handler
	store  *memStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := newMemStore()
	products := &memProductRepo{s: store}
	users := &memUserRepo{s: store}
	carts := &memCartRepo{s: store}
	orders := &memOrderRepo{s: store}

	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)
	h := NewHandler(
		auth.NewService(users, tokens),
		tokens,
		cart.NewService(products, carts),
		order.NewService(carts, products, users, orders),
		products,
		users,
	)
	return &apiFixture{router: h.Routes(), store: store}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) registerUser(t *testing.T, username, email, role string) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"email":    email,
		"password": "s3cret",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *apiFixture) createProduct(t *testing.T, name string, price float64) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/products", "", map[string]any{
		"name": name, "price": price, "category": "test", "stock": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// --- Authentication and authorization ---

func TestProtectedRoutes_NoToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/cart", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "not authorized, no token provided", resp.Message)
}

func TestProtectedRoutes_BadToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/cart", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not authorized, token invalid or expired", decodeError(t, rec).Message)
}

func TestAdminRoutes_RejectRegularUser(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "ada", "ada@example.com", "")

	rec := f.do(t, http.MethodGet, "/api/admin/orders", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "access denied, admin only", decodeError(t, rec).Message)
}

func TestAdminRoutes_AllowAdmin(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "root", "root@example.com", "admin")

	rec := f.do(t, http.MethodGet, "/api/admin/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// --- End-to-end checkout flow ---

func TestCheckoutFlow(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "ada", "ada@example.com", "")
	p1 := f.createProduct(t, "Widget", 10)
	p2 := f.createProduct(t, "Gadget", 5)

	rec := f.do(t, http.MethodPost, "/api/cart", token, map[string]any{
		"productId": p1, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/cart", token, map[string]any{
		"productId": p2, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/orders", token, map[string]any{
		"shippingAddress": map[string]any{
			"fullName": "Ada Lovelace", "address": "12 Analytical Way",
			"city": "London", "postalCode": "N1 9GU", "country": "UK",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.InDelta(t, 25.0, created.Total, 1e-9)
	assert.Equal(t, "pending", created.PaymentStatus)
	assert.Equal(t, "card", created.PaymentMethod)
	assert.Len(t, created.Items, 2)

	// The cart must be empty after checkout.
	rec = f.do(t, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view cartViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Empty(t, view.Items)

	// The order shows up in the user's history.
	rec = f.do(t, http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, created.ID, history[0].ID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "ada", "ada@example.com", "")

	rec := f.do(t, http.MethodPost, "/api/orders", token, map[string]any{
		"shippingAddress": map[string]any{"fullName": "Ada"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "cart is empty", resp.Message)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "ada", "ada@example.com", "")

	rec := f.do(t, http.MethodPost, "/api/cart", token, map[string]any{
		"productId": "nope", "quantity": 1,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeError(t, rec).Success)
}

func TestAddCartItem_InvalidQuantity(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "ada", "ada@example.com", "")
	p1 := f.createProduct(t, "Widget", 10)

	rec := f.do(t, http.MethodPost, "/api/cart", token, map[string]any{
		"productId": p1, "quantity": 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveCartItem_WithoutCart(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerUser(t, "ada", "ada@example.com", "")

	rec := f.do(t, http.MethodDelete, "/api/cart/whatever", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Admin surface ---

func TestAdminOrders_UpdateStatus(t *testing.T) {
	f := newAPIFixture(t)
	userToken := f.registerUser(t, "ada", "ada@example.com", "")
	adminToken := f.registerUser(t, "root", "root@example.com", "admin")
	p1 := f.createProduct(t, "Widget", 10)

	rec := f.do(t, http.MethodPost, "/api/cart", userToken, map[string]any{
		"productId": p1, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/orders", userToken, map[string]any{
		"shippingAddress": map[string]any{"fullName": "Ada"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, http.MethodPut, "/api/admin/orders/"+created.ID, adminToken, map[string]any{
		"paymentStatus": "paid",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Message string                `json:"message"`
		Order   expandedOrderResponse `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "order updated", updated.Message)
	assert.Equal(t, "paid", updated.Order.PaymentStatus)
	require.NotNil(t, updated.Order.User)
	assert.Equal(t, "ada", updated.Order.User.Username)
	require.Len(t, updated.Order.Items, 1)
	assert.Equal(t, "Widget", updated.Order.Items[0].ProductName)
}

func TestAdminOrders_RejectUnknownStatus(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.registerUser(t, "root", "root@example.com", "admin")

	rec := f.do(t, http.MethodPut, "/api/admin/orders/any-id", adminToken, map[string]any{
		"paymentStatus": "shipped",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payment status: shipped", decodeError(t, rec).Message)
}

func TestAdminOrders_InvalidFilterParams(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.registerUser(t, "root", "root@example.com", "admin")

	for _, query := range []string{
		"status=shipped",
		"startDate=yesterday",
		"endDate=not-a-date",
		"page=0",
		"page=abc",
		"limit=0",
		"sort=price",
	} {
		rec := f.do(t, http.MethodGet, "/api/admin/orders?"+query, adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestAdminOrders_Delete(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.registerUser(t, "root", "root@example.com", "admin")

	rec := f.do(t, http.MethodDelete, "/api/admin/orders/missing", adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Misc request handling ---

func TestDecodeBody_RejectsUnknownFields(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "ada", "email": "a@b.com", "password": "x", "bogus": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec).Message)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "ada", "ada@example.com", "")

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "eve", "email": "ada@example.com", "password": "x",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "ada", "ada@example.com", "")

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, rec).Message)
}
