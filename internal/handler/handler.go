// Package handler implements the HTTP surface: routing, request decoding,
// authentication, and mapping domain results and errors onto JSON responses.
package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/user"
)

// Handler holds the services and repositories behind the HTTP surface.
type Handler struct {
	authSvc  *auth.Service
	tokens   *auth.Tokens
	carts    *cart.Service
	orders   *order.Service
	products product.Repository
	users    user.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	authSvc *auth.Service,
	tokens *auth.Tokens,
	carts *cart.Service,
	orders *order.Service,
	products product.Repository,
	users user.Repository,
) *Handler {
	return &Handler{
		authSvc:  authSvc,
		tokens:   tokens,
		carts:    carts,
		orders:   orders,
		products: products,
		users:    users,
	}
}

// Routes builds the API router. All application routes live under /api;
// health probes are mounted separately by the caller.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)

	api.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.updateProduct).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", h.deleteProduct).Methods(http.MethodDelete)

	api.HandleFunc("/cart", h.authenticate(h.getCart)).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.authenticate(h.addCartItem)).Methods(http.MethodPost)
	api.HandleFunc("/cart/{productId}", h.authenticate(h.removeCartItem)).Methods(http.MethodDelete)

	api.HandleFunc("/orders", h.authenticate(h.checkout)).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.authenticate(h.listMyOrders)).Methods(http.MethodGet)

	api.HandleFunc("/admin/orders", h.adminOnly(h.adminListOrders)).Methods(http.MethodGet)
	api.HandleFunc("/admin/orders/{id}", h.adminOnly(h.adminGetOrder)).Methods(http.MethodGet)
	api.HandleFunc("/admin/orders/{id}", h.adminOnly(h.adminUpdateOrder)).Methods(http.MethodPut)
	api.HandleFunc("/admin/orders/{id}", h.adminOnly(h.adminDeleteOrder)).Methods(http.MethodDelete)

	api.HandleFunc("/admin/users", h.adminOnly(h.adminListUsers)).Methods(http.MethodGet)
	api.HandleFunc("/admin/users/{id}", h.adminOnly(h.adminGetUser)).Methods(http.MethodGet)
	api.HandleFunc("/admin/users/{id}", h.adminOnly(h.adminUpdateUser)).Methods(http.MethodPut)
	api.HandleFunc("/admin/users/{id}", h.adminOnly(h.adminDeleteUser)).Methods(http.MethodDelete)

	return r
}
