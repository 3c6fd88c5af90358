package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/xenking/storefront-api/internal/domain/cart"
)

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// cartItemResponse is a raw cart entry: product reference plus the price
// snapshot captured at add time.
type cartItemResponse struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type cartResponse struct {
	UserID    string             `json:"userId"`
	Items     []cartItemResponse `json:"items"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// resolvedCartItemResponse additionally carries the live catalog record.
// Product is null when the referenced product has been deleted.
type resolvedCartItemResponse struct {
	Product  *productResponse `json:"product"`
	Quantity int              `json:"quantity"`
	Price    float64          `json:"price"`
}

type cartViewResponse struct {
	UserID    string                     `json:"userId"`
	Items     []resolvedCartItemResponse `json:"items"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		}
	}
	return cartResponse{UserID: c.UserID, Items: items, UpdatedAt: c.UpdatedAt}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	view, err := h.carts.Get(r.Context(), identity.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	items := make([]resolvedCartItemResponse, len(view.Items))
	for i, it := range view.Items {
		item := resolvedCartItemResponse{
			Quantity: it.Quantity,
			Price:    it.Price.InexactFloat64(),
		}
		if it.Product != nil {
			p := toProductResponse(it.Product)
			item.Product = &p
		}
		items[i] = item
	}

	respondJSON(w, http.StatusOK, cartViewResponse{
		UserID:    view.UserID,
		Items:     items,
		UpdatedAt: view.UpdatedAt,
	})
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "productId is required")
		return
	}

	c, err := h.carts.AddItem(r.Context(), identity.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	c, err := h.carts.RemoveItem(r.Context(), identity.UserID, mux.Vars(r)["productId"])
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}
