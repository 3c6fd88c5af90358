package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/xenking/storefront-api/internal/domain/order"
)

type orderUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// expandedOrderItemResponse is an order line item joined with the live
// catalog record. Price is the snapshot frozen at checkout; productName and
// productPrice reflect the catalog now and stay empty for deleted products.
type expandedOrderItemResponse struct {
	ProductID    string  `json:"productId"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	ProductName  string  `json:"productName,omitempty"`
	ProductPrice float64 `json:"productPrice,omitempty"`
}

type expandedOrderResponse struct {
	ID              string                      `json:"id"`
	User            *orderUserResponse          `json:"user"`
	Items           []expandedOrderItemResponse `json:"items"`
	Total           float64                     `json:"total"`
	ShippingAddress shippingAddressDTO          `json:"shippingAddress"`
	PaymentStatus   string                      `json:"paymentStatus"`
	PaymentMethod   string                      `json:"paymentMethod"`
	CreatedAt       time.Time                   `json:"createdAt"`
}

type orderPageResponse struct {
	Orders []expandedOrderResponse `json:"orders"`
	Total  int                     `json:"total"`
	Page   int                     `json:"page"`
	Pages  int                     `json:"pages"`
}

type updateOrderRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

func toExpandedOrderResponse(d *order.Detail) expandedOrderResponse {
	items := make([]expandedOrderItemResponse, len(d.Items))
	for i, it := range d.Items {
		items[i] = expandedOrderItemResponse{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			Price:        it.Price.InexactFloat64(),
			ProductName:  it.ProductName,
			ProductPrice: it.ProductPrice.InexactFloat64(),
		}
	}

	resp := expandedOrderResponse{
		ID:    d.ID,
		Items: items,
		Total: d.Total.InexactFloat64(),
		ShippingAddress: shippingAddressDTO{
			FullName:   d.ShippingAddress.FullName,
			Address:    d.ShippingAddress.Address,
			City:       d.ShippingAddress.City,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		PaymentStatus: string(d.PaymentStatus),
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     d.CreatedAt,
	}
	if d.User != nil {
		resp.User = &orderUserResponse{
			ID:       d.User.ID,
			Username: d.User.Username,
			Email:    d.User.Email,
		}
	}
	return resp
}

// parseOrderFilter reads the admin listing query parameters. Invalid status,
// date, or sort values are rejected rather than silently ignored.
func parseOrderFilter(r *http.Request) (order.Filter, string) {
	var f order.Filter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			return f, err.Error()
		}
		f.Status = &status
	}
	if raw := q.Get("startDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return f, "invalid startDate"
		}
		f.StartDate = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return f, "invalid endDate"
		}
		// A bare date means the whole day, inclusive.
		if len(raw) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.EndDate = &t
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return f, "invalid page"
		}
		f.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return f, "invalid limit"
		}
		f.Limit = limit
	}
	if raw := q.Get("sort"); raw != "" {
		switch s := order.Sort(raw); s {
		case order.SortNewest, order.SortOldest, order.SortTotalAsc, order.SortTotalDesc:
			f.Sort = s
		default:
			return f, "invalid sort"
		}
	}
	return f, ""
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	filter, errMsg := parseOrderFilter(r)
	if errMsg != "" {
		respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	page, err := h.orders.AdminList(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	orders := make([]expandedOrderResponse, len(page.Orders))
	for i := range page.Orders {
		orders[i] = toExpandedOrderResponse(&page.Orders[i])
	}
	respondJSON(w, http.StatusOK, orderPageResponse{
		Orders: orders,
		Total:  page.Total,
		Page:   page.Page,
		Pages:  page.Pages,
	})
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.AdminGet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toExpandedOrderResponse(d))
}

func (h *Handler) adminUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.PaymentStatus)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "order updated",
		"order":   toExpandedOrderResponse(d),
	})
}

func (h *Handler) adminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "order deleted successfully",
	})
}
