package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nveliz/tienda-backend/internal/domain/order"
)

type orderLineRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderLineRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
}

type lineItemResponse struct {
	ID        string  `json:"id"`
	VariantID string  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Enabled   bool    `json:"enabled"`
}

type orderResponse struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id"`
	Items           []lineItemResponse `json:"items"`
	Total           float64            `json:"total"`
	Status          string             `json:"status"`
	Paid            bool               `json:"paid"`
	Visible         bool               `json:"visible"`
	ShippingAddress string             `json:"shipping_address,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]lineItemResponse, len(o.Items))
	for i, li := range o.Items {
		items[i] = lineItemResponse{
			ID:        li.ID.String(),
			VariantID: li.VariantID.String(),
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.InexactFloat64(),
			Enabled:   li.Enabled,
		}
	}
	return orderResponse{
		ID:              o.ID.String(),
		OwnerID:         o.OwnerID.String(),
		Items:           items,
		Total:           o.Total.InexactFloat64(),
		Status:          string(o.Status),
		Paid:            o.Paid,
		Visible:         o.Visible,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	lines := make([]order.CreateLine, len(req.Items))
	for i, item := range req.Items {
		variantID, err := uuid.Parse(item.VariantID)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid variant id")
			return
		}
		lines[i] = order.CreateLine{VariantID: variantID, Quantity: item.Quantity}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		OwnerID:         id.UserID,
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Hidden orders stay readable for administrators only.
	if !o.Visible && !id.admin() {
		writeError(w, r, http.StatusNotFound, order.ErrOrderNotFound.Error())
		return
	}
	if o.OwnerID != id.UserID && !id.admin() {
		writeError(w, r, http.StatusForbidden, order.ErrForbidden.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	page := pageFromQuery(r)

	// Customers list their own orders; the status view is administrative.
	status := r.URL.Query().Get("status")
	if status == "" {
		orders, total, err := h.orders.ListByOwner(r.Context(), id.UserID, page)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeOrderList(w, r, orders, total, page)
		return
	}

	if !id.admin() {
		writeError(w, r, http.StatusForbidden, "administrator role required")
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	parsed, err := order.ToStatus(status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	orders, total, err := h.orders.ListByStatus(r.Context(), parsed, f, page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrderList(w, r, orders, total, page)
}

func writeOrderList(w http.ResponseWriter, r *http.Request, orders []order.Order, total int, page order.Page) {
	page.Normalize()
	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page.Number,
		Size:   page.Size,
	}
	for i := range orders {
		resp.Orders[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.orders.Confirm)
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.orders.Pay)
}

func (h *Handler) finalizeOrder(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.orders.Finalize)
}

// lifecycleOp factors the administrative transitions that differ only in the
// engine method invoked.
func (h *Handler) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (*order.Order, error)) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := op(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Cancel(r.Context(), orderID, id.UserID, id.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

type updateShippingRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

func (h *Handler) updateShipping(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := h.orders.UpdateShipping(r.Context(), orderID, req.ShippingAddress, id.UserID, id.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(updated))
}

func pageFromQuery(r *http.Request) order.Page {
	q := r.URL.Query()
	page := order.Page{}
	if v := q.Get("page"); v != "" {
		page.Number = atoiOrZero(v)
	}
	if v := q.Get("size"); v != "" {
		page.Size = atoiOrZero(v)
	}
	return page
}

func filterFromQuery(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	var f order.Filter

	if v := q.Get("sort"); v != "" {
		key, err := order.ToSortKey(v)
		if err != nil {
			return f, err
		}
		f.SortBy = key
	}
	if v := q.Get("dir"); v != "" {
		dir, err := order.ToSortDirection(v)
		if err != nil {
			return f, err
		}
		f.SortDir = dir
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.CreatedAfter = &t
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.CreatedBefore = &t
	}
	return f, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
