// Package handler exposes the order core over thin JSON endpoints. It owns
// no business rules: requests are decoded, identity headers are parsed, and
// domain errors are mapped to HTTP statuses.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nveliz/tienda-backend/internal/domain/order"
)

// Handler wires the lifecycle engine and line-item manager to HTTP routes.
type Handler struct {
	orders *order.Service
	items  *order.ItemService
}

// New constructs a Handler with the required domain dependencies.
func New(orders *order.Service, items *order.ItemService) *Handler {
	return &Handler{orders: orders, items: items}
}

// Routes returns the mux with all order endpoints registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("POST /orders/{id}/confirm", h.confirmOrder)
	mux.HandleFunc("POST /orders/{id}/pay", h.payOrder)
	mux.HandleFunc("POST /orders/{id}/finalize", h.finalizeOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("PUT /orders/{id}/shipping", h.updateShipping)
	mux.HandleFunc("POST /orders/{id}/items", h.addItem)
	mux.HandleFunc("PATCH /orders/{id}/items/{itemID}", h.updateItem)
	mux.HandleFunc("DELETE /orders/{id}/items/{itemID}", h.removeItem)

	return mux
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Code: status, Message: msg})
}

// writeDomainError maps domain failures to HTTP statuses: missing entities to
// 404, ownership violations to 403, malformed input to 422, and state or
// stock conflicts to 409.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, order.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())

	case errors.Is(err, order.ErrEmptyOrder):
		writeError(w, r, http.StatusBadRequest, err.Error())

	case errors.Is(err, order.ErrOrderLocked),
		errors.Is(err, order.ErrOrderClosed),
		errors.Is(err, order.ErrAlreadyConfirmed),
		errors.Is(err, order.ErrNotConfirmed),
		errors.Is(err, order.ErrAlreadyPaid),
		errors.Is(err, order.ErrNotPaid),
		errors.Is(err, order.ErrAlreadyCancelled):
		writeError(w, r, http.StatusConflict, err.Error())

	default:
		var (
			vnf *order.VariantNotFoundError
			vd  *order.VariantDisabledError
			iq  *order.InvalidQuantityError
			is  *order.InsufficientStockError
		)
		switch {
		case errors.As(err, &vnf):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &vd):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &iq):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &is):
			writeError(w, r, http.StatusConflict, err.Error())
		default:
			zctx.From(r.Context()).Error("internal error", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
	}
}
