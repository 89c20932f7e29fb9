//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createOrder(t *testing.T, owner, variantID uuid.UUID, qty int) orderResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{
			{"variant_id": variantID.String(), "quantity": qty},
		},
		"shipping_address": "Calle Falsa 123",
	}, owner, "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[orderResponse](t, resp)
}

func lifecycle(t *testing.T, orderID string, op string, actor uuid.UUID, role string) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodPost, "/orders/"+orderID+"/"+op, nil, actor, role)
}

func TestOrderLifecycle(t *testing.T) {
	owner := seedUser(t, "customer")
	admin := seedUser(t, "admin")
	variantID := seedVariant(t, "150.00", 5)

	o := createOrder(t, owner, variantID, 3)
	assert.Equal(t, "pending", o.Status)
	assert.InDelta(t, 450.0, o.Total, 0.001)
	assert.Equal(t, 5, variantStock(t, variantID), "creation reserves nothing")

	resp := lifecycle(t, o.ID, "confirm", admin, "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.Equal(t, 2, variantStock(t, variantID), "confirmation reserves stock")

	resp = lifecycle(t, o.ID, "pay", admin, "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeJSON[orderResponse](t, resp).Paid)

	resp = lifecycle(t, o.ID, "finalize", admin, "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finalized", decodeJSON[orderResponse](t, resp).Status)

	assert.EqualValues(t, 3, productSales(t, variantID), "finalization counts sales")
	assert.Equal(t, 2, variantStock(t, variantID), "finalization keeps the reservation")
}

func TestOrderCancelRestoresStock(t *testing.T) {
	owner := seedUser(t, "customer")
	admin := seedUser(t, "admin")
	variantID := seedVariant(t, "80.00", 2)

	o := createOrder(t, owner, variantID, 2)

	resp := lifecycle(t, o.ID, "confirm", admin, "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 0, variantStock(t, variantID))

	resp = lifecycle(t, o.ID, "cancel", owner, "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.False(t, cancelled.Visible)

	assert.Equal(t, 2, variantStock(t, variantID), "cancellation releases the reservation")

	resp = lifecycle(t, o.ID, "cancel", owner, "customer")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 2, variantStock(t, variantID), "repeat cancellation must not release twice")
}

func TestConfirmInsufficientStockRollsBack(t *testing.T) {
	owner := seedUser(t, "customer")
	admin := seedUser(t, "admin")
	plenty := seedVariant(t, "10.00", 10)
	scarce := seedVariant(t, "10.00", 5)

	resp := doRequest(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{
			{"variant_id": plenty.String(), "quantity": 4},
			{"variant_id": scarce.String(), "quantity": 4},
		},
	}, owner, "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeJSON[orderResponse](t, resp)

	// A competing order drains the scarce variant first.
	otherOwner := seedUser(t, "customer")
	other := createOrder(t, otherOwner, scarce, 3)
	resp = lifecycle(t, other.ID, "confirm", admin, "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 2, variantStock(t, scarce))

	resp = lifecycle(t, o.ID, "confirm", admin, "admin")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, http.StatusConflict, body.Code)

	assert.Equal(t, 10, variantStock(t, plenty), "failed confirmation must not hold stock")
	assert.Equal(t, 2, variantStock(t, scarce))

	resp = doRequest(t, http.MethodGet, "/orders/"+o.ID, nil, owner, "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", decodeJSON[orderResponse](t, resp).Status)
}

func TestItemManagement(t *testing.T) {
	owner := seedUser(t, "customer")
	v1 := seedVariant(t, "100.00", 10)
	v2 := seedVariant(t, "40.00", 10)

	o := createOrder(t, owner, v1, 2)

	resp := doRequest(t, http.MethodPost, "/orders/"+o.ID+"/items", map[string]any{
		"variant_id": v2.String(),
		"quantity":   1,
	}, owner, "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decodeJSON[struct {
		ID string `json:"id"`
	}](t, resp)

	resp = doRequest(t, http.MethodGet, "/orders/"+o.ID, nil, owner, "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[orderResponse](t, resp)
	assert.Len(t, got.Items, 2)
	assert.InDelta(t, 240.0, got.Total, 0.001)

	resp = doRequest(t, http.MethodPatch, "/orders/"+o.ID+"/items/"+item.ID, map[string]any{
		"quantity": 3,
	}, owner, "customer")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, "/orders/"+o.ID+"/items/"+item.ID, nil, owner, "customer")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/orders/"+o.ID, nil, owner, "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decodeJSON[orderResponse](t, resp)
	assert.Len(t, got.Items, 1)
	assert.InDelta(t, 200.0, got.Total, 0.001)
}

func TestIdentityRequired(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/orders", nil, uuid.Nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestListOrders(t *testing.T) {
	owner := seedUser(t, "customer")
	admin := seedUser(t, "admin")
	variantID := seedVariant(t, "10.00", 100)

	for range 3 {
		createOrder(t, owner, variantID, 1)
	}

	resp := doRequest(t, http.MethodGet, "/orders?page=1&size=2", nil, owner, "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeJSON[orderListResponse](t, resp)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Orders, 2)
	assert.Equal(t, 2, list.Size)

	resp = doRequest(t, http.MethodGet, "/orders?status=pending", nil, owner, "customer")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/orders?status=pending&sort=total&dir=asc", nil, admin, "admin")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
