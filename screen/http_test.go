package screen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primecut/liveboard/order"
	"github.com/primecut/liveboard/pickup"
	"github.com/primecut/liveboard/screen"
	"github.com/primecut/liveboard/session"
)

func newTestServer(t *testing.T, role session.Role, fb *fakeBackend) (*httptest.Server, *screen.Component) {
	t.Helper()

	c := newComponent(t, role, fb)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop(time.Second) })

	mux := http.NewServeMux()
	screen.NewHTTPHandler(c, nil).RegisterHTTPHandlers(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, c
}

func waitForOrder(t *testing.T, c *screen.Component, orderID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := c.State().LaneOf(orderID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHTTP_Board(t *testing.T) {
	fb := &fakeBackend{}
	fb.setOrders([]order.Order{
		{ID: "ord-1", Status: order.StatusPending},
		{ID: "ord-2", Status: order.StatusReady},
	})

	srv, c := newTestServer(t, session.RoleStore, fb)
	waitForOrder(t, c, "ord-1")

	resp, err := http.Get(srv.URL + "/api/board")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap struct {
		Authenticated bool                     `json:"authenticated"`
		Lanes         map[string][]order.Order `json:"lanes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))

	assert.True(t, snap.Authenticated)
	// Every lane key is present even when empty, so the renderer never
	// special-cases a missing column.
	require.Len(t, snap.Lanes, len(order.Lanes))
	assert.Len(t, snap.Lanes[string(order.LaneNew)], 1)
	assert.Len(t, snap.Lanes[string(order.LaneAwaitingPickup)], 1)
}

func TestHTTP_BoardMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, session.RoleStore, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/api/board", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTP_RefreshAccepted(t *testing.T) {
	fb := &fakeBackend{}
	srv, c := newTestServer(t, session.RoleStore, fb)

	require.Eventually(t, func() bool {
		fetches, _, _ := fb.counts()
		return fetches >= 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		fetches, _, _ := fb.counts()
		return fetches >= 2
	}, 2*time.Second, 10*time.Millisecond)
	_ = c
}

func TestHTTP_AdvanceOnManagerScreen(t *testing.T) {
	fb := &fakeBackend{}
	fb.setOrders([]order.Order{{ID: "ord-1", Status: order.StatusPending}})

	srv, c := newTestServer(t, session.RoleManager, fb)
	waitForOrder(t, c, "ord-1")

	resp, err := http.Post(srv.URL+"/api/orders/ord-1/advance", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, advances, _ := fb.counts()
	assert.Equal(t, 1, advances)
}

func TestHTTP_AdvanceForbiddenOnStoreScreen(t *testing.T) {
	fb := &fakeBackend{}
	fb.setOrders([]order.Order{{ID: "ord-1", Status: order.StatusPending}})

	srv, c := newTestServer(t, session.RoleStore, fb)
	waitForOrder(t, c, "ord-1")

	resp, err := http.Post(srv.URL+"/api/orders/ord-1/advance", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	var errResp screen.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "manager_only", errResp.Error)
}

func TestHTTP_AdvanceUnknownOrder(t *testing.T) {
	srv, _ := newTestServer(t, session.RoleManager, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/api/orders/missing/advance", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_PickupToken(t *testing.T) {
	fb := &fakeBackend{}
	fb.setOrders([]order.Order{{ID: "ord-20260830-771442", Status: order.StatusReady}})

	srv, c := newTestServer(t, session.RoleManager, fb)
	waitForOrder(t, c, "ord-20260830-771442")

	resp, err := http.Get(srv.URL + "/api/orders/ord-20260830-771442/pickup-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token pickup.Token
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	assert.Equal(t, "ord-20260830-771442", token.OrderID)
	assert.Equal(t, "771442", token.Code)
}

func TestHTTP_PickupConfirm(t *testing.T) {
	fb := &fakeBackend{}
	fb.setOrders([]order.Order{{ID: "ord-1", Status: order.StatusReady}})

	srv, c := newTestServer(t, session.RoleManager, fb)
	waitForOrder(t, c, "ord-1")

	resp, err := http.Post(srv.URL+"/api/orders/ord-1/pickup-confirm", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, _, confirms := fb.counts()
	assert.Equal(t, 1, confirms)
}

func TestHTTP_UnknownAction(t *testing.T) {
	srv, _ := newTestServer(t, session.RoleManager, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/api/orders/ord-1/explode", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_Healthz(t *testing.T) {
	fb := &fakeBackend{}
	srv, c := newTestServer(t, session.RoleStore, fb)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health screen.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.True(t, health.Healthy)
	assert.True(t, health.Authenticated)

	// A stopped screen reports unavailable.
	require.NoError(t, c.Stop(time.Second))

	resp2, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}
