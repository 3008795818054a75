package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwaseano/iino-yogatest/internal/blob"
	"github.com/iwaseano/iino-yogatest/internal/catalog"
	"github.com/iwaseano/iino-yogatest/internal/clock"
	httphandler "github.com/iwaseano/iino-yogatest/internal/http"
	"github.com/iwaseano/iino-yogatest/internal/observability"
	"github.com/iwaseano/iino-yogatest/internal/reservations"
	"github.com/iwaseano/iino-yogatest/internal/rules"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	clk := clock.Fixed(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	cat := catalog.Default()
	store := reservations.NewStore(blob.NewMemoryStore(), clk, observability.NopLogger())
	svc := reservations.NewService(store, rules.NewEngine(cat), cat, nil, clk, observability.NopLogger())

	r := httphandler.SetupRouter(httphandler.NewHandlers(svc), observability.NopLogger(), nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func validPayload() map[string]string {
	return map[string]string{
		"class_id":       "hatha",
		"booking_date":   "2026-03-04",
		"customer_name":  "Tanaka Taro",
		"customer_email": "tanaka@example.com",
		"customer_phone": "090-1234-5678",
	}
}

func TestCreateReservationEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/reservations", validPayload())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	reservation, ok := body["reservation"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, reservation["id"])
	assert.Equal(t, "confirmed", reservation["status"])
}

func TestCreateReservationEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	payload := validPayload()
	payload["customer_email"] = "not-an-email"
	resp := postJSON(t, srv.URL+"/api/reservations", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "customer_email", body["field"])
}

func TestCreateReservationEndpointDuplicate(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/reservations", validPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/reservations", validPayload())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
}

func TestGetReservationEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := decodeBody(t, postJSON(t, srv.URL+"/api/reservations", validPayload()))
	id := created["reservation"].(map[string]interface{})["id"].(string)

	resp, err := http.Get(srv.URL + "/api/reservations/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, id, body["reservation"].(map[string]interface{})["id"])

	resp, err = http.Get(srv.URL + "/api/reservations/no-such-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchReservationsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/reservations", validPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/reservations/search?email=tanaka%40example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])

	resp, err = http.Get(srv.URL + "/api/reservations/search")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelReservationEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := decodeBody(t, postJSON(t, srv.URL+"/api/reservations", validPayload()))
	id := created["reservation"].(map[string]interface{})["id"].(string)
	cancelURL := fmt.Sprintf("%s/api/reservations/%s/cancel", srv.URL, id)

	resp := postJSON(t, cancelURL, map[string]string{"email": "suzuki@example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, cancelURL, map[string]string{"email": "tanaka@example.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "cancelled", body["reservation"].(map[string]interface{})["status"])

	resp = postJSON(t, cancelURL, map[string]string{"email": "tanaka@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestClassesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/classes")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	schedules, ok := body["schedules"].([]interface{})
	require.True(t, ok)
	assert.Len(t, schedules, 3)
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/classes/hatha/availability?date=2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	avail := body["availability"].(map[string]interface{})
	assert.Equal(t, float64(12), avail["capacity"])

	resp, err = http.Get(srv.URL + "/api/classes/aerial/availability?date=2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/reservations", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
}
