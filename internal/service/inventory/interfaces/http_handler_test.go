package interfaces

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/infrastructure"
)

func newTestServer(t *testing.T) (*httptest.Server, *infrastructure.MemoryReservationRepository) {
	t.Helper()
	repo := infrastructure.NewMemoryReservationRepository()
	service := application.NewReservationService(repo, otel.Tracer("test"), 15*time.Minute, nil, nil, nil)

	mux := http.NewServeMux()
	NewInventoryHandler(service).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestReserveEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "", 5)

	resp := postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 3, UserID: "u1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body application.ReserveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ReservationID)
	assert.Equal(t, int64(2), body.AvailableStock)
}

func TestReserveEndpointInsufficientStock(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "", 2)

	resp := postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 3, SessionID: "s1",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(2), body["available_stock"])
}

func TestReserveEndpointValidation(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "", 5)

	resp := postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 0, UserID: "u1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "ghost", Quantity: 1, UserID: "u1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommitEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "", 5)

	resp := postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 3, UserID: "u1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reserved application.ReserveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reserved))

	resp = postJSON(t, server.URL+"/commit", application.CommitRequest{
		ReservationID: reserved.ReservationID, OrderID: "O1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), repo.PhysicalStock("p1", ""))

	// 重复提交是状态冲突
	resp = postJSON(t, server.URL+"/commit", application.CommitRequest{
		ReservationID: reserved.ReservationID, OrderID: "O2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 缺少 order_id 是调用方错误
	resp = postJSON(t, server.URL+"/commit", application.CommitRequest{
		ReservationID: reserved.ReservationID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReleaseEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "", 5)

	resp := postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 2, UserID: "u1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reserved application.ReserveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reserved))

	resp = postJSON(t, server.URL+"/release", application.ReleaseRequest{
		ReservationID: reserved.ReservationID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, server.URL+"/release", application.ReleaseRequest{ReservationID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtendEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "", 5)

	resp := postJSON(t, server.URL+"/reserve", application.ReserveRequest{
		ProductID: "p1", Quantity: 1, UserID: "u1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reserved application.ReserveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reserved))

	resp = postJSON(t, server.URL+"/extend", application.ExtendRequest{
		ReservationID: reserved.ReservationID, AdditionalMinutes: 10,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, server.URL+"/extend", application.ExtendRequest{
		ReservationID: reserved.ReservationID, AdditionalMinutes: 0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAvailableStockEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	repo.SetStock("p1", "red", 7)

	resp, err := http.Get(server.URL + "/available_stock?product_id=p1&variant_id=red")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body application.AvailableStockResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "p1", body.ProductID)
	assert.Equal(t, "red", body.VariantID)
	assert.Equal(t, int64(7), body.AvailableStock)

	resp, err = http.Get(server.URL + "/available_stock")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/available_stock?product_id=ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
