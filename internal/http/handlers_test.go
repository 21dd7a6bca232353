package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/notify"
	"orderdesk/internal/repository/memory"
	"orderdesk/internal/service"
)

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := service.New(memory.New(), notify.LogReceiptSink{}, service.Options{
		MaxAttempts:         3,
		TxTimeout:           time.Second,
		MaterialCategoryIDs: []string{"materials"},
	})
	t.Cleanup(func() { _ = svc.WaitReceipts(context.Background()) })
	return &testServer{t: t, router: NewRouter(NewHandler(svc))}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed creates a milk material product and a latte that consumes it.
func (s *testServer) seed() (latteID, milkID string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/products", `{
		"name": "Milk",
		"categoryId": "materials",
		"variants": [{"name": "Default", "unitPrice": 0, "quantityOnHand": 100, "materials": []}]
	}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	milkID = decodeBody(s.t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/products", `{
		"name": "Latte",
		"categoryId": "drinks",
		"variants": [{
			"name": "Large",
			"unitPrice": 5,
			"quantityOnHand": 10,
			"materials": [{"id": "`+milkID+`", "unitCost": 0.55, "quantityPerUse": 2}]
		}]
	}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	latteID = decodeBody(s.t, rec)["id"].(string)
	return latteID, milkID
}

func TestPlaceOrderFlow(t *testing.T) {
	srv := newTestServer(t)
	latteID, milkID := srv.seed()

	rec := srv.do(http.MethodPost, "/api/v1/orders", `{
		"items": [{"productId": "`+latteID+`", "variantName": "Large", "quantity": 3, "unitPrice": 5}],
		"paymentMethod": "cash",
		"total": 15
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	orderID, ok := body["orderId"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, orderID)
	assert.Equal(t, "3.3", body["productionCost"])

	rec = srv.do(http.MethodGet, "/api/v1/orders/"+orderID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cash", decodeBody(t, rec)["paymentMethod"])

	rec = srv.do(http.MethodGet, "/api/v1/products/"+milkID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	variants := decodeBody(t, rec)["variants"].([]any)
	assert.EqualValues(t, 94, variants[0].(map[string]any)["quantityOnHand"])

	today := time.Now().UTC().Format(time.DateOnly)
	rec = srv.do(http.MethodGet, "/api/v1/orders?start="+today+"&end="+today, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = srv.do(http.MethodGet, "/api/v1/stock/logs?productId="+milkID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)
	latteID, _ := srv.seed()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "insufficient stock",
			method:     http.MethodPost,
			path:       "/api/v1/orders",
			body:       `{"items":[{"productId":"` + latteID + `","variantName":"Large","quantity":11}],"paymentMethod":"cash","total":55}`,
			wantStatus: http.StatusConflict,
			wantKind:   "InsufficientStock",
		},
		{
			name:       "unknown product",
			method:     http.MethodPost,
			path:       "/api/v1/orders",
			body:       `{"items":[{"productId":"nope","variantName":"Large","quantity":1}],"paymentMethod":"cash","total":5}`,
			wantStatus: http.StatusNotFound,
			wantKind:   "NotFound",
		},
		{
			name:       "empty order",
			method:     http.MethodPost,
			path:       "/api/v1/orders",
			body:       `{"items":[],"paymentMethod":"cash","total":0}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "ValidationError",
		},
		{
			name:       "unknown field",
			method:     http.MethodPost,
			path:       "/api/v1/orders",
			body:       `{"items":[],"bogus":true}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "ValidationError",
		},
		{
			name:       "negative adjustment",
			method:     http.MethodPost,
			path:       "/api/v1/stock/adjustments",
			body:       `{"productId":"` + latteID + `","variantName":"Large","quantityDelta":-11}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "InvalidState",
		},
		{
			name:       "missing range start",
			method:     http.MethodGet,
			path:       "/api/v1/orders?end=2024-05-10",
			wantStatus: http.StatusBadRequest,
			wantKind:   "ValidationError",
		},
		{
			name:       "inverted range",
			method:     http.MethodGet,
			path:       "/api/v1/orders?start=2024-05-10&end=2024-05-01",
			wantStatus: http.StatusBadRequest,
			wantKind:   "ValidationError",
		},
		{
			name:       "missing customer",
			method:     http.MethodGet,
			path:       "/api/v1/customers/ghost",
			wantStatus: http.StatusNotFound,
			wantKind:   "NotFound",
		},
		{
			name:       "bad log limit",
			method:     http.MethodGet,
			path:       "/api/v1/stock/logs?limit=-1",
			wantStatus: http.StatusBadRequest,
			wantKind:   "ValidationError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestCategoriesReorder(t *testing.T) {
	srv := newTestServer(t)

	ids := make([]string, 0, 3)
	for _, name := range []string{"Coffee", "Tea", "Cakes"} {
		rec := srv.do(http.MethodPost, "/api/v1/categories", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, decodeBody(t, rec)["id"].(string))
	}

	rec := srv.do(http.MethodPost, "/api/v1/categories/reorder",
		`{"assignments":[{"id":"`+ids[0]+`","position":1},{"id":"`+ids[1]+`","position":0}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = srv.do(http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	positions := map[string]float64{}
	for _, item := range decodeBody(t, rec)["items"].([]any) {
		c := item.(map[string]any)
		positions[c["id"].(string)] = c["position"].(float64)
	}
	assert.Equal(t, map[string]float64{ids[0]: 1, ids[1]: 0, ids[2]: 2}, positions)
}

func TestCustomerRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/v1/customers", `{"name":"Ada","phone":"555-0100"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["id"].(string)

	rec = srv.do(http.MethodGet, "/api/v1/customers/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Ada", body["name"])
	assert.EqualValues(t, 0, body["ordersCount"])
}

func TestExportStockLogs(t *testing.T) {
	srv := newTestServer(t)
	latteID, _ := srv.seed()

	rec := srv.do(http.MethodPost, "/api/v1/stock/adjustments",
		`{"productId":"`+latteID+`","variantName":"Large","quantityDelta":4,"notes":"delivery"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodGet, "/api/v1/stock/logs/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestStatusForKind(t *testing.T) {
	tests := map[string]int{
		"ValidationError":   http.StatusBadRequest,
		"NotFound":          http.StatusNotFound,
		"InsufficientStock": http.StatusConflict,
		"InvalidState":      http.StatusUnprocessableEntity,
		"Conflict":          http.StatusConflict,
		"Timeout":           http.StatusGatewayTimeout,
		"Internal":          http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusForKind(kind), kind)
	}
}

func TestParseOptionalTimeEndOfDay(t *testing.T) {
	got, err := parseOptionalTime("2024-05-10", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 23, 59, 59, 999999999, time.UTC), *got)

	got, err = parseOptionalTime("2024-05-10T08:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC), got.UTC())

	_, err = parseOptionalTime("yesterday", false)
	assert.Error(t, err)
}
