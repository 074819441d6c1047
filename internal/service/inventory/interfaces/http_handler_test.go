package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"nexus-inventory/internal/service/inventory/application"
	"nexus-inventory/internal/service/inventory/domain"
	"nexus-inventory/internal/service/inventory/infrastructure"
)

type noopNotifier struct{}

func (noopNotifier) Publish(ctx context.Context, event *domain.ReservationEvent) error { return nil }

func (noopNotifier) Close() error { return nil }

type brokenStore struct{}

func (brokenStore) Backend() string { return "dynamodb" }

func (brokenStore) Ping(ctx context.Context) error {
	return domain.NewStoreError("dynamodb", "describe_table", errors.New("timeout"))
}

func (brokenStore) Apply(ctx context.Context, demand domain.AggregatedDemand) (*domain.ApplyResult, error) {
	return nil, domain.NewStoreError("dynamodb", "transact_write_items", errors.New("timeout"))
}

func (brokenStore) Close() error { return nil }

func newTestMux(store domain.Store) *http.ServeMux {
	svc := application.NewReservationService(store, noopNotifier{}, otel.Tracer("test"))
	mux := http.NewServeMux()
	NewInventoryHandler(svc).RegisterRoutes(mux)
	return mux
}

func postApply(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/inventory/apply", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestApplyEndpoint_Success(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	store.SetStock("SKU-1", 5)
	mux := newTestMux(store)

	rec := postApply(t, mux, `{"order_id":"o1","items":[{"sku":"SKU-1","qty":3}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp application.ReserveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "o1", resp.OrderID)
	assert.Equal(t, domain.StatusInventoryUpdated, resp.Status)
	assert.Equal(t, 2, store.Stock("SKU-1"))
}

func TestApplyEndpoint_OutOfStockIsSuccessShaped(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	store.SetStock("SKU-1", 2)
	mux := newTestMux(store)

	rec := postApply(t, mux, `{"order_id":"o2","items":[{"sku":"SKU-1","qty":3}]}`)

	// 缺货是正常业务结果：HTTP 200，状态标记失败
	require.Equal(t, http.StatusOK, rec.Code)
	var resp application.ReserveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusInventoryFailed, resp.Status)
	assert.Equal(t, 2, store.Stock("SKU-1"))
}

func TestApplyEndpoint_EmptyItemsRejected(t *testing.T) {
	mux := newTestMux(infrastructure.NewMemoryStore())

	rec := postApply(t, mux, `{"order_id":"o3","items":[]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items required")
}

func TestApplyEndpoint_NonPositiveOnlyRejected(t *testing.T) {
	mux := newTestMux(infrastructure.NewMemoryStore())

	rec := postApply(t, mux, `{"order_id":"o4","items":[{"sku":"SKU-1","qty":0}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyEndpoint_MalformedBodyRejected(t *testing.T) {
	mux := newTestMux(infrastructure.NewMemoryStore())

	rec := postApply(t, mux, `{"order_id":`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestApplyEndpoint_MethodNotAllowed(t *testing.T) {
	mux := newTestMux(infrastructure.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/inventory/apply", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestApplyEndpoint_StoreFailureIsServiceUnavailable(t *testing.T) {
	mux := newTestMux(brokenStore{})

	rec := postApply(t, mux, `{"order_id":"o5","items":[{"sku":"SKU-1","qty":1}]}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventory store unavailable")
}

func TestHealthz_OK(t *testing.T) {
	mux := newTestMux(infrastructure.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		OK      bool   `json:"ok"`
		Backend string `json:"backend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "memory", resp.Backend)
}

func TestHealthz_Degraded(t *testing.T) {
	mux := newTestMux(brokenStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp struct {
		OK      bool   `json:"ok"`
		Backend string `json:"backend"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "dynamodb", resp.Backend)
	assert.Equal(t, "store unavailable", resp.Error)
}
