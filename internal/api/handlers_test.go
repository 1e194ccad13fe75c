package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/allocation/internal/auth"
	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/infrastructure/store"
	"github.com/example/allocation/internal/query"
	"github.com/example/allocation/internal/readmodel"
	"github.com/example/allocation/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPublisher struct{}

func (nopPublisher) PublishEvent(ctx context.Context, event domain.Event) error { return nil }

type nopNotifier struct{}

func (nopNotifier) SendOutOfStockAlert(sku string) error { return nil }

// operatorPassword hashes slowly, so share one hash across the package.
const operatorPassword = "correct-horse-battery"

var operatorHash = func() string {
	hash, err := auth.HashOperatorPassword(operatorPassword)
	if err != nil {
		panic(err)
	}
	return hash
}()

type testServer struct {
	router http.Handler
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	jwtService := auth.NewJWTService("test-secret-key-at-least-32-chars!!", time.Hour)
	memStore := store.NewMemoryStore()
	views := store.NewMemoryViewStore()
	bus := service.NewBus(service.NewHandlers(nopPublisher{}, nopNotifier{}, views))

	handlers := NewHandlers(bus, func() service.UnitOfWork {
		return memStore.NewUnitOfWork()
	}, query.NewHandler(views), jwtService, operatorHash)

	token, _, err := jwtService.GenerateToken("ops@example.com", "operator")
	require.NoError(t, err)

	return &testServer{router: NewRouter(handlers, jwtService), token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""

	w := srv.do(t, http.MethodPost, "/auth/login", map[string]string{
		"operator": "ops@example.com", "password": operatorPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])

	w = srv.do(t, http.MethodPost, "/auth/login", map[string]string{
		"operator": "ops@example.com", "password": "wrong-password-guess",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""

	w := srv.do(t, http.MethodPost, "/batches", map[string]any{
		"ref": "batch-001", "sku": "RED-CHAIR", "qty": 100,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddBatchAndAllocate(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/batches", map[string]any{
		"ref": "batch-001", "sku": "RED-CHAIR", "qty": 100, "eta": "2026-09-15",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodPost, "/allocate", map[string]any{
		"order_id": "order-001", "sku": "RED-CHAIR", "qty": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "batch-001", resp["batchref"])
}

func TestAddBatch_BadETA(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/batches", map[string]any{
		"ref": "batch-001", "sku": "RED-CHAIR", "qty": 100, "eta": "next tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNonPositiveQtyIsRejected(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/batches", map[string]any{
		"ref": "batch-001", "sku": "RED-CHAIR", "qty": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/allocate", map[string]any{
		"order_id": "order-001", "sku": "RED-CHAIR", "qty": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/batches/batch-001/quantity", map[string]any{"qty": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAllocate_InvalidSkuIs400(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/allocate", map[string]any{
		"order_id": "order-001", "sku": "NONEXISTENT-SKU", "qty": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAllocate_OutOfStockIs400(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/batches", map[string]any{
		"ref": "batch-001", "sku": "TINY-STOOL", "qty": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodPost, "/allocate", map[string]any{
		"order_id": "order-001", "sku": "TINY-STOOL", "qty": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "out of stock")
}

func TestChangeBatchQuantity(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/batches", map[string]any{
		"ref": "batch-001", "sku": "BIG-TABLE", "qty": 100,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodPost, "/batches/batch-001/quantity", map[string]any{"qty": 40})
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/batches/no-such-batch/quantity", map[string]any{"qty": 40})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAllocations(t *testing.T) {
	srv := newTestServer(t)

	for i := 1; i <= 2; i++ {
		w := srv.do(t, http.MethodPost, "/batches", map[string]any{
			"ref": fmt.Sprintf("batch-00%d", i), "sku": fmt.Sprintf("SKU-%d", i), "qty": 50,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		w = srv.do(t, http.MethodPost, "/allocate", map[string]any{
			"order_id": "order-001", "sku": fmt.Sprintf("SKU-%d", i), "qty": 5,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := srv.do(t, http.MethodGet, "/allocations/order-001", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []readmodel.Allocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)

	w = srv.do(t, http.MethodGet, "/allocations/order-999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
