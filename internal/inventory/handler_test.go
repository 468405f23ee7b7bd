package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanix-pos/scanix/internal/shared"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	svc := NewService(repo, nil, nil, nil)
	actor := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithActor(r.Context(), shared.Actor{ID: "u-test"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	r := chi.NewRouter()
	NewHandler(nil, svc, nil, actor, 5).MountRoutes(r)
	return r
}

func TestHandlerAdjustment(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(repo)

	body := `{"product_id":"p-aol","warehouse":"Deposito Central","type":"IN","quantity":10,"reason":"Recepcion"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var m Movement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 10, m.NewQty)
	assert.Equal(t, "u-test", m.ActorID)

	body = `{"product_id":"p-aol","warehouse":"Deposito Central","type":"OUT","quantity":11,"reason":"Merma"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	body = `{"product_id":"p-aol","warehouse":"Deposito Central","type":"SALE","quantity":1,"reason":"x"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerReads(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var warehouses []Warehouse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &warehouses))
	assert.Len(t, warehouses, 2)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses/unknown/stock", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/movements?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/low?threshold=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses/wh-norte/stock", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
