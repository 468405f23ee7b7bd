package catalog

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(maxUpload int64) (http.Handler, *memoryRepo) {
	repo := newMemoryRepo()
	r := chi.NewRouter()
	NewHandler(nil, NewService(repo, nil, nil), nil, nil, maxUpload).MountRoutes(r)
	return r, repo
}

const aceiteJSON = `{
  "name": "Aceite de girasol 500ml",
  "sku": "AOL-500",
  "category": "Almacen",
  "price": "8.5",
  "price_rules": [{"from": 1, "to": 9, "price": "8.5"}, {"from": 10, "to": 49, "price": "7.8"}],
  "stock_by_warehouse": [{"warehouse": "Deposito Central", "quantity": 45}]
}`

func TestHandlerCreateGetQuote(t *testing.T) {
	router, _ := newTestRouter(1 << 20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(aceiteJSON)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 45, created.TotalStock())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(aceiteJSON)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+created.ID+"/quote?qty=12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unit_price":"7.8"`)
	assert.Contains(t, rec.Body.String(), `"subtotal":"93.6"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"sku":"X"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/products/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerScan(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "ticket.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpg"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	router, _ := newTestRouter(1 << 20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(aceiteJSON)))
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body.Bytes()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Products []ScanMatch `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Products, 1)
	assert.Equal(t, "AOL-500", out.Products[0].SKU)
	assert.Equal(t, 90, out.Products[0].Confidence)

	small, _ := newTestRouter(64)
	big := bytes.Repeat([]byte("x"), 1024)
	var buf bytes.Buffer
	mw = multipart.NewWriter(&buf)
	part, err = mw.CreateFormFile("image", "big.jpg")
	require.NoError(t, err)
	_, err = part.Write(big)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	small.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
