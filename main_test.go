package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"comparador/pkg/api"
	"comparador/pkg/config"
	"comparador/pkg/fetch"
	"comparador/pkg/logger"
	"comparador/pkg/metrics"
	"comparador/pkg/models"
	"comparador/pkg/retailers"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Setup(io.Discard, "error", "json")
	os.Exit(m.Run())
}

type stubRetailer struct {
	name     string
	products []models.Product
	offers   []models.Product
	err      error
	panics   bool
}

func (s *stubRetailer) Name() string { return s.name }

func (s *stubRetailer) Search(ctx context.Context, term string) ([]models.Product, error) {
	if s.panics {
		panic("unexpected upstream shape")
	}
	return s.products, s.err
}

func (s *stubRetailer) Offers(ctx context.Context) ([]models.Product, error) {
	return s.offers, s.err
}

func newTestRouter(rs ...retailers.Retailer) *gin.Engine {
	registry := retailers.NewRegistry(0)
	for _, rt := range rs {
		registry.Register(rt, true)
	}
	return newRouter(&server{registry: registry, metrics: metrics.NewRegistry()}, routerOptions{docsDir: "./"})
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) api.ListResponse {
	t.Helper()
	var resp api.ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func intPtr(v int) *int { return &v }

func TestProductHandlerErrors(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		retailer       *stubRetailer
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Missing query and type",
			path:           "/products",
			retailer:       &stubRetailer{name: "stub"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Query parameter is required",
		},
		{
			name:           "Empty query",
			path:           "/products?q=",
			retailer:       &stubRetailer{name: "stub"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Query parameter is required",
		},
		{
			name:           "Unknown type without query",
			path:           "/products?type=banners",
			retailer:       &stubRetailer{name: "stub"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Query parameter is required",
		},
		{
			name:           "Retailer failure",
			path:           "/products?q=leite",
			retailer:       &stubRetailer{name: "stub", err: errors.New("catalog exploded")},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
		{
			name:           "Offers failure",
			path:           "/products?type=offers",
			retailer:       &stubRetailer{name: "stub", err: errors.New("offers exploded")},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
		{
			name:           "Panic in retailer",
			path:           "/products?q=leite",
			retailer:       &stubRetailer{name: "stub", panics: true},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
		{
			name:           "Unknown route",
			path:           "/stores/carrefour",
			retailer:       &stubRetailer{name: "stub"},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newTestRouter(tt.retailer), http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

			var body api.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
			assert.False(t, body.Success)
			assert.Equal(t, tt.expectedError, body.Error)
		})
	}
}

func TestOffersSortedByDiscountThenPrice(t *testing.T) {
	stub := &stubRetailer{name: "stub", offers: []models.Product{
		{ID: "a", Price: 5, Discount: intPtr(10)},
		{ID: "b", Price: 9, Discount: intPtr(30)},
		{ID: "c", Price: 4, Discount: intPtr(30)},
	}}

	rr := do(t, newTestRouter(stub), http.MethodGet, "/products?type=offers", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeList(t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "c", resp.Data[0].ID)
	assert.Equal(t, "b", resp.Data[1].ID)
	assert.Equal(t, "a", resp.Data[2].ID)
	assert.NotContains(t, rr.Body.String(), `"query"`)
}

func TestOffersTakePrecedenceOverQuery(t *testing.T) {
	stub := &stubRetailer{
		name:     "stub",
		products: []models.Product{{ID: "search"}},
		offers:   []models.Product{{ID: "offer", Discount: intPtr(20)}},
	}

	resp := decodeList(t, do(t, newTestRouter(stub), http.MethodGet, "/products?type=offers&q=leite", nil))

	require.Len(t, resp.Data, 1)
	assert.Equal(t, "offer", resp.Data[0].ID)
}

func TestSearchMergesRetailersByPrice(t *testing.T) {
	first := &stubRetailer{name: "first", products: []models.Product{
		{ID: "f1", Price: 5.49, Store: "first"},
		{ID: "f2", Price: 4.29, Store: "first"},
	}}
	second := &stubRetailer{name: "second", products: []models.Product{
		{ID: "s1", Price: 4.79, Store: "second"},
	}}

	rr := do(t, newTestRouter(first, second), http.MethodGet, "/api/products?q=leite", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeList(t, rr)
	assert.Equal(t, "leite", resp.Query)
	assert.Equal(t, 3, resp.Total)
	ids := []string{}
	for _, p := range resp.Data {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"f2", "s1", "f1"}, ids)
}

func TestSearchWithNoResults(t *testing.T) {
	rr := do(t, newTestRouter(&stubRetailer{name: "stub"}), http.MethodGet, "/products?q=caviar", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":[],"total":0,"query":"caviar"}`, rr.Body.String())
}

func TestCreateProduct(t *testing.T) {
	h := newTestRouter(&stubRetailer{name: "stub"})

	t.Run("valid with string prices", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/products", []byte(`{"name":"Café Pilão 500g","price":"15.90","originalPrice":"19.90","store":"Carrefour"}`))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp api.ProductResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Product added successfully (simulated)", resp.Message)

		p := resp.Data
		_, err := uuid.Parse(p.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Café Pilão 500g", p.Name)
		assert.Equal(t, 15.90, p.Price)
		require.NotNil(t, p.OriginalPrice)
		assert.Equal(t, 19.90, *p.OriginalPrice)
		require.NotNil(t, p.Discount)
		assert.Equal(t, 20, *p.Discount)
		assert.Equal(t, models.PlaceholderImage, p.Image)
		assert.Equal(t, models.DefaultLocation, p.Location)
	})

	t.Run("original price not above price is dropped", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/products", []byte(`{"name":"Feijão","price":7.49,"originalPrice":6.99,"store":"Extra","location":"Campinas - SP"}`))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.ProductResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Nil(t, resp.Data.OriginalPrice)
		assert.Nil(t, resp.Data.Discount)
		assert.Equal(t, "Campinas - SP", resp.Data.Location)
		assert.NotContains(t, rr.Body.String(), "originalPrice")
	})

	invalid := []struct {
		name  string
		body  string
		error string
	}{
		{"missing name", `{"price":1,"store":"Carrefour"}`, "Name, price and store are required"},
		{"missing price", `{"name":"Arroz","store":"Carrefour"}`, "Name, price and store are required"},
		{"zero price", `{"name":"Arroz","price":0,"store":"Carrefour"}`, "Name, price and store are required"},
		{"missing store", `{"name":"Arroz","price":1}`, "Name, price and store are required"},
		{"negative price", `{"name":"Arroz","price":-1,"store":"Carrefour"}`, "prices must not be negative"},
		{"price not numeric", `{"name":"Arroz","price":"barato","store":"Carrefour"}`, "Invalid JSON body"},
		{"price NaN", `{"name":"Arroz","price":"NaN","store":"Carrefour"}`, "Invalid JSON body"},
		{"price Inf", `{"name":"Arroz","price":"Inf","store":"Carrefour"}`, "Invalid JSON body"},
		{"price -Infinity", `{"name":"Arroz","price":"-Infinity","store":"Carrefour"}`, "Invalid JSON body"},
		{"original price NaN", `{"name":"Arroz","price":10,"originalPrice":"nan","store":"Carrefour"}`, "Invalid JSON body"},
		{"price overflows", `{"name":"Arroz","price":1e999,"store":"Carrefour"}`, "Invalid JSON body"},
		{"malformed json", `{"name":`, "Invalid JSON body"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/products", []byte(tt.body))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var body api.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.error, body.Error)
		})
	}
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestRouter(), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

const upstreamFixture = `[
  {"productId":"1","productName":"Leite Integral Parmalat 1L","items":[{"itemId":"11","images":[{"imageUrl":"https://img/11.jpg"}],"sellers":[{"commertialOffer":{"Price":4.99,"ListPrice":5.49}}]}]},
  {"productId":"2","productName":"Leite Desnatado Italac 1L","items":[{"itemId":"22","sellers":[{"commertialOffer":{"Price":4.29}}]}]},
  {"productId":"3","productName":"Leite Sem Oferta","items":[{"itemId":"33","sellers":[]}]}
]`

func TestEndToEndWithCache(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/moved/leite/" {
			w.Header().Set("Location", "/search/leite/")
			w.WriteHeader(http.StatusTemporaryRedirect)
			return
		}
		fmt.Fprint(w, upstreamFixture)
	}))
	defer upstream.Close()

	cfg := config.Config{
		CacheBackend:         config.CacheSQLite,
		CacheDBPath:          filepath.Join(t.TempDir(), "cache.db"),
		CacheTTL:             time.Minute,
		UpstreamMaxRedirects: fetch.DefaultMaxHops,
		UpstreamConcurrency:  2,
		Retailers: map[string]config.Retailer{
			"carrefour": {BaseURL: upstream.URL + "/moved/"},
		},
	}

	rc, closer, err := openCache(cfg)
	require.NoError(t, err)
	defer closer.Close()

	m := metrics.NewRegistry()
	fetcher := fetch.NewFetcher()
	fetcher.Observer = m
	registry := buildRegistry(cfg, fetcher, m, rc)
	require.Len(t, registry.Active(), 1, "extra stays disabled by default")

	h := newRouter(&server{registry: registry, metrics: m}, routerOptions{docsDir: "./"})

	for i := 0; i < 2; i++ {
		rr := do(t, h, http.MethodGet, "/products?q=leite", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decodeList(t, rr)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "22", resp.Data[0].ID)
		assert.Equal(t, "11", resp.Data[1].ID)
		require.NotNil(t, resp.Data[1].Discount)
		assert.Equal(t, 9, *resp.Data[1].Discount)
		assert.Equal(t, "Carrefour", resp.Data[1].Store)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "second search is served from cache")

	metricsBody := do(t, h, http.MethodGet, "/metrics", nil).Body.String()
	assert.Contains(t, metricsBody, "comparador_upstream_redirects_total 1")
	assert.Contains(t, metricsBody, `comparador_cache_lookups_total{result="hit",store="Carrefour"} 1`)
}

func TestBuildRegistryEnablesExtra(t *testing.T) {
	enabled := true
	cfg := config.Config{
		Retailers: map[string]config.Retailer{
			"extra": {Enabled: &enabled, Location: "Santos - SP"},
		},
	}

	registry := buildRegistry(cfg, fetch.NewFetcher(), nil, nil)
	active := registry.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "Carrefour", active[0].Name())
	assert.Equal(t, "Extra", active[1].Name())

	offers, err := registry.OffersAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, offers, 5)
	for _, o := range offers {
		if o.Store == "Extra" {
			assert.Equal(t, "Santos - SP", o.Location)
		}
	}
}

func TestOpenCacheNone(t *testing.T) {
	rc, closer, err := openCache(config.Config{CacheBackend: config.CacheNone})

	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.Nil(t, closer)
}
