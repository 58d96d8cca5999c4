package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"comparador/pkg/api"
	"comparador/pkg/logger"
	"comparador/pkg/metrics"
	"comparador/pkg/models"
	"comparador/pkg/retailers"

	scalargo "github.com/bdpiprava/scalar-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type server struct {
	registry *retailers.Registry
	metrics  *metrics.Registry
}

type routerOptions struct {
	docsDir     string
	corsOrigins []string
}

func newRouter(s *server, opts routerOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(recoverWithEnvelope), requestLogger(), corsMiddleware(opts.corsOrigins))

	r.GET("/", docsHandler(opts.docsDir))
	r.GET("/healthz", func(c *gin.Context) {
		api.WriteJSON(c.Writer, http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// /api/products is the path the web front end calls.
	for _, path := range []string{"/products", "/api/products"} {
		r.GET(path, s.listProducts)
		r.POST(path, s.createProduct)
	}

	r.NoRoute(func(c *gin.Context) {
		api.WriteNotFound(c.Writer, "Not found")
	})
	return r
}

func recoverWithEnvelope(c *gin.Context, recovered any) {
	api.WriteInternalServerError(c.Writer, fmt.Errorf("panic: %v", recovered))
	c.Abort()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}

func docsHandler(specDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		html, err := scalargo.NewV2(
			scalargo.WithSpecDir(specDir),
			scalargo.WithMetaDataOpts(
				scalargo.WithTitle("Comparador de Preços API"),
			),
		)
		if err != nil {
			api.WriteInternalServerError(c.Writer, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	}
}

// listProducts serves either the offers listing (type=offers) or a price
// search across every active retailer (q=term).
func (s *server) listProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("type") == "offers" {
		offers, err := s.registry.OffersAll(ctx)
		if err != nil {
			api.WriteInternalServerError(c.Writer, fmt.Errorf("gather offers: %w", err))
			return
		}
		models.SortOffers(offers)
		s.metrics.ObserveProducts("offers", len(offers))

		api.WriteJSON(c.Writer, http.StatusOK, api.ListResponse{
			Success: true,
			Data:    offers,
			Total:   len(offers),
		})
		return
	}

	query := c.Query("q")
	if query == "" {
		api.WriteBadRequest(c.Writer, "Query parameter is required")
		return
	}

	products, err := s.registry.SearchAll(ctx, query)
	if err != nil {
		api.WriteInternalServerError(c.Writer, fmt.Errorf("search %q: %w", query, err))
		return
	}
	models.SortByPrice(products)
	s.metrics.ObserveProducts("search", len(products))

	api.WriteJSON(c.Writer, http.StatusOK, api.ListResponse{
		Success: true,
		Data:    products,
		Total:   len(products),
		Query:   query,
	})
}

// price accepts a JSON number or a numeric string; null and "" mean unset.
type price struct {
	value float64
	set   bool
}

func (p *price) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		p.value, p.set = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("price must be a number or a numeric string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("price %q is not a number", s)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("price %q is not a finite number", s)
	}
	p.value, p.set = n, true
	return nil
}

type createProductRequest struct {
	Name          string `json:"name"`
	Price         price  `json:"price"`
	OriginalPrice price  `json:"originalPrice"`
	Store         string `json:"store"`
	Image         string `json:"image"`
	Location      string `json:"location"`
}

func (r createProductRequest) validate() error {
	if r.Name == "" || !r.Price.set || r.Price.value == 0 || r.Store == "" {
		return models.ErrInvalidProduct
	}
	if r.Price.value < 0 || r.OriginalPrice.value < 0 {
		return fmt.Errorf("prices must not be negative")
	}
	return nil
}

// createProduct builds a product from the request and echoes it back.
// Nothing is stored.
func (s *server) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.WriteBadRequest(c.Writer, "Invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		api.WriteBadRequest(c.Writer, err.Error())
		return
	}

	var originalPrice *float64
	if req.OriginalPrice.set && req.OriginalPrice.value != 0 {
		originalPrice = models.Float(req.OriginalPrice.value)
	}

	product := models.NewProduct(models.Product{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Price:         req.Price.value,
		OriginalPrice: originalPrice,
		Store:         req.Store,
		Image:         req.Image,
		Location:      req.Location,
	})

	api.WriteJSON(c.Writer, http.StatusOK, api.ProductResponse{
		Success: true,
		Data:    product,
		Message: "Product added successfully (simulated)",
	})
}
