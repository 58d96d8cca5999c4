package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeHTTPError   = "http_error"
	OutcomeFetchError  = "fetch_error"
	OutcomeDecodeError = "decode_error"
)

// Registry holds the service's collectors. A nil *Registry is valid and
// records nothing, which keeps tests free of metrics wiring.
type Registry struct {
	reg               *prometheus.Registry
	UpstreamRequests  *prometheus.CounterVec
	RedirectsFollowed prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	ProductsReturned  *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comparador_upstream_requests_total",
		Help: "Catalog searches sent to retailers, by store and outcome.",
	}, []string{"store", "outcome"})
	redirects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comparador_upstream_redirects_total",
		Help: "Redirect hops followed while fetching upstream.",
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comparador_cache_lookups_total",
		Help: "Search cache lookups, by store and result.",
	}, []string{"store", "result"})
	products := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comparador_products_returned",
		Help:    "Products returned per aggregated request.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
	}, []string{"kind"})

	r.MustRegister(upstream, redirects, cacheLookups, products)
	return &Registry{
		reg:               r,
		UpstreamRequests:  upstream,
		RedirectsFollowed: redirects,
		CacheLookups:      cacheLookups,
		ProductsReturned:  products,
	}
}

func (r *Registry) ObserveUpstream(store, outcome string) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(store, outcome).Inc()
}

func (r *Registry) ObserveRedirect() {
	if r == nil {
		return
	}
	r.RedirectsFollowed.Inc()
}

func (r *Registry) ObserveCache(store string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(store, result).Inc()
}

func (r *Registry) ObserveProducts(kind string, n int) {
	if r == nil {
		return
	}
	r.ProductsReturned.WithLabelValues(kind).Observe(float64(n))
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
