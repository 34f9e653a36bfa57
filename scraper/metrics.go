package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	PagesTotal        *prometheus.CounterVec
	ItemsScrapedTotal *prometheus.CounterVec
	DegradationsTotal *prometheus.CounterVec
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_scraper_requests_total",
			Help: "Total page fetches issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gpu_scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_scraper_listing_pages_total",
			Help: "Listing pages processed per store.",
		},
		[]string{"store"},
	)
	itemsScraped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_scraper_items_scraped_total",
			Help: "GPU records extracted per store.",
		},
		[]string{"store"},
	)
	degradations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_scraper_extraction_degradations_total",
			Help: "Fields that fell back to their default value.",
		},
		[]string{"store", "field"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpu_scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_scraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, itemsScraped, degradations, retries, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		PagesTotal:        pages,
		ItemsScrapedTotal: itemsScraped,
		DegradationsTotal: degradations,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the listing pages counter for a store.
func (m *Metrics) IncPages(store string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(store).Inc()
}

// AddItems adds n extracted records for a store.
func (m *Metrics) AddItems(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsScrapedTotal.WithLabelValues(store).Add(float64(n))
}

// IncDegradation counts a field that defaulted during extraction.
func (m *Metrics) IncDegradation(store, field string) {
	if m == nil {
		return
	}
	m.DegradationsTotal.WithLabelValues(store, field).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
