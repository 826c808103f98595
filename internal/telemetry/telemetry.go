// Package telemetry holds the Prometheus metrics of a pipeline run.
// Batch runs have no scrape endpoint, so the registry is written to a
// node-exporter textfile when the run ends.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ounols/jekyll-news/internal/domain"
)

// MetricsNamespace prefixes every metric.
const MetricsNamespace = "news"

// Metrics holds the run metrics.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesTotal      *prometheus.CounterVec
	ArticleDuration    *prometheus.HistogramVec
	TranslationChunks  *prometheus.CounterVec
	TickerResolutions  *prometheus.CounterVec
	ListingErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ArticlesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "articles_total",
			Help:      "Articles processed, by terminal status and reason",
		}, []string{"source", "status", "reason"}),
		ArticleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "article_duration_seconds",
			Help:      "Time to take one article from listing to outcome",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"source"}),
		TranslationChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "translation_chunks_total",
			Help:      "Translation chunks by result (translated, skipped, failed)",
		}, []string{"result"}),
		TickerResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "ticker_resolutions_total",
			Help:      "Ticker resolutions by the lookup that answered",
		}, []string{"via"}),
		ListingErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "listing_errors_total",
			Help:      "Source listings that failed",
		}, []string{"source"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveArticle records the outcome of one article.
func (m *Metrics) ObserveArticle(source string, outcome domain.Outcome, d time.Duration) {
	m.ArticlesTotal.WithLabelValues(source, outcome.Status.String(), outcome.Reason).Inc()
	m.ArticleDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveChunk records one translation chunk result.
func (m *Metrics) ObserveChunk(result string) {
	m.TranslationChunks.WithLabelValues(result).Inc()
}

// ObserveResolution records how one ticker was resolved.
func (m *Metrics) ObserveResolution(via string) {
	m.TickerResolutions.WithLabelValues(via).Inc()
}

// ObserveListingError records a failed listing.
func (m *Metrics) ObserveListingError(source string) {
	m.ListingErrorsTotal.WithLabelValues(source).Inc()
}

// WriteTextfile writes the registry atomically to path. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
