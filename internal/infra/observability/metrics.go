package observability

import (
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	tokensUsed       *prometheus.CounterVec
	advisorCalls     *prometheus.CounterVec
	suggestionsTotal *prometheus.CounterVec
	migrationsTotal  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "affordd_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affordd_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affordd_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affordd_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affordd_advisor_tokens_total",
				Help: "Total advisor LLM tokens consumed.",
			},
			[]string{"type"},
		),
		advisorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affordd_advisor_calls_total",
				Help: "Total advisor calls by outcome.",
			},
			[]string{"status"},
		),
		suggestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affordd_suggestions_total",
				Help: "Purchase suggestions recorded, by score.",
			},
			[]string{"score"},
		),
		migrationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "affordd_ledger_migrations_total",
				Help: "Legacy scalar-income ledgers rewritten to itemized form.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrAdvisorCall increments the advisor call counter ("success"/"error").
func (m *Metrics) IncrAdvisorCall(status string) {
	m.advisorCalls.WithLabelValues(status).Inc()
}

// IncrSuggestion counts a recorded suggestion by score.
func (m *Metrics) IncrSuggestion(score domain.Score) {
	m.suggestionsTotal.WithLabelValues(string(score)).Inc()
}

// IncrMigration counts one persisted legacy-ledger rewrite.
func (m *Metrics) IncrMigration() {
	m.migrationsTotal.Inc()
}

// GetAdvisorSnapshot returns a snapshot of advisor-related metrics
// suitable for the GET /v1/metrics/advisor endpoint.
func (m *Metrics) GetAdvisorSnapshot() *domain.AdvisorMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	totalCalls := getCounterValue(m.advisorCalls, "success") +
		getCounterValue(m.advisorCalls, "error")
	errorCount := getCounterValue(m.advisorCalls, "error")
	cacheHits := getCounterValue(m.cacheHits, "account")
	cacheMisses := getCounterValue(m.cacheMisses, "account")

	totalTokens := promptTokens + completionTokens
	avgTokens := float64(0)
	errorRate := float64(0)
	cacheHitRate := float64(0)

	if totalCalls > 0 {
		avgTokens = totalTokens / totalCalls
		errorRate = errorCount / totalCalls
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.AdvisorMetrics{
		TotalCalls:          int64(totalCalls),
		AvgLatencyMs:        0, // would need histogram observation
		ErrorRate:           errorRate,
		AvgTokensPerRequest: avgTokens,
		CacheHitRate:        cacheHitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
