package observability

import (
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration     *prometheus.HistogramVec
	externalErrors      *prometheus.CounterVec
	storeErrors         *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	usageComputations   *prometheus.CounterVec
	checkpointWrites    *prometheus.CounterVec
	deviceResolutions   *prometheus.CounterVec
	payments            *prometheus.CounterVec
	amountCollected     prometheus.Counter
	alertsPublished     prometheus.Counter
	activeSubscriptions prometheus.Gauge
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
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_store_errors_total",
				Help: "Total key-value store failures by operation.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		usageComputations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electritrack_usage_computations_total",
				Help: "Usage delta computations by outcome.",
			},
			[]string{"outcome"},
		),
		checkpointWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electritrack_checkpoint_writes_total",
				Help: "Checkpoint and daily usage writes by kind.",
			},
			[]string{"kind"},
		),
		deviceResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electritrack_device_resolutions_total",
				Help: "Device resolution results by state.",
			},
			[]string{"state"},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electritrack_payments_total",
				Help: "Simulated payments by status.",
			},
			[]string{"status"},
		),
		amountCollected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "electritrack_payment_amount_php_total",
				Help: "Sum of completed payment amounts in PHP.",
			},
		),
		alertsPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "electritrack_usage_alerts_published_total",
				Help: "Usage threshold alerts published.",
			},
		),
		activeSubscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "electritrack_active_subscriptions",
				Help: "Open live dashboard subscriptions.",
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

// IncrStoreError counts a failed store call.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrUsageComputation counts a delta run; outcome is "ok" or "failed".
func (m *Metrics) IncrUsageComputation(outcome string) {
	m.usageComputations.WithLabelValues(outcome).Inc()
}

// IncrCheckpointWrite counts a performed usage write.
func (m *Metrics) IncrCheckpointWrite(kind domain.UsageWriteKind) {
	m.checkpointWrites.WithLabelValues(string(kind)).Inc()
}

// IncrDeviceResolution counts a device resolution by state. Ambiguous
// matches are counted separately under "ambiguous".
func (m *Metrics) IncrDeviceResolution(state string) {
	m.deviceResolutions.WithLabelValues(state).Inc()
}

// RecordPayment counts a payment attempt and, when completed, its amount.
func (m *Metrics) RecordPayment(status string, amount float64) {
	m.payments.WithLabelValues(status).Inc()
	if status == domain.PaymentStatusCompleted {
		m.amountCollected.Add(amount)
	}
}

// IncrAlertPublished counts a published usage alert.
func (m *Metrics) IncrAlertPublished() {
	m.alertsPublished.Inc()
}

// SubscriptionOpened and SubscriptionClosed track live dashboard streams.
func (m *Metrics) SubscriptionOpened() { m.activeSubscriptions.Inc() }

func (m *Metrics) SubscriptionClosed() { m.activeSubscriptions.Dec() }

// GetUsageSnapshot returns a snapshot of domain metrics suitable for the
// GET /v1/metrics/summary endpoint.
func (m *Metrics) GetUsageSnapshot() *domain.UsageMetrics {
	// Note: Prometheus counters expose cumulative values.
	ok := getCounterValue(m.usageComputations, "ok")
	failed := getCounterValue(m.usageComputations, "failed")
	cacheHits := getCounterValue(m.cacheHits, "profile")
	cacheMisses := getCounterValue(m.cacheMisses, "profile")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.UsageMetrics{
		UsageComputations: int64(ok + failed),
		UsageFailures:     int64(failed),
		DevicesMatched:    int64(getCounterValue(m.deviceResolutions, string(domain.ResolutionConnected))),
		DevicesUnmatched: int64(getCounterValue(m.deviceResolutions, string(domain.ResolutionNoDevice)) +
			getCounterValue(m.deviceResolutions, string(domain.ResolutionPhoneMissing))),
		AmbiguousMatches:    int64(getCounterValue(m.deviceResolutions, "ambiguous")),
		PaymentsCompleted:   int64(getCounterValue(m.payments, domain.PaymentStatusCompleted)),
		PaymentsRejected:    int64(getCounterValue(m.payments, "rejected")),
		AmountCollectedPHP:  metricValue(m.amountCollected),
		AlertsPublished:     int64(metricValue(m.alertsPublished)),
		ActiveSubscriptions: int64(metricValue(m.activeSubscriptions)),
		CacheHitRate:        cacheHitRate,
		StoreErrors:         int64(sumCounterVec(m.storeErrors)),
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return metricValue(cv.WithLabelValues(label))
}

func metricValue(c prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	switch {
	case m.Counter != nil && m.Counter.Value != nil:
		return *m.Counter.Value
	case m.Gauge != nil && m.Gauge.Value != nil:
		return *m.Gauge.Value
	}
	return 0
}

func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	var total float64
	for metric := range ch {
		total += metricValue(metric)
	}
	return total
}
