package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solweekly/weekly-roundup/internal/service"
	"github.com/solweekly/weekly-roundup/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	Subscriptions      *prometheus.CounterVec
	StoreFallbacks     *prometheus.CounterVec
	MirrorFailures     prometheus.Counter
	Deliveries         *prometheus.CounterVec
	BatchDuration      prometheus.Histogram
	MarketRequests     *prometheus.CounterVec
	PublicRateRejected prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriptions_total",
			Help: "Subscribe attempts by result (added, duplicate, invalid, unavailable, error).",
		}, []string{"result"}),

		StoreFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriber_store_fallbacks_total",
			Help: "Registry operations served by the local store after the remote store failed or was empty.",
		}, []string{"operation"}),

		MirrorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscriber_mirror_failures_total",
			Help: "Best-effort secondary store writes that failed.",
		}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_deliveries_total",
			Help: "Per-recipient newsletter deliveries by kind (send, test) and result (sent, failed).",
		}, []string{"kind", "result"}),

		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsletter_batch_seconds",
			Help:    "Time for all sends of one batch to settle, excluding the pause.",
			Buckets: prometheus.DefBuckets,
		}),

		MarketRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_requests_total",
			Help: "Market-data requests by endpoint and the source that answered (cache, upstream, stale, fallback, error).",
		}, []string{"endpoint", "source"}),

		PublicRateRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "public_rate_limited_total",
			Help: "Requests to public endpoints rejected by the per-client limiter.",
		}),
	}

	reg.MustRegister(
		m.Subscriptions,
		m.StoreFallbacks,
		m.MirrorFailures,
		m.Deliveries,
		m.BatchDuration,
		m.MarketRequests,
		m.PublicRateRejected,
	)

	return m
}

// RegistryHooks returns the callbacks expected by service.RegistryHooks.
func (m *Metrics) RegistryHooks() service.RegistryHooks {
	return service.RegistryHooks{
		OnFallback:      func(op string) { m.StoreFallbacks.WithLabelValues(op).Inc() },
		OnMirrorFailure: func() { m.MirrorFailures.Inc() },
	}
}

// DispatchHooks returns the callbacks expected by service.DispatchHooks.
func (m *Metrics) DispatchHooks() service.DispatchHooks {
	return service.DispatchHooks{
		OnDelivery: func(kind string, ok bool) {
			result := "sent"
			if !ok {
				result = "failed"
			}
			m.Deliveries.WithLabelValues(kind, result).Inc()
		},
	}
}

// BatchHooks returns the callbacks expected by worker.Hooks.
func (m *Metrics) BatchHooks() worker.Hooks {
	return worker.Hooks{
		OnBatchDone: func(_, _ int, elapsed time.Duration) {
			m.BatchDuration.Observe(elapsed.Seconds())
		},
	}
}

// SubscribeResult records one subscribe attempt.
func (m *Metrics) SubscribeResult(result string) {
	m.Subscriptions.WithLabelValues(result).Inc()
}

// MarketSource records which source answered a market-data request.
func (m *Metrics) MarketSource(endpoint, source string) {
	m.MarketRequests.WithLabelValues(endpoint, source).Inc()
}

// RateLimited records one rejected public request.
func (m *Metrics) RateLimited() {
	m.PublicRateRejected.Inc()
}
