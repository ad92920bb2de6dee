package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pickd/internal/structures"
)

// StatsSource feeds the gauge funcs. Implemented by the event store;
// declared here so the providers package does not import it.
type StatsSource interface {
	CountEvents() int
	CountChannels() int
}

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncPicks(method string)
	IncRetries()
	IncRollovers(count int)
	IncLockTimeouts()
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	picksTotal          *prometheus.CounterVec
	retriesTotal        prometheus.Counter
	rolloversTotal      prometheus.Counter
	lockTimeoutsTotal   prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncPicks(method string) {
	m.picksTotal.WithLabelValues(method).Inc()
}

func (m *MetricsProvider) IncRetries() {
	m.retriesTotal.Inc()
}

func (m *MetricsProvider) IncRollovers(count int) {
	m.rolloversTotal.Add(float64(count))
}

func (m *MetricsProvider) IncLockTimeouts() {
	m.lockTimeoutsTotal.Inc()
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, stats StatsSource) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pickd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pickd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		picksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pickd_picks_total",
			Help: "Total number of participant picks by method",
		}, []string{"method"}),

		retriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pickd_retries_total",
			Help: "Total number of pick retries",
		}),

		rolloversTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pickd_rollovers_total",
			Help: "Total number of event round rollovers",
		}),

		lockTimeoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pickd_lock_timeouts_total",
			Help: "Total number of requests that timed out waiting for an event token",
		}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pickd_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pickd_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pickd_persistence_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pickd_events_total",
		Help: "Current number of registered events",
	}, func() float64 {
		return float64(stats.CountEvents())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pickd_channels_total",
		Help: "Current number of channels with at least one event",
	}, func() float64 {
		return float64(stats.CountChannels())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncPicks(_ string)                                {}
func (n *noopMetrics) IncRetries()                                      {}
func (n *noopMetrics) IncRollovers(_ int)                               {}
func (n *noopMetrics) IncLockTimeouts()                                 {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
