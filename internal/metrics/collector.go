// Package metrics exposes Prometheus metrics for the analysis pipeline.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
)

// Collector records pipeline metrics. It satisfies the orchestrator's
// Observer interface.
type Collector struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	fallbacksTotal     *prometheus.CounterVec
	rejectionsTotal    *prometheus.CounterVec

	providerAttempts *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	safetyAlerts *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registerer prometheus.Registerer
	namespace  string
	logger     *zap.Logger
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		registerer: reg,
		namespace:  namespace,
		logger:     logger.With(zap.String("component", "metrics")),
	}

	c.invocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_invocations_total",
			Help:      "Total number of completed AI invocations",
		},
		[]string{"kind", "source"},
	)

	c.invocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_invocation_duration_seconds",
			Help:      "AI invocation duration in seconds, retries included",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"kind"},
	)

	c.fallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_fallbacks_total",
			Help:      "Total number of invocations answered with a static fallback",
		},
		[]string{"kind", "reason"},
	)

	c.rejectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_rejections_total",
			Help:      "Total number of invocations rejected before any provider call",
		},
		[]string{"kind", "reason"},
	)

	c.providerAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_provider_attempts_total",
			Help:      "Total number of provider calls by outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	c.providerDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_provider_call_duration_seconds",
			Help:      "Single provider call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		},
		[]string{"kind"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		},
		[]string{"kind"},
	)

	c.safetyAlerts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_alerts_total",
			Help:      "Total number of crisis alerts raised",
		},
		[]string{"category"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RegisterInFlight exposes the orchestrator's admission usage as gauges.
func (c *Collector) RegisterInFlight(inFlight func() int64, capacity int64) {
	factory := promauto.With(c.registerer)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "ai_in_flight_calls",
		Help:      "Provider calls currently holding an admission slot",
	}, func() float64 { return float64(inFlight()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "ai_admission_capacity",
		Help:      "Maximum concurrent provider calls",
	}, func() float64 { return float64(capacity) })
}

// OnAttempt records one provider call.
func (c *Collector) OnAttempt(provider string, kind domain.Kind, err error, latency time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = string(domain.ReasonOf(err))
	}
	c.providerAttempts.WithLabelValues(provider, string(kind), outcome).Inc()
	c.providerDuration.WithLabelValues(provider).Observe(latency.Seconds())
}

// OnComplete records a finished invocation.
func (c *Collector) OnComplete(result *domain.AnalysisResult) {
	if result == nil {
		return
	}
	kind := string(result.Kind)
	c.invocationsTotal.WithLabelValues(kind, string(result.Meta.Source)).Inc()
	c.invocationDuration.WithLabelValues(kind).Observe(result.Meta.Latency.Seconds())

	if result.Meta.Degraded {
		c.fallbacksTotal.WithLabelValues(kind, string(result.Meta.FailureReason)).Inc()
	}
}

// OnRejected records an invocation refused before any provider call.
func (c *Collector) OnRejected(kind domain.Kind, err error) {
	reason := "error"
	switch {
	case errors.Is(err, domain.ErrOverloaded):
		reason = "overloaded"
	case errors.Is(err, domain.ErrInvalidOperation):
		reason = "invalid_operation"
	}
	c.rejectionsTotal.WithLabelValues(string(kind), reason).Inc()
}

// RecordCacheLookup records a result cache hit or miss.
func (c *Collector) RecordCacheLookup(kind domain.Kind, hit bool) {
	if hit {
		c.cacheHits.WithLabelValues(string(kind)).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(string(kind)).Inc()
}

// RecordSafetyAlerts counts raised crisis alerts.
func (c *Collector) RecordSafetyAlerts(alerts []domain.SafetyAlert) {
	for _, a := range alerts {
		c.safetyAlerts.WithLabelValues(a.Category).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
