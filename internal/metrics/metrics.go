package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for engine activity. The engine
// itself listens on nothing; exposition happens in cmd/worker and only when
// METRICS_ADDR is configured.
type Collector struct {
	registry        *prometheus.Registry
	followsTotal    *prometheus.CounterVec
	unfollowsTotal  *prometheus.CounterVec
	claimsTotal     *prometheus.CounterVec
	activeLoops     prometheus.Gauge
	apiCallDuration *prometheus.HistogramVec
}

// NewCollector constructs a collector with the engine's counters and
// histograms registered on a private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	followsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growthworker",
		Subsystem: "engine",
		Name:      "follows_total",
		Help:      "Total follow attempts by account and outcome.",
	}, []string{"account", "outcome"})

	unfollowsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growthworker",
		Subsystem: "engine",
		Name:      "unfollows_total",
		Help:      "Total unfollow attempts by account and outcome.",
	}, []string{"account", "outcome"})

	claimsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growthworker",
		Subsystem: "engine",
		Name:      "claims_total",
		Help:      "Daily reward claim attempts by account and outcome.",
	}, []string{"account", "outcome"})

	activeLoops := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "growthworker",
		Subsystem: "engine",
		Name:      "active_loops",
		Help:      "Number of account loops currently running.",
	})

	apiCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "growthworker",
		Subsystem: "api",
		Name:      "call_duration_seconds",
		Help:      "Latency distribution for outbound growth-platform API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	for _, c := range []prometheus.Collector{followsTotal, unfollowsTotal, claimsTotal, activeLoops, apiCallDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		followsTotal:    followsTotal,
		unfollowsTotal:  unfollowsTotal,
		claimsTotal:     claimsTotal,
		activeLoops:     activeLoops,
		apiCallDuration: apiCallDuration,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordFollow counts one follow attempt.
func (c *Collector) RecordFollow(account string, ok bool) {
	c.followsTotal.WithLabelValues(account, outcome(ok)).Inc()
}

// RecordUnfollow counts one unfollow attempt.
func (c *Collector) RecordUnfollow(account string, ok bool) {
	c.unfollowsTotal.WithLabelValues(account, outcome(ok)).Inc()
}

// RecordClaim counts a claim attempt. Outcome is one of "success",
// "already_claimed", "failure".
func (c *Collector) RecordClaim(account, result string) {
	c.claimsTotal.WithLabelValues(account, result).Inc()
}

// LoopStarted increments the active-loop gauge.
func (c *Collector) LoopStarted() { c.activeLoops.Inc() }

// LoopStopped decrements the active-loop gauge.
func (c *Collector) LoopStopped() { c.activeLoops.Dec() }

// ObserveAPICall records latency for one outbound API call.
func (c *Collector) ObserveAPICall(operation string, ok bool, duration time.Duration) {
	c.apiCallDuration.WithLabelValues(operation, outcome(ok)).Observe(duration.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
