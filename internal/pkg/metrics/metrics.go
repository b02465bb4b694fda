package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolhealth", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "route", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schoolhealth", Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RecomputeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolhealth", Name: "recompute_runs_total", Help: "Campaign counter recomputations by outcome",
	}, []string{"outcome"})
	RecomputeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolhealth", Name: "recompute_retries_total", Help: "Recompute attempts retried after a transient failure",
	})
	StaleCampaigns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolhealth", Name: "counters_stale_total", Help: "Campaigns flagged stale after recompute gave up",
	})
	RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schoolhealth", Name: "recompute_duration_seconds", Help: "Recompute latency",
		Buckets: prometheus.DefBuckets,
	})
)

// Recompute outcomes.
const (
	OutcomeWritten   = "written"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, RecomputeRuns, RecomputeRetries, StaleCampaigns, RecomputeDuration)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveRecompute(d time.Duration, outcome string) {
	RecomputeDuration.Observe(d.Seconds())
	RecomputeRuns.WithLabelValues(outcome).Inc()
}
