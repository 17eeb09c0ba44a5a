// Package metrics exposes Prometheus collectors for the shopscout service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsTotal                *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	stageRetriesTotal          *prometheus.CounterVec
	messagesSentTotal          *prometheus.CounterVec
	dedupLedgerSize            prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		eventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopscout_events_total",
				Help: "Inbound webhook events, labeled by admission outcome.",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopscout_runs_total",
				Help: "Completed pipeline runs, labeled by result.",
			},
			[]string{"result"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopscout_stage_duration_seconds",
				Help:    "Wall time per stage attempt, labeled by stage and status.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"stage", "status"},
		)

		stageRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopscout_stage_retries_total",
				Help: "Stage retry attempts, labeled by stage.",
			},
			[]string{"stage"},
		)

		messagesSentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopscout_messages_sent_total",
				Help: "Outbound messages, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		dedupLedgerSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shopscout_dedup_ledger_size",
				Help: "Current number of tracked message identifiers.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		)
	})
}

// EventObserved counts one inbound event by admission outcome
// (admitted, duplicate, skipped, rejected).
func EventObserved(outcome string) {
	if eventsTotal == nil {
		return
	}
	eventsTotal.WithLabelValues(outcome).Inc()
}

// RunFinished counts one completed run.
func RunFinished(succeeded bool) {
	if runsTotal == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	runsTotal.WithLabelValues(result).Inc()
}

// ObserveStage records one stage attempt.
func ObserveStage(stage, status string, seconds float64) {
	if stageDurationSeconds == nil {
		return
	}
	stageDurationSeconds.WithLabelValues(stage, status).Observe(seconds)
}

// StageRetried counts one retry for a stage.
func StageRetried(stage string) {
	if stageRetriesTotal == nil {
		return
	}
	stageRetriesTotal.WithLabelValues(stage).Inc()
}

// MessageSent counts one outbound message attempt by kind
// (ack, result, failure) and result (ok, error).
func MessageSent(kind string, ok bool) {
	if messagesSentTotal == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	messagesSentTotal.WithLabelValues(kind, result).Inc()
}

// SetLedgerSize records the dedup ledger's current size.
func SetLedgerSize(n int) {
	if dedupLedgerSize == nil {
		return
	}
	dedupLedgerSize.Set(float64(n))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments HTTP handlers with request counters and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httpRequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
