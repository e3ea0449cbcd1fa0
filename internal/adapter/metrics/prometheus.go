package metrics

import (
	"net/http"
	"strconv"
	"time"

	"micro-savings-wallet/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "micro_savings"

// Prometheus implements ports.LedgerMetrics and exposes HTTP request metrics.
type Prometheus struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	conflictRetries   *prometheus.CounterVec
	idempotentReplays *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewPrometheus registers all collectors on a private registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations partitioned by type and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Ledger operation latency including conflict retries.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		conflictRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "conflict_retries_total",
				Help:      "Attempts retried after a wallet version conflict.",
			},
			[]string{"operation"},
		),
		idempotentReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "idempotent_replays_total",
				Help:      "Requests answered with a previously committed transaction.",
			},
			[]string{"operation"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (p *Prometheus) ObserveOperation(op domain.TransactionType, outcome string, elapsed time.Duration) {
	p.operationsTotal.WithLabelValues(string(op), outcome).Inc()
	p.operationDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

func (p *Prometheus) IncConflictRetry(op domain.TransactionType) {
	p.conflictRetries.WithLabelValues(string(op)).Inc()
}

func (p *Prometheus) IncIdempotentReplay(op domain.TransactionType) {
	p.idempotentReplays.WithLabelValues(string(op)).Inc()
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (p *Prometheus) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func (p *Prometheus) Gatherer() prometheus.Gatherer {
	return p.registry
}

// Nop discards all observations. Used when metrics are disabled.
type Nop struct{}

func (Nop) ObserveOperation(domain.TransactionType, string, time.Duration) {}
func (Nop) IncConflictRetry(domain.TransactionType)                         {}
func (Nop) IncIdempotentReplay(domain.TransactionType)                      {}
func (Nop) ObserveHTTPRequest(string, string, int, time.Duration)           {}
