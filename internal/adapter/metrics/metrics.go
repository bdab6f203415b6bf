// Package metrics exposes Prometheus collectors for the HTTP surface and
// on-chain settlement outcomes.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relief_ledger"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	settlements  *prometheus.CounterVec
}

// New registers the runtime collectors plus the ledger's own.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "On-chain settlement attempts by resulting IOU status.",
		}, []string{"status", "settled"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.settlements,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records one request. Unmatched paths share a single label so
// scanners cannot blow up cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// WrapNotifier counts every settlement outcome before handing it to next.
// next may be nil.
func (m *Metrics) WrapNotifier(next ports.SettlementNotifier) ports.SettlementNotifier {
	return &countingNotifier{next: next, settlements: m.settlements}
}

type countingNotifier struct {
	next        ports.SettlementNotifier
	settlements *prometheus.CounterVec
}

func (n *countingNotifier) Notify(ctx context.Context, iou *domain.IOU, outcome domain.SettlementOutcome) error {
	n.settlements.WithLabelValues(string(outcome.Status), strconv.FormatBool(outcome.Settled)).Inc()
	if n.next == nil {
		return nil
	}
	return n.next.Notify(ctx, iou, outcome)
}
