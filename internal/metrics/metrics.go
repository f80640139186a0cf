// Package metrics collects and exposes the hub's Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records the hub metrics. A nil *Collector is a
// valid no-op recorder, so unit tests can leave it out.
type Collector struct {
	writesAccepted *prometheus.CounterVec
	writesRejected *prometheus.CounterVec
	cmdIssued      *prometheus.CounterVec
	cmdResults     *prometheus.CounterVec
	forwarded      prometheus.Counter
	forwardFailed  prometheus.Counter
	authDecisions  *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		writesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpihub_writes_accepted_total",
			Help: "Accepted resource writes by kind.",
		}, []string{"kind"}),
		writesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpihub_writes_rejected_total",
			Help: "Rejected resource writes by kind and rejection class.",
		}, []string{"kind", "reason"}),
		cmdIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpihub_commands_issued_total",
			Help: "Commands registered for correlation by kind.",
		}, []string{"kind"}),
		cmdResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpihub_command_results_total",
			Help: "First-delivery command results by kind.",
		}, []string{"kind"}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocpihub_results_forwarded_total",
			Help: "Command results successfully relayed upstream.",
		}),
		forwardFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocpihub_result_forward_failures_total",
			Help: "Upstream relay attempts that failed.",
		}),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpihub_authorize_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"allowed"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocpihub_http_request_duration_seconds",
			Help:    "Inbound request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		c.writesAccepted,
		c.writesRejected,
		c.cmdIssued,
		c.cmdResults,
		c.forwarded,
		c.forwardFailed,
		c.authDecisions,
		c.httpDuration,
	)
	return c
}

func (c *Collector) WriteAccepted(kind string) {
	if c == nil {
		return
	}
	c.writesAccepted.WithLabelValues(kind).Inc()
}

func (c *Collector) WriteRejected(kind, reason string) {
	if c == nil {
		return
	}
	c.writesRejected.WithLabelValues(kind, reason).Inc()
}

func (c *Collector) CommandIssued(kind string) {
	if c == nil {
		return
	}
	c.cmdIssued.WithLabelValues(kind).Inc()
}

func (c *Collector) CommandResultReceived(kind string) {
	if c == nil {
		return
	}
	c.cmdResults.WithLabelValues(kind).Inc()
}

func (c *Collector) Forwarded() {
	if c == nil {
		return
	}
	c.forwarded.Inc()
}

func (c *Collector) ForwardFailed() {
	if c == nil {
		return
	}
	c.forwardFailed.Inc()
}

func (c *Collector) AuthorizeDecision(allowed string) {
	if c == nil {
		return
	}
	c.authDecisions.WithLabelValues(allowed).Inc()
}

func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}
