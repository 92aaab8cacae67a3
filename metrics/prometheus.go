// Package metrics provides a Prometheus implementation of session.Metrics.
package metrics

import (
	"time"

	session "github.com/goliatone/go-session"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "gosession"

const (
	resultRenewed = "renewed"
	resultFailed  = "failed"
)

// Collector records coordinator, store and bootstrap activity.
type Collector struct {
	refreshes   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    *prometheus.GaugeVec
	waiters     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	bootstraps  *prometheus.CounterVec
}

var _ session.Metrics = (*Collector)(nil)

// New creates the collectors. An empty namespace uses DefaultNamespace.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Collector{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "flights_total",
			Help:      "Refresh flights by domain and result",
		}, []string{"domain", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Refresh flight duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"domain", "result"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "in_flight",
			Help:      "Refresh flights currently running",
		}, []string{"domain"}),
		waiters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "waiters_joined_total",
			Help:      "Callers that attached to a running refresh flight",
		}, []string{"domain"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transitions_total",
			Help:      "Session state transitions",
		}, []string{"domain", "from", "to"}),
		bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "completed_total",
			Help:      "Bootstrap sequences by final status",
		}, []string{"domain", "status", "transient"}),
	}
}

// Register adds every collector to registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	for _, collector := range c.collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Collector) MustRegister(registry prometheus.Registerer) *Collector {
	registry.MustRegister(c.collectors()...)
	return c
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.refreshes,
		c.duration,
		c.inFlight,
		c.waiters,
		c.transitions,
		c.bootstraps,
	}
}

func (c *Collector) RefreshStarted(domain string) {
	c.inFlight.WithLabelValues(domain).Inc()
}

func (c *Collector) RefreshFinished(domain string, err error, elapsed time.Duration) {
	result := resultRenewed
	if err != nil {
		result = resultFailed
	}
	c.inFlight.WithLabelValues(domain).Dec()
	c.refreshes.WithLabelValues(domain, result).Inc()
	c.duration.WithLabelValues(domain, result).Observe(elapsed.Seconds())
}

func (c *Collector) WaiterJoined(domain string) {
	c.waiters.WithLabelValues(domain).Inc()
}

func (c *Collector) StateChanged(domain string, from, to session.Status) {
	c.transitions.WithLabelValues(domain, string(from), string(to)).Inc()
}

func (c *Collector) BootstrapFinished(domain string, status session.Status, transient bool) {
	label := "false"
	if transient {
		label = "true"
	}
	c.bootstraps.WithLabelValues(domain, string(status), label).Inc()
}
