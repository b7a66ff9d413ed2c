// Package metrics exports navigation activity as prometheus metrics.
//
// A Collector is a navigation.Observer; hand it to every service that
// should be measured and register it once:
//
//	c := metrics.New("wayfinder")
//	prometheus.MustRegister(c)
//	svc := navigation.NewService(modules, navigation.WithObserver(c))
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/navigation"
)

// Collector counts transitions per service, kind and outcome, times them,
// and tracks the history shape of every observed service.
type Collector struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	entries     *prometheus.GaugeVec
	index       *prometheus.GaugeVec
}

var _ navigation.Observer = (*Collector)(nil)
var _ prometheus.Collector = (*Collector)(nil)

// New creates a collector whose metric names start with namespace.
func New(namespace string) *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Navigation requests by service, kind, status and whether the history changed.",
		}, []string{"service", "kind", "status", "committed"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Time from request to result, excluding modal waits.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"service", "kind"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Number of entries in the navigation history.",
		}, []string{"service"}),
		index: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_index",
			Help:      "Current position in the navigation history.",
		}, []string{"service"}),
	}
}

// TransitionFinished implements navigation.Observer.
func (c *Collector) TransitionFinished(service string, kind navigation.TransitionKind, res navigation.Result, elapsed time.Duration) {
	c.transitions.WithLabelValues(service, kind.String(), res.Status.String(), strconv.FormatBool(res.Committed)).Inc()
	c.duration.WithLabelValues(service, kind.String()).Observe(elapsed.Seconds())
}

// HistoryChanged implements navigation.Observer.
func (c *Collector) HistoryChanged(service string, count, index int) {
	c.entries.WithLabelValues(service).Set(float64(count))
	c.index.WithLabelValues(service).Set(float64(index))
}

// Forget drops the gauges of a service that went away.
func (c *Collector) Forget(service string) {
	c.entries.DeleteLabelValues(service)
	c.index.DeleteLabelValues(service)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.duration.Describe(ch)
	c.entries.Describe(ch)
	c.index.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.duration.Collect(ch)
	c.entries.Collect(ch)
	c.index.Collect(ch)
}
