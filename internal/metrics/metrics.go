// Package metrics provides Prometheus metrics for stselect's daemon calls.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stselect"

// Collector records client and session activity on its own registry. It
// implements client.Observer.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec

	treeNodes        *prometheus.GaugeVec
	selectionChanges *prometheus.CounterVec
}

// New creates a collector with a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		// API request metrics
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of REST requests sent to the daemon",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "REST request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_retries_total",
				Help:      "Total number of retried REST requests after transport failures",
			},
			[]string{"endpoint"},
		),

		// Selection metrics
		treeNodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_nodes",
				Help:      "Number of nodes in the last browsed tree",
			},
			[]string{"folder"},
		),
		selectionChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selection_changes_total",
				Help:      "Total number of managed block rewrites",
			},
			[]string{"folder", "operation"},
		),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records a finished request. Status 0 means the request
// failed before a response arrived.
func (c *Collector) ObserveRequest(method, endpoint string, status int, duration time.Duration) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	c.requestsTotal.WithLabelValues(method, endpoint, label).Inc()
	c.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveRetry records a retried request.
func (c *Collector) ObserveRetry(endpoint string) {
	c.retriesTotal.WithLabelValues(endpoint).Inc()
}

// SetTreeNodes records the size of a browsed tree.
func (c *Collector) SetTreeNodes(folder string, count int) {
	c.treeNodes.WithLabelValues(folder).Set(float64(count))
}

// RecordSelectionChange records a block rewrite.
func (c *Collector) RecordSelectionChange(folder, operation string) {
	c.selectionChanges.WithLabelValues(folder, operation).Inc()
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
