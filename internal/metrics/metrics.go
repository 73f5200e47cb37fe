// Package metrics collects Prometheus metrics for task execution, command
// dispatch, and the HTTP surface. The collector owns its own registry so
// tests and multiple instances never collide on the global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles all hearthd metrics.
type Collector struct {
	registry *prometheus.Registry

	taskRuns     *prometheus.CounterVec
	taskFailures *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	commandCalls    *prometheus.CounterVec
	commandFailures *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
}

// NewCollector creates and registers all metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearthd_task_runs_total",
			Help: "Total number of task invocations",
		}, []string{"task"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearthd_task_failures_total",
			Help: "Total number of task invocations that returned an error or panicked",
		}, []string{"task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hearthd_task_duration_seconds",
			Help:    "Task invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		commandCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearthd_command_calls_total",
			Help: "Total number of command invocations",
		}, []string{"command"}),
		commandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearthd_command_failures_total",
			Help: "Total number of command invocations that raised an error",
		}, []string{"command"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearthd_http_requests_total",
			Help: "Total number of HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}

	c.registry.MustRegister(
		c.taskRuns,
		c.taskFailures,
		c.taskDuration,
		c.commandCalls,
		c.commandFailures,
		c.httpRequests,
	)
	return c
}

// RecordTaskRun records one task invocation and its duration.
func (c *Collector) RecordTaskRun(task string, seconds float64) {
	c.taskRuns.WithLabelValues(task).Inc()
	c.taskDuration.WithLabelValues(task).Observe(seconds)
}

// RecordTaskFailure records a failed prepare or invoke.
func (c *Collector) RecordTaskFailure(task string) {
	c.taskFailures.WithLabelValues(task).Inc()
}

// RecordCommand records a dispatched command invocation.
func (c *Collector) RecordCommand(command string, failed bool) {
	c.commandCalls.WithLabelValues(command).Inc()
	if failed {
		c.commandFailures.WithLabelValues(command).Inc()
	}
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, code string) {
	c.httpRequests.WithLabelValues(method, code).Inc()
}

// Handler exposes the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry for test assertions.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}
