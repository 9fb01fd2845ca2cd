// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request and login metrics on a Prometheus registry.
// Consumers depend on their own interface over it.
type Collector struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency prometheus.Histogram
	loginSuccess   prometheus.Counter
	loginFailure   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkpost_http_requests_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkpost_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkpost_login_success_total",
			Help: "Completed login callbacks",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkpost_login_failure_total",
			Help: "Failed login callbacks by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.requestsTotal,
		c.requestLatency,
		c.loginSuccess,
		c.loginFailure,
	)

	return c
}

// RecordRequest counts a finished request and observes its latency.
func (c *Collector) RecordRequest(statusCode int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLoginSuccess counts a completed login.
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure counts a failed login under the provided reason.
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailure.WithLabelValues(reason).Inc()
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
