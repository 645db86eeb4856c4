// Package metrics holds the Prometheus collectors for connector executions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connkit_executions_total",
			Help: "Total number of connector executions by outcome and error kind",
		},
		[]string{"connector", "outcome", "kind"},
	)

	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connkit_execution_duration_seconds",
			Help:    "Duration of connector executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connkit_http_requests_total",
			Help: "Outbound HTTP requests by status class",
		},
		[]string{"connector", "class"},
	)

	credentialRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connkit_credential_refresh_total",
			Help: "Credential refresh attempts triggered by expired bearer tokens",
		},
		[]string{"connector", "status"},
	)
)

// ObserveExecution records one finished execution.
func ObserveExecution(connector, outcome, kind string, elapsed time.Duration) {
	executionsTotal.WithLabelValues(connector, outcome, kind).Inc()
	executionDuration.WithLabelValues(connector).Observe(elapsed.Seconds())
}

// ObserveHTTP records one outbound request. status 0 means the transport failed.
func ObserveHTTP(connector string, status int) {
	class := "error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	case status >= 200:
		class = "2xx"
	}
	httpRequestsTotal.WithLabelValues(connector, class).Inc()
}

// ObserveRefresh records a credential refresh attempt.
func ObserveRefresh(connector string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	credentialRefreshTotal.WithLabelValues(connector, status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
