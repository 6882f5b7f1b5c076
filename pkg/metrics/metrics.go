// Package metrics exposes prometheus counters for the instrumentation
// pipeline: requests observed, reporter failures, records persisted and
// store rotations. The management API serves them on GET /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weblog_requests_total",
			Help: "Instrumented requests, by status class.",
		},
		[]string{"status_class"},
	)

	reporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weblog_reporter_errors_total",
			Help: "Fan-out failures, by reporter id.",
		},
		[]string{"reporter"},
	)

	recordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weblog_records_written_total",
			Help: "Records persisted to log stores, by reporter id.",
		},
		[]string{"reporter"},
	)

	rotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weblog_store_rotations_total",
			Help: "Log store rotations.",
		},
	)
)

// ObserveRequest counts one finished instrumented request.
func ObserveRequest(status int) {
	requestsTotal.WithLabelValues(statusClass(status)).Inc()
}

// ObserveReporterError counts one fan-out failure for the reporter.
func ObserveReporterError(id string) {
	reporterErrorsTotal.WithLabelValues(id).Inc()
}

// ObserveRecordWritten counts one persisted record for the reporter.
func ObserveRecordWritten(id string) {
	recordsWrittenTotal.WithLabelValues(id).Inc()
}

// ObserveRotation counts one log store rotation.
func ObserveRotation() {
	rotationsTotal.Inc()
}

// Handler serves the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusClass buckets a status code as "2xx", "4xx", etc. Requests that
// errored before any status was sent land in "5xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "5xx"
	}
	return strconv.Itoa(status/100) + "xx"
}
