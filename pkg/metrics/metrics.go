// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesTotal tracks messages appended, by conversation type and origin.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total messages appended",
		},
		[]string{"type", "origin"},
	)

	// IngestTotal tracks external messages accepted, by source.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ingest_total",
			Help: "Total external messages ingested",
		},
		[]string{"source"},
	)

	// ClearsTotal tracks conversation clear operations.
	ClearsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_clears_total",
			Help: "Total conversation clear operations",
		},
		[]string{"result"},
	)

	// GroupsTotal tracks groups created.
	GroupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_groups_total",
			Help: "Total groups created",
		},
		[]string{"kind"},
	)

	// DirectoryDuration tracks conversation directory aggregation time.
	DirectoryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_directory_duration_seconds",
			Help:    "Conversation directory aggregation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PushNotifyTotal tracks posts into the push-notification sink.
	PushNotifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_notify_total",
			Help: "Total push sink notifications",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordMessage records an appended message.
func RecordMessage(convType, origin string) {
	MessagesTotal.WithLabelValues(convType, origin).Inc()
}
