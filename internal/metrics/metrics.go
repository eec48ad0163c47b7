// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PostOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_operations_total",
			Help: "Total number of post operations processed",
		},
		[]string{"operation", "success"},
	)

	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Total number of media store uploads",
		},
		[]string{"provider", "success"},
	)

	MediaUploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_upload_duration_seconds",
			Help:    "Duration of media store uploads in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
)

// Recorder is the metrics surface used by the post service.
type Recorder interface {
	IncrementPostOperations(operation string, success bool)
	ObserveMediaUpload(provider string, success bool, duration time.Duration)
}

// PrometheusRecorder records into the package-level collectors.
type PrometheusRecorder struct{}

// NewPrometheusRecorder returns a Recorder backed by Prometheus.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{}
}

func (PrometheusRecorder) IncrementPostOperations(operation string, success bool) {
	PostOperationsTotal.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

func (PrometheusRecorder) ObserveMediaUpload(provider string, success bool, duration time.Duration) {
	MediaUploadsTotal.WithLabelValues(provider, strconv.FormatBool(success)).Inc()
	MediaUploadDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncrementPostOperations(string, bool) {}
func (Nop) ObserveMediaUpload(string, bool, time.Duration) {}
