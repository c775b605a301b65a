// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of upstream calls by logical service and outcome",
		},
		[]string{"service", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	FallbackSubstitutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_substitutions_total",
			Help: "Number of times a data source was replaced by its fallback value",
		},
		[]string{"source"},
	)

	PictureRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picture_requests_total",
			Help: "Total number of createPicture requests by outcome",
		},
		[]string{"outcome"},
	)

	ImageDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_downloads_total",
			Help: "Total number of image acquisitions by branch",
		},
		[]string{"branch"},
	)

	Annotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotations_total",
			Help: "Total number of annotation invocations by outcome",
		},
		[]string{"outcome"},
	)

	AnnotationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotation_duration_seconds",
			Help:    "Duration of the external annotation invocation in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
	)
)

// Outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeConfigError = "config_error"
	OutcomeFallback    = "fallback"
)
