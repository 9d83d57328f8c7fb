package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photobomb",
		Name:      "photos_processed_total",
		Help:      "Total number of photo phase executions by outcome",
	}, []string{"phase", "status"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photobomb",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	AnimalsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photobomb",
		Name:      "animals_detected_total",
		Help:      "Total number of animal detections by label",
	}, []string{"label"})

	TagsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photobomb",
		Name:      "tags_written_total",
		Help:      "Total number of photo tags written by source",
	}, []string{"source"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photobomb",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages (download, thumbnail, inference, db)",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	ClustersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photobomb",
		Name:      "clusters_created_total",
		Help:      "Total number of identities created by clustering",
	}, []string{"kind"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photobomb",
		Name:      "queue_depth",
		Help:      "Number of pending photo tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photobomb",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photobomb",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
