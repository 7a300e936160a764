package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics.
var (
	reviewsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reviews_added_total",
			Help: "Total number of reviews added",
		},
		[]string{"domain"},
	)

	reviewsDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reviews_deleted_total",
			Help: "Total number of reviews deleted",
		},
		[]string{"domain"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_store_operation_duration_seconds",
			Help:    "Catalog document load/save duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain", "operation"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_store_errors_total",
			Help: "Total number of failed catalog document loads/saves",
		},
		[]string{"domain", "operation"},
	)
)
