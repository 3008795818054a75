package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yoga_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	ReservationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yoga_reservations_created_total",
			Help: "Total reservations created",
		},
	)

	ReservationsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yoga_reservations_cancelled_total",
			Help: "Total reservations cancelled",
		},
	)

	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yoga_store_op_seconds",
			Help:    "Duration of object store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	IndexDrift = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yoga_index_drift_total",
			Help: "Index updates that failed or referenced missing documents",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yoga_rate_limit_exceeded_total",
			Help: "Total rate limited requests",
		},
	)
)
