package rbac

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_sync_operations_total",
			Help: "Sync-replace operations by relation and result",
		},
		[]string{"relation", "result"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rbac_sync_duration_seconds",
			Help:    "Duration of sync-replace transactions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"relation"},
	)

	permissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_permission_checks_total",
			Help: "Permission checks by outcome",
		},
		[]string{"result"},
	)
)

const (
	resultSuccess    = "success"
	resultValidation = "validation_error"
	resultNotFound   = "not_found"
	resultError      = "error"
)
