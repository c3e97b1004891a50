package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_sync_pushed_rows_total",
		Help: "Rows pushed to the remote store, by entity type.",
	}, []string{"entity"})

	pulledRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_sync_pulled_rows_total",
		Help: "Remote rows applied locally, by entity type.",
	}, []string{"entity"})

	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_sync_resolutions_total",
		Help: "Conflict resolver decisions on the pull path.",
	}, []string{"entity", "decision"})

	syncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_sync_errors_total",
		Help: "Sync failures, by entity type and classification.",
	}, []string{"entity", "kind"})

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_sync_cycle_seconds",
		Help:    "Duration of one push+pull cycle for an entity type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity"})
)
