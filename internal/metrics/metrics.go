// Package metrics holds the Prometheus collectors exported by the ingest
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for NotificationCount.
const (
	ResultLoaded         = "loaded"
	ResultSkipped        = "skipped"
	ResultBadPayload     = "bad_payload"
	ResultConfigError    = "config_error"
	ResultIngestParse    = "ingest_parse"
	ResultWarehouseQuery = "warehouse_query"
	ResultLoadJob        = "load_job"
)

var (
	// NotificationCount counts handled notifications by result.
	NotificationCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_notifications_total",
		Help: "the number of storage notifications handled, by result",
	}, []string{"result"})
	// RowsLoaded counts data rows submitted in successful loads.
	RowsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_loaded_total",
		Help: "the number of CSV data rows loaded into the destination table",
	}, []string{"table", "mode"})
	// LoadDuration measures submit-to-terminal time of load jobs.
	LoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_load_duration_seconds",
		Help:    "the time between submitting a load job and its completion",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"table"})
)
