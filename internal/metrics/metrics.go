package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PunchesIngested counts punch-log rows created per device
	PunchesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchsync_punches_ingested_total",
			Help: "Total number of punch records ingested into the ledger",
		},
		[]string{"device"},
	)

	// PunchesSkipped counts records skipped during normalization
	PunchesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchsync_punches_skipped_total",
			Help: "Total number of punch records skipped, by reason",
		},
		[]string{"device", "reason"},
	)

	// PunchesDuplicate counts records already present in the ledger
	PunchesDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchsync_punches_duplicate_total",
			Help: "Total number of already-known punch records redelivered by devices",
		},
		[]string{"device"},
	)

	// SyncDuration tracks the length of one device sync cycle
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "punchsync_sync_duration_seconds",
			Help:    "Device sync cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"device"},
	)

	// DeviceUp reports whether the last connection attempt succeeded
	DeviceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "punchsync_device_up",
			Help: "1 if the device was reachable on the last sync attempt, 0 otherwise",
		},
		[]string{"device"},
	)

	// OpenIntervals tracks ledger-wide open attendance intervals
	OpenIntervals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "punchsync_open_intervals",
			Help: "Number of attendance intervals currently without a check-out",
		},
	)

	// LastSyncTimestamp records the unix time of the last successful sync
	LastSyncTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "punchsync_last_sync_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync per device",
		},
		[]string{"device"},
	)

	// UsersDownloaded counts device-user table rows upserted
	UsersDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchsync_users_downloaded_total",
			Help: "Total number of terminal user records downloaded",
		},
		[]string{"device"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchsync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
