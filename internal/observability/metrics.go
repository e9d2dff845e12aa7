package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesProcessedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "worker",
		Name:      "activities_processed_total",
		Help:      "Activities whose time-in-zone facts were computed and stored.",
	}, []string{"category"})
	activitiesSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "worker",
		Name:      "activities_skipped_total",
		Help:      "Activities skipped during processing, by reason.",
	}, []string{"reason"})
	summariesRecomputedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "summary",
		Name:      "recomputed_total",
		Help:      "Periodic summaries created or overwritten with fresh totals.",
	})
	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hrzone_service",
		Subsystem: "queue",
		Name:      "pending_users",
		Help:      "Users with an unfinished backfill in the processing queue.",
	})
	activityProcessedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hrzone_service",
		Subsystem: "worker",
		Name:      "last_activity_processed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity processed.",
	})
)

func init() {
	prometheus.MustRegister(
		activitiesProcessedCounter,
		activitiesSkippedCounter,
		summariesRecomputedCounter,
		queueDepthGauge,
		activityProcessedGauge,
	)
}

// RecordActivityProcessed counts a stored activity and moves the watermark.
func RecordActivityProcessed(category string, ts time.Time) {
	activitiesProcessedCounter.WithLabelValues(category).Inc()
	if ts.IsZero() {
		return
	}
	activityProcessedGauge.Set(float64(ts.Unix()))
}

// RecordActivitySkipped counts an activity passed over during processing.
func RecordActivitySkipped(reason string) {
	activitiesSkippedCounter.WithLabelValues(reason).Inc()
}

// RecordSummaryRecomputed counts a summary write.
func RecordSummaryRecomputed() {
	summariesRecomputedCounter.Inc()
}

// SetQueueDepth reports how many users still have queued backfills.
func SetQueueDepth(depth int) {
	queueDepthGauge.Set(float64(depth))
}
