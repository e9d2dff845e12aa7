package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ZoneConfigRepository captures read/write access to zone configurations.
// Lookups return (nil, nil) when no row exists; infrastructure failures are
// returned as errors.
type ZoneConfigRepository interface {
	ConfigsForUser(ctx context.Context, userID int64) ([]ZonesConfig, error)
	ConfigByCategory(ctx context.Context, userID int64, category ActivityCategory) (*ZonesConfig, error)
	ZonesForConfig(ctx context.Context, configID uuid.UUID) ([]HeartRateZone, error)
	// ReplaceConfigZones upserts the (user, category) configuration and swaps
	// its zone set atomically. Zones must pass Validate.
	ReplaceConfigZones(ctx context.Context, userID int64, category ActivityCategory, zones []HeartRateZone) (*ZonesConfig, error)
}

// ZoneTimeFilter narrows per-activity zone-time facts to one summary period.
// MonthContext further narrows a weekly filter to a calendar month and is
// ignored when zero.
type ZoneTimeFilter struct {
	UserID       int64
	Year         int
	PeriodType   PeriodType
	PeriodIndex  int
	MonthContext int
}

// ZoneTimeRepository captures persistence of per-activity zone-time facts.
type ZoneTimeRepository interface {
	// StoreActivityZoneTimes upserts one row per entry, keyed by
	// (user, activity, zone name). Callers pass only positive durations.
	StoreActivityZoneTimes(ctx context.Context, userID, activityID int64, activityDate time.Time, seconds map[string]int) error
	DeleteActivityZoneTimes(ctx context.Context, userID, activityID int64) (int64, error)
	// AggregateZoneTimes groups matching facts by zone name and sums their
	// durations, ordered by the default configuration's zone order with
	// alphabetical fallback for unknown names.
	AggregateZoneTimes(ctx context.Context, filter ZoneTimeFilter, defaultConfigID uuid.UUID) (ZoneDurations, error)
}

// SummaryRepository captures persistence of periodic summaries.
type SummaryRepository interface {
	// GetOrCreateSummary atomically fetches or creates the row keyed by
	// (user, period type, year, period index), seeding new rows with an
	// empty mapping.
	GetOrCreateSummary(ctx context.Context, userID int64, periodType PeriodType, year, periodIndex int) (*ZoneSummary, bool, error)
	SaveSummaryTimes(ctx context.Context, summary *ZoneSummary) error
}

// QueueEntry is a user's position in the activity backfill queue.
type QueueEntry struct {
	UserID             int64
	LastProcessedStart time.Time
	TotalActivities    *int
	NumProcessed       int
	UpdatedAt          time.Time
}

// QueueRepository captures the resumable per-user backfill queue.
type QueueRepository interface {
	// Enqueue adds the user if absent; reports whether a new entry was created.
	Enqueue(ctx context.Context, userID int64, totalActivities *int) (bool, error)
	// NextEntry returns the stalest entry or (nil, nil) when the queue is empty.
	NextEntry(ctx context.Context) (*QueueEntry, error)
	// AdvanceCursor records batch progress and moves the entry to the back of the queue.
	AdvanceCursor(ctx context.Context, userID int64, lastStart time.Time, processedDelta int) error
	// Requeue pushes a failed entry to the back of the queue without progress.
	Requeue(ctx context.Context, userID int64) error
	Remove(ctx context.Context, userID int64) error
	// Depth counts the users still waiting in the queue.
	Depth(ctx context.Context) (int, error)
}
