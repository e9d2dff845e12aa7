// Package events defines the payloads exchanged over Kafka: inbound webhook
// relay messages consumed by the worker and outbound notifications published
// through the outbox.
package events

import "time"

// Inbound event types, set by the webhook relay in the event_type header.
const (
	TypeActivityCreated      = "activity.created"
	TypeActivityUpdated      = "activity.updated"
	TypeActivityDeleted      = "activity.deleted"
	TypeAthleteSyncRequested = "athlete.sync_requested"
)

// Outbound event types recorded in the outbox.
const (
	TypeActivityZonesComputed = "activity.zones_computed"
	TypeSummaryUpdated        = "summary.updated"
)

// WebhookActivityEvent is the relayed form of a provider webhook touching a
// single activity.
type WebhookActivityEvent struct {
	UserID     int64     `json:"user_id"`
	ActivityID int64     `json:"activity_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// AthleteSyncRequested asks the worker to refresh an athlete's zone
// configuration and enqueue a full history backfill.
type AthleteSyncRequested struct {
	UserID     int64     `json:"user_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// ActivityZonesComputed is emitted after time-in-zone facts for one activity
// are stored.
type ActivityZonesComputed struct {
	UserID       int64          `json:"user_id"`
	ActivityID   int64          `json:"activity_id"`
	ActivityDate time.Time      `json:"activity_date"`
	ZoneSeconds  map[string]int `json:"zone_seconds"`
	ComputedAt   time.Time      `json:"computed_at"`
}

// SummaryUpdated is emitted when a periodic summary is created or its cached
// mapping is overwritten.
type SummaryUpdated struct {
	UserID      int64     `json:"user_id"`
	PeriodType  string    `json:"period_type"`
	Year        int       `json:"year"`
	PeriodIndex int       `json:"period_index"`
	UpdatedAt   time.Time `json:"updated_at"`
}
