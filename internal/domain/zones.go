// Package domain defines the business entities and logic for the zone-time service.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDefaultConfigMissing indicates the user has no DEFAULT zone configuration.
	// Summary recomputation and batch processing cannot run without one.
	ErrDefaultConfigMissing = errors.New("default zone configuration not found for user")
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidZoneBounds is returned at write time for inverted or negative zone bounds.
	ErrInvalidZoneBounds = errors.New("minimum heart rate cannot be greater than maximum heart rate")
)

// ActivityCategory groups activities that share a zone configuration.
type ActivityCategory string

const (
	CategoryDefault ActivityCategory = "DEFAULT"
	CategoryRun     ActivityCategory = "RUN"
	CategoryRide    ActivityCategory = "RIDE"
)

// CategoryForActivityType maps a Strava activity type string to the
// configuration category it should use. Unknown types fall back to DEFAULT.
func CategoryForActivityType(activityType string) ActivityCategory {
	switch activityType {
	case "Run", "VirtualRun", "TrailRun":
		return CategoryRun
	case "Ride", "VirtualRide", "EBikeRide", "Handcycle", "Velomobile":
		return CategoryRide
	default:
		return CategoryDefault
	}
}

// ZonesConfig groups a user's heart rate zones for one activity category.
// A user has at most one configuration per category; the DEFAULT configuration
// acts as fallback when no category-specific one exists.
type ZonesConfig struct {
	ID        uuid.UUID
	UserID    int64
	Category  ActivityCategory
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HeartRateZone is a named inclusive heart-rate range belonging to one configuration.
type HeartRateZone struct {
	ID       uuid.UUID
	ConfigID uuid.UUID
	Name     string
	MinHR    int
	MaxHR    int
	Order    int
}

// Validate enforces the write-time bounds invariant. Rows already persisted
// with inverted bounds are tolerated and skipped at read time instead.
func (z HeartRateZone) Validate() error {
	if z.MinHR < 0 || z.MaxHR < 0 {
		return ErrInvalidZoneBounds
	}
	if z.MinHR > z.MaxHR {
		return ErrInvalidZoneBounds
	}
	return nil
}

// WellFormed reports whether the zone can participate in attribution.
func (z HeartRateZone) WellFormed() bool {
	return z.Validate() == nil
}

// ActivityZoneTime is the persisted fact of time spent in one zone during one activity.
// Unique per (user, activity, zone name); only positive durations are stored.
type ActivityZoneTime struct {
	ID              uuid.UUID
	UserID          int64
	ActivityID      int64
	ZoneName        string
	DurationSeconds int
	ActivityDate    time.Time
}
