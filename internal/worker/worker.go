// Package worker fetches athletes' activities, computes their time in zone,
// and keeps periodic summaries fresh.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"example.com/hrzones/internal/domain"
	"example.com/hrzones/internal/hrzone"
	"example.com/hrzones/internal/observability"
	"example.com/hrzones/internal/strava"
)

// defaultZoneNames maps provider zone positions to display names used when
// bootstrapping an athlete's default configuration.
var defaultZoneNames = map[int]string{
	1: "Recovery (Easy)",
	2: "Endurance (Easy)",
	3: "Tempo",
	4: "Threshold",
	5: "Anaerobic",
}

// openEndedMaxHR substitutes the provider's -1 marker on the top zone.
const openEndedMaxHR = 220

// ActivitySource is the provider API surface the worker depends on.
type ActivitySource interface {
	FetchActivities(ctx context.Context, userID int64, after time.Time, page, perPage int) ([]strava.ActivitySummary, error)
	CountActivities(ctx context.Context, userID int64, after time.Time) (int, error)
	FetchActivity(ctx context.Context, userID, activityID int64) (*strava.ActivitySummary, error)
	FetchActivityStreams(ctx context.Context, userID, activityID int64) (map[string]any, error)
	FetchAthleteZones(ctx context.Context, userID int64) (*strava.AthleteZones, error)
}

// Worker processes activities for individual athletes.
type Worker struct {
	configs   domain.ZoneConfigRepository
	times     domain.ZoneTimeRepository
	source    ActivitySource
	calc      *hrzone.Calculator
	summaries *domain.SummaryService
	logger    *log.Logger
}

// Option configures optional behaviour for the Worker.
type Option func(*Worker)

// WithLogger overrides the worker logger.
func WithLogger(logger *log.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New constructs a Worker.
func New(configs domain.ZoneConfigRepository, times domain.ZoneTimeRepository, source ActivitySource, calc *hrzone.Calculator, summaries *domain.SummaryService, opts ...Option) *Worker {
	w := &Worker{
		configs:   configs,
		times:     times,
		source:    source,
		calc:      calc,
		summaries: summaries,
		logger:    log.New(log.Writer(), "[worker] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// configsByCategory loads the user's configurations keyed by category. The
// DEFAULT configuration must exist; batch processing cannot attribute time
// without one.
func (w *Worker) configsByCategory(ctx context.Context, userID int64) (map[domain.ActivityCategory]*domain.ZonesConfig, error) {
	configs, err := w.configs.ConfigsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load zone configs for user %d: %w", userID, err)
	}

	byCategory := make(map[domain.ActivityCategory]*domain.ZonesConfig, len(configs))
	for i := range configs {
		byCategory[configs[i].Category] = &configs[i]
	}
	if byCategory[domain.CategoryDefault] == nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrDefaultConfigMissing)
	}
	return byCategory, nil
}

// selectConfig picks the category-specific configuration, falling back to DEFAULT.
func selectConfig(byCategory map[domain.ActivityCategory]*domain.ZonesConfig, activityType string) *domain.ZonesConfig {
	category := domain.CategoryForActivityType(activityType)
	if cfg := byCategory[category]; cfg != nil {
		return cfg
	}
	return byCategory[domain.CategoryDefault]
}

// ProcessUserActivities fetches up to limit activities started after the given
// instant and stores their time-in-zone facts. Returns the start time of the
// last processed activity (zero when none), whether more activities may
// remain, and how many were processed.
func (w *Worker) ProcessUserActivities(ctx context.Context, userID int64, after time.Time, limit int) (time.Time, bool, int, error) {
	w.logger.Printf("starting activity processing for user %d", userID)

	byCategory, err := w.configsByCategory(ctx, userID)
	if err != nil {
		return time.Time{}, false, 0, err
	}

	activities, err := w.source.FetchActivities(ctx, userID, after, 1, limit)
	if err != nil {
		return time.Time{}, false, 0, fmt.Errorf("fetch activities for user %d: %w", userID, err)
	}
	if len(activities) == 0 {
		w.logger.Printf("no new activities found for user %d", userID)
		return time.Time{}, false, 0, nil
	}

	processed := 0
	var lastStart time.Time
	for _, activity := range activities {
		if activity.ID == 0 {
			w.logger.Printf("activity without id for user %d, skipping", userID)
			observability.RecordActivitySkipped("missing_id")
			continue
		}
		if !activity.HasHeartrate {
			w.logger.Printf("activity %d for user %d has no heart rate data, skipping", activity.ID, userID)
			observability.RecordActivitySkipped("no_heartrate")
			continue
		}

		cfg := selectConfig(byCategory, activity.Type)
		if err := w.computeAndStore(ctx, userID, activity, cfg); err != nil {
			w.logger.Printf("error: activity %d for user %d: %v", activity.ID, userID, err)
			observability.RecordActivitySkipped("processing_failed")
			continue
		}

		processed++
		lastStart = activity.StartDate
		observability.RecordActivityProcessed(string(cfg.Category), activity.StartDate)
	}

	more := len(activities) == limit
	w.logger.Printf("finished processing %d activities for user %d", processed, userID)
	return lastStart, more, processed, nil
}

// computeAndStore fetches one activity's streams, attributes its time, and
// persists the positive durations.
func (w *Worker) computeAndStore(ctx context.Context, userID int64, activity strava.ActivitySummary, cfg *domain.ZonesConfig) error {
	payload, err := w.source.FetchActivityStreams(ctx, userID, activity.ID)
	if err != nil {
		return fmt.Errorf("fetch streams: %w", err)
	}

	streams := hrzone.ParseActivityStreams(payload)
	if len(streams.Time) == 0 || len(streams.HeartRate) == 0 {
		return errors.New("time or heartrate stream missing")
	}

	zoneTimes := w.calc.TimeInZones(ctx, streams, cfg)
	if outside := zoneTimes[hrzone.OutsideZonesKey]; outside > 0 {
		w.logger.Printf("warning: %d s outside any zone for activity %d", outside, activity.ID)
	}
	delete(zoneTimes, hrzone.OutsideZonesKey)

	positive := make(map[string]int, len(zoneTimes))
	for name, seconds := range zoneTimes {
		if seconds > 0 {
			positive[name] = seconds
		}
	}
	if len(positive) == 0 {
		return nil
	}

	return w.times.StoreActivityZoneTimes(ctx, userID, activity.ID, activity.StartDate, positive)
}

// ProcessNewActivity handles a single activity notification, then refreshes
// the summaries of the month the activity falls in.
func (w *Worker) ProcessNewActivity(ctx context.Context, userID, activityID int64) error {
	w.logger.Printf("processing activity %d for user %d", activityID, userID)

	activity, err := w.source.FetchActivity(ctx, userID, activityID)
	if err != nil {
		return fmt.Errorf("fetch activity %d: %w", activityID, err)
	}
	if !activity.HasHeartrate {
		w.logger.Printf("activity %d has no heart rate data, skipping", activityID)
		observability.RecordActivitySkipped("no_heartrate")
		return nil
	}

	byCategory, err := w.configsByCategory(ctx, userID)
	if err != nil {
		return err
	}

	cfg := selectConfig(byCategory, activity.Type)
	if err := w.computeAndStore(ctx, userID, *activity, cfg); err != nil {
		return fmt.Errorf("activity %d: %w", activityID, err)
	}
	observability.RecordActivityProcessed(string(cfg.Category), activity.StartDate)

	start := activity.StartDate.UTC()
	if err := w.RefreshSummaries(ctx, userID, start.Year(), start.Month()); err != nil {
		return fmt.Errorf("refresh summaries after activity %d: %w", activityID, err)
	}

	w.logger.Printf("successfully processed activity %d", activityID)
	return nil
}

// DeleteActivity removes the stored facts for an activity deleted upstream.
func (w *Worker) DeleteActivity(ctx context.Context, userID, activityID int64) error {
	deleted, err := w.times.DeleteActivityZoneTimes(ctx, userID, activityID)
	if err != nil {
		return fmt.Errorf("delete activity %d for user %d: %w", activityID, userID, err)
	}
	if deleted == 0 {
		w.logger.Printf("no records found for activity %d", activityID)
		return nil
	}
	w.logger.Printf("deleted %d records for activity %d for user %d", deleted, activityID, userID)
	return nil
}

// SyncAthleteZones fetches the athlete's zone settings from the provider and
// replaces the DEFAULT configuration's zones with them. An empty provider
// response clears the existing zones.
func (w *Worker) SyncAthleteZones(ctx context.Context, userID int64) error {
	w.logger.Printf("fetching provider heart rate zones for user %d", userID)

	athleteZones, err := w.source.FetchAthleteZones(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch athlete zones for user %d: %w", userID, err)
	}

	zones := make([]domain.HeartRateZone, 0, len(athleteZones.HeartRate.Zones))
	for idx, rng := range athleteZones.HeartRate.Zones {
		order := idx + 1
		maxHR := rng.Max
		if maxHR == -1 {
			maxHR = openEndedMaxHR
		}
		name, ok := defaultZoneNames[order]
		if !ok {
			name = fmt.Sprintf("Zone %d", order)
		}
		zones = append(zones, domain.HeartRateZone{
			Name:  name,
			MinHR: rng.Min,
			MaxHR: maxHR,
			Order: order,
		})
	}

	if _, err := w.configs.ReplaceConfigZones(ctx, userID, domain.CategoryDefault, zones); err != nil {
		return fmt.Errorf("store zones for user %d: %w", userID, err)
	}
	w.logger.Printf("stored %d heart rate zones for user %d", len(zones), userID)
	return nil
}

// RefreshSummaries recomputes the monthly summary and every weekly summary
// overlapping the given month.
func (w *Worker) RefreshSummaries(ctx context.Context, userID int64, year int, month time.Month) error {
	w.logger.Printf("updating zone summaries for user %d, period %d-%02d", userID, year, int(month))

	if _, _, err := w.summaries.GetOrCreateSummary(ctx, userID, domain.PeriodMonthly, year, int(month), 0); err != nil {
		return fmt.Errorf("monthly summary %d-%02d: %w", year, int(month), err)
	}

	for _, week := range domain.WeeksInMonth(year, month) {
		if _, _, err := w.summaries.GetOrCreateSummary(ctx, userID, domain.PeriodWeekly, year, week, int(month)); err != nil {
			return fmt.Errorf("weekly summary %d week %d: %w", year, week, err)
		}
	}
	return nil
}
