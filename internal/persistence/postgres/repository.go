// Package postgres provides the Postgres-backed persistence layer for zone
// configurations, per-activity zone-time facts, periodic summaries, the
// backfill queue, and the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/hrzones/internal/domain"
	"example.com/hrzones/internal/events"
	"example.com/hrzones/internal/observability"
)

// Repository provides Postgres-backed persistence for the zone worker.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ConfigsForUser returns every zone configuration owned by the user.
func (r *Repository) ConfigsForUser(ctx context.Context, userID int64) ([]domain.ZonesConfig, error) {
	const query = `SELECT id, user_id, category, created_at, updated_at
        FROM zone_configs WHERE user_id=$1 ORDER BY category`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []domain.ZonesConfig
	for rows.Next() {
		var cfg domain.ZonesConfig
		if err := rows.Scan(&cfg.ID, &cfg.UserID, &cfg.Category, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// ConfigByCategory fetches the user's configuration for one category, or
// (nil, nil) when none exists.
func (r *Repository) ConfigByCategory(ctx context.Context, userID int64, category domain.ActivityCategory) (*domain.ZonesConfig, error) {
	const query = `SELECT id, user_id, category, created_at, updated_at
        FROM zone_configs WHERE user_id=$1 AND category=$2`

	var cfg domain.ZonesConfig
	err := r.pool.QueryRow(ctx, query, userID, category).
		Scan(&cfg.ID, &cfg.UserID, &cfg.Category, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ZonesForConfig returns the zones of one configuration in display order.
func (r *Repository) ZonesForConfig(ctx context.Context, configID uuid.UUID) ([]domain.HeartRateZone, error) {
	const query = `SELECT id, config_id, name, min_hr, max_hr, zone_order
        FROM heart_rate_zones WHERE config_id=$1 ORDER BY zone_order, min_hr`

	rows, err := r.pool.Query(ctx, query, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []domain.HeartRateZone
	for rows.Next() {
		var z domain.HeartRateZone
		if err := rows.Scan(&z.ID, &z.ConfigID, &z.Name, &z.MinHR, &z.MaxHR, &z.Order); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// ReplaceConfigZones upserts the (user, category) configuration and swaps its
// zone set in a single transaction.
func (r *Repository) ReplaceConfigZones(ctx context.Context, userID int64, category domain.ActivityCategory, zones []domain.HeartRateZone) (*domain.ZonesConfig, error) {
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zone %q: %w", z.Name, err)
		}
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const upsertConfig = `INSERT INTO zone_configs (id, user_id, category, created_at, updated_at)
        VALUES ($1, $2, $3, now(), now())
        ON CONFLICT (user_id, category) DO UPDATE SET updated_at = now()
        RETURNING id, user_id, category, created_at, updated_at`

	var cfg domain.ZonesConfig
	if err := tx.QueryRow(ctx, upsertConfig, uuid.New(), userID, category).
		Scan(&cfg.ID, &cfg.UserID, &cfg.Category, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM heart_rate_zones WHERE config_id=$1`, cfg.ID); err != nil {
		return nil, err
	}

	const insertZone = `INSERT INTO heart_rate_zones (id, config_id, name, min_hr, max_hr, zone_order)
        VALUES ($1, $2, $3, $4, $5, $6)`
	for _, z := range zones {
		if _, err := tx.Exec(ctx, insertZone, uuid.New(), cfg.ID, z.Name, z.MinHR, z.MaxHR, z.Order); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StoreActivityZoneTimes upserts one fact row per zone and records the
// zones-computed outbox event inside the same transaction.
func (r *Repository) StoreActivityZoneTimes(ctx context.Context, userID, activityID int64, activityDate time.Time, seconds map[string]int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const upsert = `INSERT INTO activity_zone_times (id, user_id, activity_id, zone_name, duration_seconds, activity_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, activity_id, zone_name)
        DO UPDATE SET duration_seconds = EXCLUDED.duration_seconds, activity_date = EXCLUDED.activity_date`

	names := make([]string, 0, len(seconds))
	for name := range seconds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := tx.Exec(ctx, upsert, uuid.New(), userID, activityID, name, seconds[name], activityDate); err != nil {
			return err
		}
	}

	payload := events.ActivityZonesComputed{
		UserID:       userID,
		ActivityID:   activityID,
		ActivityDate: activityDate,
		ZoneSeconds:  seconds,
		ComputedAt:   time.Now().UTC(),
	}
	key := fmt.Sprintf("%d", userID)
	if err := insertOutbox(ctx, tx, events.TypeActivityZonesComputed, key, payload); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteActivityZoneTimes removes every fact row for one activity and reports
// how many rows were deleted.
func (r *Repository) DeleteActivityZoneTimes(ctx context.Context, userID, activityID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM activity_zone_times WHERE user_id=$1 AND activity_id=$2`, userID, activityID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AggregateZoneTimes sums matching facts per zone name, ordered by the default
// configuration's zone order with alphabetical fallback for unknown names.
func (r *Repository) AggregateZoneTimes(ctx context.Context, filter domain.ZoneTimeFilter, defaultConfigID uuid.UUID) (domain.ZoneDurations, error) {
	query := `SELECT t.zone_name, SUM(t.duration_seconds)::bigint
        FROM activity_zone_times t
        LEFT JOIN heart_rate_zones z ON z.config_id = $2 AND z.name = t.zone_name
        WHERE t.user_id = $1 AND EXTRACT(YEAR FROM t.activity_date) = $3`
	args := []interface{}{filter.UserID, defaultConfigID, filter.Year}

	switch filter.PeriodType {
	case domain.PeriodWeekly:
		query += ` AND EXTRACT(WEEK FROM t.activity_date) = $4`
		args = append(args, filter.PeriodIndex)
		if filter.MonthContext != 0 {
			query += ` AND EXTRACT(MONTH FROM t.activity_date) = $5`
			args = append(args, filter.MonthContext)
		}
	case domain.PeriodMonthly:
		query += ` AND EXTRACT(MONTH FROM t.activity_date) = $4`
		args = append(args, filter.PeriodIndex)
	default:
		return nil, fmt.Errorf("unknown period type: %s", filter.PeriodType)
	}

	query += ` GROUP BY t.zone_name, z.zone_order
        ORDER BY z.zone_order ASC NULLS LAST, t.zone_name ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := domain.ZoneDurations{}
	for rows.Next() {
		var name string
		var total int64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		if total <= 0 {
			continue
		}
		totals = append(totals, domain.ZoneDuration{Name: name, Seconds: int(total)})
	}
	return totals, rows.Err()
}

// GetOrCreateSummary atomically fetches or creates the summary row for one
// period, seeding new rows with an empty mapping.
func (r *Repository) GetOrCreateSummary(ctx context.Context, userID int64, periodType domain.PeriodType, year, periodIndex int) (*domain.ZoneSummary, bool, error) {
	const insert = `INSERT INTO zone_summaries (id, user_id, period_type, year, period_index, zone_times, updated_at)
        VALUES ($1, $2, $3, $4, $5, '{}'::jsonb, now())
        ON CONFLICT (user_id, period_type, year, period_index) DO NOTHING
        RETURNING id, zone_times, updated_at`

	summary := &domain.ZoneSummary{
		UserID:      userID,
		PeriodType:  periodType,
		Year:        year,
		PeriodIndex: periodIndex,
	}

	var raw []byte
	err := r.pool.QueryRow(ctx, insert, uuid.New(), userID, periodType, year, periodIndex).
		Scan(&summary.ID, &raw, &summary.UpdatedAt)
	if err == nil {
		if err := json.Unmarshal(raw, &summary.ZoneTimes); err != nil {
			return nil, false, err
		}
		return summary, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	const query = `SELECT id, zone_times, updated_at FROM zone_summaries
        WHERE user_id=$1 AND period_type=$2 AND year=$3 AND period_index=$4`
	if err := r.pool.QueryRow(ctx, query, userID, periodType, year, periodIndex).
		Scan(&summary.ID, &raw, &summary.UpdatedAt); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(raw, &summary.ZoneTimes); err != nil {
		return nil, false, err
	}
	return summary, false, nil
}

// SaveSummaryTimes overwrites the cached mapping and records the
// summary-updated outbox event inside the same transaction.
func (r *Repository) SaveSummaryTimes(ctx context.Context, summary *domain.ZoneSummary) error {
	raw, err := json.Marshal(summary.ZoneTimes)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE zone_summaries SET zone_times=$1, updated_at=now() WHERE id=$2`,
		raw, summary.ID); err != nil {
		return err
	}

	payload := events.SummaryUpdated{
		UserID:      summary.UserID,
		PeriodType:  string(summary.PeriodType),
		Year:        summary.Year,
		PeriodIndex: summary.PeriodIndex,
		UpdatedAt:   time.Now().UTC(),
	}
	key := fmt.Sprintf("%d", summary.UserID)
	if err := insertOutbox(ctx, tx, events.TypeSummaryUpdated, key, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordSummaryRecomputed()
	return nil
}

// Enqueue adds a user to the backfill queue; reports whether a new entry was created.
func (r *Repository) Enqueue(ctx context.Context, userID int64, totalActivities *int) (bool, error) {
	const stmt = `INSERT INTO processing_queue (user_id, last_processed_start, total_activities, num_processed, updated_at)
        VALUES ($1, $2, $3, 0, now())
        ON CONFLICT (user_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, stmt, userID, domain.DefaultProcessingStart(), totalActivities)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// NextEntry returns the stalest queue entry, or (nil, nil) when the queue is empty.
func (r *Repository) NextEntry(ctx context.Context) (*domain.QueueEntry, error) {
	const query = `SELECT user_id, last_processed_start, total_activities, num_processed, updated_at
        FROM processing_queue ORDER BY updated_at ASC LIMIT 1`

	var entry domain.QueueEntry
	err := r.pool.QueryRow(ctx, query).
		Scan(&entry.UserID, &entry.LastProcessedStart, &entry.TotalActivities, &entry.NumProcessed, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// AdvanceCursor records batch progress and moves the entry to the back of the queue.
func (r *Repository) AdvanceCursor(ctx context.Context, userID int64, lastStart time.Time, processedDelta int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE processing_queue SET last_processed_start=$2, num_processed=num_processed+$3, updated_at=now() WHERE user_id=$1`,
		userID, lastStart, processedDelta)
	return err
}

// Requeue pushes a failed entry to the back of the queue without progress.
func (r *Repository) Requeue(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE processing_queue SET updated_at=now() WHERE user_id=$1`, userID)
	return err
}

// Remove deletes a user's queue entry.
func (r *Repository) Remove(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM processing_queue WHERE user_id=$1`, userID)
	return err
}

// Depth counts the users still waiting in the queue.
func (r *Repository) Depth(ctx context.Context) (int, error) {
	var depth int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM processing_queue`).Scan(&depth)
	return depth, err
}

// AccessToken returns the stored provider token for one athlete.
func (r *Repository) AccessToken(ctx context.Context, userID int64) (string, error) {
	var token string
	err := r.pool.QueryRow(ctx,
		`SELECT access_token FROM athlete_tokens WHERE user_id=$1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("athlete %d: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (event_type, topic, partition_key, payload)
        VALUES ($1, $2, $3, $4)`
	_, err = tx.Exec(ctx, stmt, eventType, meta.Topic, partitionKey, body)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityZonesComputed: {Topic: "zone_time_events"},
	events.TypeSummaryUpdated:        {Topic: "zone_summary_events"},
}
