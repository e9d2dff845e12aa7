package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ZoneSummary is the cached aggregate of zone time across all of a user's
// activities in one week or month. It is recomputed on every request and
// rewritten only when the freshly computed mapping differs.
type ZoneSummary struct {
	ID          uuid.UUID
	UserID      int64
	PeriodType  PeriodType
	Year        int
	PeriodIndex int
	ZoneTimes   ZoneDurations
	UpdatedAt   time.Time
}

// SummaryService recomputes and caches periodic zone summaries.
type SummaryService struct {
	configs   ZoneConfigRepository
	times     ZoneTimeRepository
	summaries SummaryRepository
	logger    *log.Logger
}

// SummaryOption configures optional behaviour for the SummaryService.
type SummaryOption func(*SummaryService)

// WithSummaryLogger overrides the service logger.
func WithSummaryLogger(logger *log.Logger) SummaryOption {
	return func(s *SummaryService) {
		s.logger = logger
	}
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(configs ZoneConfigRepository, times ZoneTimeRepository, summaries SummaryRepository, opts ...SummaryOption) *SummaryService {
	s := &SummaryService{
		configs:   configs,
		times:     times,
		summaries: summaries,
		logger:    log.New(log.Writer(), "[summary] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateSummary fetches or creates the summary row for the period, then
// unconditionally recomputes the expected mapping from per-activity facts and
// persists it only when the row is new or the mapping changed. monthContext
// (0 = unset) narrows a weekly period to one calendar month, disambiguating
// ISO weeks that span a month boundary.
//
// Returns ErrDefaultConfigMissing when the user has no DEFAULT configuration;
// zone ordering cannot be resolved without one.
func (s *SummaryService) GetOrCreateSummary(ctx context.Context, userID int64, periodType PeriodType, year, periodIndex, monthContext int) (*ZoneSummary, bool, error) {
	summary, created, err := s.summaries.GetOrCreateSummary(ctx, userID, periodType, year, periodIndex)
	if err != nil {
		return nil, false, fmt.Errorf("get or create summary: %w", err)
	}

	defaultConfig, err := s.configs.ConfigByCategory(ctx, userID, CategoryDefault)
	if err != nil {
		return nil, false, fmt.Errorf("lookup default config for user %d: %w", userID, err)
	}
	if defaultConfig == nil {
		return nil, false, ErrDefaultConfigMissing
	}

	filter := ZoneTimeFilter{
		UserID:      userID,
		Year:        year,
		PeriodType:  periodType,
		PeriodIndex: periodIndex,
	}
	if periodType == PeriodWeekly {
		filter.MonthContext = monthContext
	}

	computed, err := s.times.AggregateZoneTimes(ctx, filter, defaultConfig.ID)
	if err != nil {
		return nil, false, fmt.Errorf("aggregate zone times: %w", err)
	}

	if created || !summary.ZoneTimes.Equal(computed) {
		summary.ZoneTimes = computed
		if err := s.summaries.SaveSummaryTimes(ctx, summary); err != nil {
			return nil, false, fmt.Errorf("save summary: %w", err)
		}
		s.logger.Printf("summary for user %d %s %d-%d (month context %d) updated, %d zones",
			userID, periodType, year, periodIndex, monthContext, len(computed))
	}

	return summary, created, nil
}
