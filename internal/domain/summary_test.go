package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeConfigRepo struct {
	defaultConfig *ZonesConfig
	err           error
}

func (f *fakeConfigRepo) ConfigsForUser(context.Context, int64) ([]ZonesConfig, error) {
	return nil, nil
}

func (f *fakeConfigRepo) ConfigByCategory(_ context.Context, _ int64, category ActivityCategory) (*ZonesConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if category == CategoryDefault {
		return f.defaultConfig, nil
	}
	return nil, nil
}

func (f *fakeConfigRepo) ZonesForConfig(context.Context, uuid.UUID) ([]HeartRateZone, error) {
	return nil, nil
}

func (f *fakeConfigRepo) ReplaceConfigZones(context.Context, int64, ActivityCategory, []HeartRateZone) (*ZonesConfig, error) {
	return nil, nil
}

type fakeZoneTimes struct {
	results      map[int]ZoneDurations // keyed by month context, 0 for none
	lastFilter   ZoneTimeFilter
	aggregateErr error
}

func (f *fakeZoneTimes) StoreActivityZoneTimes(context.Context, int64, int64, time.Time, map[string]int) error {
	return nil
}

func (f *fakeZoneTimes) DeleteActivityZoneTimes(context.Context, int64, int64) (int64, error) {
	return 0, nil
}

func (f *fakeZoneTimes) AggregateZoneTimes(_ context.Context, filter ZoneTimeFilter, _ uuid.UUID) (ZoneDurations, error) {
	f.lastFilter = filter
	if f.aggregateErr != nil {
		return nil, f.aggregateErr
	}
	return f.results[filter.MonthContext], nil
}

type fakeSummaries struct {
	rows  map[string]*ZoneSummary
	saves int
}

func newFakeSummaries() *fakeSummaries {
	return &fakeSummaries{rows: make(map[string]*ZoneSummary)}
}

func summaryKey(userID int64, periodType PeriodType, year, periodIndex int) string {
	return fmt.Sprintf("%d/%s/%d/%d", userID, periodType, year, periodIndex)
}

func (f *fakeSummaries) GetOrCreateSummary(_ context.Context, userID int64, periodType PeriodType, year, periodIndex int) (*ZoneSummary, bool, error) {
	key := summaryKey(userID, periodType, year, periodIndex)
	if row, ok := f.rows[key]; ok {
		return row, false, nil
	}
	row := &ZoneSummary{
		ID:          uuid.New(),
		UserID:      userID,
		PeriodType:  periodType,
		Year:        year,
		PeriodIndex: periodIndex,
		ZoneTimes:   ZoneDurations{},
	}
	f.rows[key] = row
	return row, true, nil
}

func (f *fakeSummaries) SaveSummaryTimes(_ context.Context, summary *ZoneSummary) error {
	f.saves++
	f.rows[summaryKey(summary.UserID, summary.PeriodType, summary.Year, summary.PeriodIndex)] = summary
	return nil
}

func testSummaryService(t *testing.T, configs ZoneConfigRepository, times ZoneTimeRepository, summaries SummaryRepository) *SummaryService {
	t.Helper()
	return NewSummaryService(configs, times, summaries,
		WithSummaryLogger(log.New(summaryTestWriter{t}, "", 0)))
}

type summaryTestWriter struct {
	t *testing.T
}

func (tw summaryTestWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}

func TestGetOrCreateSummaryIdempotent(t *testing.T) {
	configs := &fakeConfigRepo{defaultConfig: &ZonesConfig{ID: uuid.New(), UserID: 7, Category: CategoryDefault}}
	times := &fakeZoneTimes{results: map[int]ZoneDurations{
		0: {{Name: "Z1", Seconds: 600}, {Name: "Z2", Seconds: 120}},
	}}
	summaries := newFakeSummaries()
	svc := testSummaryService(t, configs, times, summaries)

	first, created, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 0)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, summaries.saves)
	require.True(t, first.ZoneTimes.Equal(ZoneDurations{{Name: "Z1", Seconds: 600}, {Name: "Z2", Seconds: 120}}))

	second, created, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 0)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, summaries.saves, "unchanged facts must not trigger a rewrite")
	require.True(t, second.ZoneTimes.Equal(first.ZoneTimes))
}

func TestGetOrCreateSummaryRecomputesWhenFactsChange(t *testing.T) {
	configs := &fakeConfigRepo{defaultConfig: &ZonesConfig{ID: uuid.New(), UserID: 7, Category: CategoryDefault}}
	times := &fakeZoneTimes{results: map[int]ZoneDurations{
		0: {{Name: "Z1", Seconds: 600}},
	}}
	summaries := newFakeSummaries()
	svc := testSummaryService(t, configs, times, summaries)

	_, _, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 0)
	require.NoError(t, err)

	times.results[0] = ZoneDurations{{Name: "Z1", Seconds: 900}}

	updated, created, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 0)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 2, summaries.saves)
	require.Equal(t, 900, updated.ZoneTimes.SecondsFor("Z1"))
}

func TestGetOrCreateSummaryWeeklyMonthContext(t *testing.T) {
	// An ISO week spanning January and February: the same summary row is
	// recomputed under each month's view and overwritten both times.
	configs := &fakeConfigRepo{defaultConfig: &ZonesConfig{ID: uuid.New(), UserID: 7, Category: CategoryDefault}}
	times := &fakeZoneTimes{results: map[int]ZoneDurations{
		1: {{Name: "Z1", Seconds: 300}},
		2: {{Name: "Z1", Seconds: 500}},
	}}
	summaries := newFakeSummaries()
	svc := testSummaryService(t, configs, times, summaries)

	january, created, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodWeekly, 2024, 5, 1)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 300, january.ZoneTimes.SecondsFor("Z1"))
	require.Equal(t, 1, times.lastFilter.MonthContext)

	february, created, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodWeekly, 2024, 5, 2)
	require.NoError(t, err)
	require.False(t, created, "same row serves both month views")
	require.Equal(t, 500, february.ZoneTimes.SecondsFor("Z1"))
	require.Equal(t, january.ID, february.ID)
}

func TestGetOrCreateSummaryMonthlyIgnoresMonthContext(t *testing.T) {
	configs := &fakeConfigRepo{defaultConfig: &ZonesConfig{ID: uuid.New(), UserID: 7, Category: CategoryDefault}}
	times := &fakeZoneTimes{results: map[int]ZoneDurations{}}
	summaries := newFakeSummaries()
	svc := testSummaryService(t, configs, times, summaries)

	_, _, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 2)
	require.NoError(t, err)
	require.Zero(t, times.lastFilter.MonthContext)
}

func TestGetOrCreateSummaryRequiresDefaultConfig(t *testing.T) {
	configs := &fakeConfigRepo{}
	times := &fakeZoneTimes{}
	summaries := newFakeSummaries()
	svc := testSummaryService(t, configs, times, summaries)

	_, _, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 0)
	require.ErrorIs(t, err, ErrDefaultConfigMissing)
}

func TestGetOrCreateSummaryPropagatesStoreErrors(t *testing.T) {
	configs := &fakeConfigRepo{defaultConfig: &ZonesConfig{ID: uuid.New(), UserID: 7, Category: CategoryDefault}}
	times := &fakeZoneTimes{aggregateErr: errors.New("query timeout")}
	summaries := newFakeSummaries()
	svc := testSummaryService(t, configs, times, summaries)

	_, _, err := svc.GetOrCreateSummary(context.Background(), 7, PeriodMonthly, 2024, 3, 0)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDefaultConfigMissing)
}
