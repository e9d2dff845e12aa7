package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/hrzones/internal/domain"
	"example.com/hrzones/internal/strava"
)

type memQueue struct {
	entries []domain.QueueEntry

	advanced []time.Time
	requeued []int64
	removed  []int64
	depthErr error
	nextErr  error
}

func (m *memQueue) Enqueue(_ context.Context, userID int64, totalActivities *int) (bool, error) {
	m.entries = append(m.entries, domain.QueueEntry{UserID: userID, TotalActivities: totalActivities})
	return true, nil
}

func (m *memQueue) NextEntry(context.Context) (*domain.QueueEntry, error) {
	if m.nextErr != nil {
		return nil, m.nextErr
	}
	if len(m.entries) == 0 {
		return nil, nil
	}
	entry := m.entries[0]
	return &entry, nil
}

func (m *memQueue) AdvanceCursor(_ context.Context, _ int64, lastStart time.Time, _ int) error {
	m.advanced = append(m.advanced, lastStart)
	return nil
}

func (m *memQueue) Requeue(_ context.Context, userID int64) error {
	m.requeued = append(m.requeued, userID)
	return nil
}

func (m *memQueue) Remove(_ context.Context, userID int64) error {
	m.removed = append(m.removed, userID)
	return nil
}

func (m *memQueue) Depth(context.Context) (int, error) {
	if m.depthErr != nil {
		return 0, m.depthErr
	}
	return len(m.entries), nil
}

func newQueueRunner(t *testing.T, fx workerFixture, queue *memQueue, now time.Time) *QueueRunner {
	t.Helper()
	return NewQueueRunner(queue, fx.worker, time.Minute, 2,
		WithRunnerLogger(testLogger(t)),
		WithRunnerClock(func() time.Time { return now }))
}

func TestSweepEmptyQueue(t *testing.T) {
	fx := newWorkerFixture(t, &stubSource{})
	queue := &memQueue{}

	require.NoError(t, newQueueRunner(t, fx, queue, time.Now()).Sweep(context.Background()))
	require.Empty(t, queue.removed)
	require.Empty(t, queue.requeued)
}

func TestSweepAdvancesCursorWhenMoreRemain(t *testing.T) {
	start := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	source := &stubSource{
		activities: []strava.ActivitySummary{
			{ID: 100, Type: "Run", StartDate: start, HasHeartrate: true},
			{ID: 101, Type: "Run", StartDate: start.Add(time.Hour), HasHeartrate: true},
		},
		streams: map[int64]map[string]any{
			100: streamPayload([]int{0, 60}, []int{100, 100}),
			101: streamPayload([]int{0, 60}, []int{100, 100}),
		},
	}
	fx := newWorkerFixture(t, source)
	queue := &memQueue{entries: []domain.QueueEntry{{UserID: 42, LastProcessedStart: start.Add(-time.Hour)}}}

	require.NoError(t, newQueueRunner(t, fx, queue, start).Sweep(context.Background()))
	require.Equal(t, []time.Time{start.Add(time.Hour)}, queue.advanced)
	require.Empty(t, queue.removed)

	// The processed month's summaries were refreshed along the way.
	require.NotEmpty(t, fx.summaries.rows)
}

func TestSweepRemovesFinishedEntry(t *testing.T) {
	start := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	source := &stubSource{
		activities: []strava.ActivitySummary{
			{ID: 100, Type: "Run", StartDate: start, HasHeartrate: true},
		},
		streams: map[int64]map[string]any{
			100: streamPayload([]int{0, 60}, []int{100, 100}),
		},
	}
	fx := newWorkerFixture(t, source)
	queue := &memQueue{entries: []domain.QueueEntry{{UserID: 42, LastProcessedStart: start.Add(-time.Hour)}}}

	// Clock still inside the processed month: no extra current-month refresh.
	now := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, newQueueRunner(t, fx, queue, now).Sweep(context.Background()))
	require.Equal(t, []int64{42}, queue.removed)
	require.Empty(t, queue.advanced)

	marchRows := len(fx.summaries.rows)
	require.Equal(t, 1+len(domain.WeeksInMonth(2024, time.March)), marchRows)
}

func TestSweepRefreshesCurrentMonthWhenBehind(t *testing.T) {
	start := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	source := &stubSource{
		activities: []strava.ActivitySummary{
			{ID: 100, Type: "Run", StartDate: start, HasHeartrate: true},
		},
		streams: map[int64]map[string]any{
			100: streamPayload([]int{0, 60}, []int{100, 100}),
		},
	}
	fx := newWorkerFixture(t, source)
	queue := &memQueue{entries: []domain.QueueEntry{{UserID: 42, LastProcessedStart: start.Add(-time.Hour)}}}

	// Clock has moved on to May: the final sweep also refreshes May's summaries.
	now := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, newQueueRunner(t, fx, queue, now).Sweep(context.Background()))
	require.Equal(t, []int64{42}, queue.removed)

	expected := 1 + len(domain.WeeksInMonth(2024, time.March)) +
		1 + len(domain.WeeksInMonth(2024, time.May))
	require.Len(t, fx.summaries.rows, expected)
}

func TestSweepRequeuesOnProcessingFailure(t *testing.T) {
	source := &stubSource{}
	configs := newMemConfigs() // no DEFAULT config: processing fails
	times := &memTimes{}
	fx := newWorkerFixture(t, source)
	fx.worker = New(configs, times, source, fx.worker.calc, fx.worker.summaries, WithLogger(testLogger(t)))

	queue := &memQueue{entries: []domain.QueueEntry{{UserID: 42}}}
	require.NoError(t, newQueueRunner(t, fx, queue, time.Now()).Sweep(context.Background()))
	require.Equal(t, []int64{42}, queue.requeued)
	require.Empty(t, queue.removed)
	require.Empty(t, queue.advanced)
}

func TestSweepPropagatesQueueErrors(t *testing.T) {
	fx := newWorkerFixture(t, &stubSource{})
	queue := &memQueue{nextErr: errors.New("connection reset")}

	require.Error(t, newQueueRunner(t, fx, queue, time.Now()).Sweep(context.Background()))
}
