package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"example.com/hrzones/internal/domain"
	"example.com/hrzones/internal/observability"
)

// QueueRunner drains the backfill queue one user at a time. Each sweep picks
// the stalest entry, processes one batch of that user's activities, and either
// advances the cursor or removes the finished entry.
type QueueRunner struct {
	queue            domain.QueueRepository
	worker           *Worker
	pollInterval     time.Duration
	batchSize        int
	logger           *log.Logger
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewQueueRunner constructs a QueueRunner.
func NewQueueRunner(queue domain.QueueRepository, worker *Worker, pollInterval time.Duration, batchSize int, opts ...RunnerOption) *QueueRunner {
	r := &QueueRunner{
		queue:            queue,
		worker:           worker,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		logger:           log.New(log.Writer(), "[queue] ", log.LstdFlags),
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunnerOption configures optional behaviour for the QueueRunner.
type RunnerOption func(*QueueRunner)

// WithRunnerLogger overrides the runner logger.
func WithRunnerLogger(logger *log.Logger) RunnerOption {
	return func(r *QueueRunner) {
		r.logger = logger
	}
}

// WithRunnerClock overrides the clock used for current-period decisions.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *QueueRunner) {
		r.now = now
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (r *QueueRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer func() {
		ticker.Stop()
		close(r.shutdownComplete)
	}()

	for {
		if err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Printf("error: queue sweep: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the runner stops.
func (r *QueueRunner) Wait() {
	<-r.shutdownComplete
}

// Sweep processes one batch for the stalest queued user.
func (r *QueueRunner) Sweep(ctx context.Context) error {
	if depth, err := r.queue.Depth(ctx); err == nil {
		observability.SetQueueDepth(depth)
	}

	entry, err := r.queue.NextEntry(ctx)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	r.logger.Printf("processing activities for user %d", entry.UserID)

	lastStart, more, processed, err := r.worker.ProcessUserActivities(ctx, entry.UserID, entry.LastProcessedStart, r.batchSize)
	if err != nil {
		r.logger.Printf("error: processing activities for user %d: %v", entry.UserID, err)
		// Push to the back of the queue and retry later. Summaries are not
		// touched when processing itself fails.
		return r.queue.Requeue(ctx, entry.UserID)
	}

	if !lastStart.IsZero() {
		if err := r.worker.RefreshSummaries(ctx, entry.UserID, lastStart.UTC().Year(), lastStart.UTC().Month()); err != nil {
			r.logger.Printf("error: refreshing summaries for user %d: %v", entry.UserID, err)
		}
	}

	if !more {
		r.logger.Printf("all activities processed for user %d, removing from queue", entry.UserID)
		if err := r.queue.Remove(ctx, entry.UserID); err != nil {
			return err
		}
		return r.refreshCurrentMonth(ctx, entry.UserID, lastStart)
	}

	if !lastStart.IsZero() {
		if err := r.queue.AdvanceCursor(ctx, entry.UserID, lastStart, processed); err != nil {
			return err
		}
		r.logger.Printf("batch processed for user %d, next batch starts from %s", entry.UserID, lastStart.Format(time.RFC3339))
	}
	// A full batch with nothing processed leaves the entry untouched; it is
	// picked up again on a later sweep.
	return nil
}

// refreshCurrentMonth brings the current month's summaries up to date when the
// final batch did not already cover it.
func (r *QueueRunner) refreshCurrentMonth(ctx context.Context, userID int64, lastStart time.Time) error {
	current := r.now().UTC()
	if !lastStart.IsZero() {
		last := lastStart.UTC()
		if last.Year() == current.Year() && last.Month() == current.Month() {
			return nil
		}
	}
	if err := r.worker.RefreshSummaries(ctx, userID, current.Year(), current.Month()); err != nil {
		r.logger.Printf("error: refreshing current month summaries for user %d: %v", userID, err)
	}
	return nil
}
