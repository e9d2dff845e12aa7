package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"example.com/hrzones/internal/domain"
	"example.com/hrzones/internal/events"
	"example.com/hrzones/internal/strava"
)

// ZoneWorker is the worker surface driven by webhook events.
type ZoneWorker interface {
	ProcessNewActivity(ctx context.Context, userID, activityID int64) error
	DeleteActivity(ctx context.Context, userID, activityID int64) error
	SyncAthleteZones(ctx context.Context, userID int64) error
}

// ActivityCounter sizes a backfill before it is enqueued.
type ActivityCounter interface {
	CountActivities(ctx context.Context, userID int64, after time.Time) (int, error)
}

// WebhookHandler reacts to relayed provider webhook events.
type WebhookHandler struct {
	worker  ZoneWorker
	queue   domain.QueueRepository
	counter ActivityCounter
	logger  *log.Logger
}

// WebhookOption configures optional behaviour for the WebhookHandler.
type WebhookOption func(*WebhookHandler)

// WithWebhookLogger overrides the handler logger.
func WithWebhookLogger(logger *log.Logger) WebhookOption {
	return func(h *WebhookHandler) {
		h.logger = logger
	}
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(worker ZoneWorker, queue domain.QueueRepository, counter ActivityCounter, opts ...WebhookOption) *WebhookHandler {
	h := &WebhookHandler{
		worker:  worker,
		queue:   queue,
		counter: counter,
		logger:  log.New(log.Writer(), "[webhook] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle routes one decoded webhook event. Malformed payloads and unknown
// event types are logged and committed; returned errors leave the message
// uncommitted for redelivery.
func (h *WebhookHandler) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeActivityCreated, events.TypeActivityUpdated:
		return h.handleActivityUpsert(ctx, msg)
	case events.TypeActivityDeleted:
		return h.handleActivityDelete(ctx, msg)
	case events.TypeAthleteSyncRequested:
		return h.handleSyncRequest(ctx, msg)
	default:
		h.logger.Printf("ignoring unknown event type %q (topic=%s, offset=%d)", msg.EventType, msg.Topic, msg.Offset)
		recordUnknownEvent(msg.EventType)
		return nil
	}
}

func (h *WebhookHandler) handleActivityUpsert(ctx context.Context, msg Message) error {
	var event events.WebhookActivityEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Printf("malformed %s payload (offset=%d): %v", msg.EventType, msg.Offset, err)
		return nil
	}

	err := h.worker.ProcessNewActivity(ctx, event.UserID, event.ActivityID)
	if errors.Is(err, strava.ErrNotFound) {
		// The activity disappeared upstream between the webhook and now.
		h.logger.Printf("activity %d for user %d no longer exists upstream, skipping", event.ActivityID, event.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("process activity %d for user %d: %w", event.ActivityID, event.UserID, err)
	}
	return nil
}

func (h *WebhookHandler) handleActivityDelete(ctx context.Context, msg Message) error {
	var event events.WebhookActivityEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Printf("malformed %s payload (offset=%d): %v", msg.EventType, msg.Offset, err)
		return nil
	}

	if err := h.worker.DeleteActivity(ctx, event.UserID, event.ActivityID); err != nil {
		return fmt.Errorf("delete activity %d for user %d: %w", event.ActivityID, event.UserID, err)
	}
	return nil
}

func (h *WebhookHandler) handleSyncRequest(ctx context.Context, msg Message) error {
	var event events.AthleteSyncRequested
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Printf("malformed %s payload (offset=%d): %v", msg.EventType, msg.Offset, err)
		return nil
	}

	if err := h.worker.SyncAthleteZones(ctx, event.UserID); err != nil {
		return fmt.Errorf("sync zones for user %d: %w", event.UserID, err)
	}

	// The total only feeds progress reporting; a failed count never blocks the backfill.
	var total *int
	if count, err := h.counter.CountActivities(ctx, event.UserID, domain.DefaultProcessingStart()); err != nil {
		h.logger.Printf("warning: counting activities for user %d: %v", event.UserID, err)
	} else {
		total = &count
	}

	created, err := h.queue.Enqueue(ctx, event.UserID, total)
	if err != nil {
		return fmt.Errorf("enqueue user %d: %w", event.UserID, err)
	}
	if created {
		h.logger.Printf("user %d queued for activity backfill", event.UserID)
	} else {
		h.logger.Printf("user %d already queued, keeping existing progress", event.UserID)
	}
	return nil
}
