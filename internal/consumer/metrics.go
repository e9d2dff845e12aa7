package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// The consumer reads a single webhook topic, so signals are keyed by event
// type rather than topic.
var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "webhook",
		Name:      "events_handled_total",
		Help:      "Number of webhook events successfully handled, by event type.",
	}, []string{"event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "webhook",
		Name:      "handler_errors_total",
		Help:      "Number of webhook events left uncommitted for redelivery, by event type.",
	}, []string{"event_type"})

	malformedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "webhook",
		Name:      "malformed_messages_total",
		Help:      "Number of Kafka records committed without handling because they could not be decoded.",
	})

	unknownEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrzone_service",
		Subsystem: "webhook",
		Name:      "unknown_events_total",
		Help:      "Number of webhook events ignored because the event type is not routed.",
	}, []string{"event_type"})

	lastEventGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hrzone_service",
		Subsystem: "webhook",
		Name:      "last_event_timestamp_seconds",
		Help:      "Producer timestamp of the most recent successfully handled event, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(handledCounter, handlerErrorCounter, malformedCounter, unknownEventCounter, lastEventGauge)
}

func recordHandled(msg Message) {
	handledCounter.WithLabelValues(msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastEventGauge.WithLabelValues(msg.EventType).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.EventType).Inc()
}

func recordMalformed() {
	malformedCounter.Inc()
}

func recordUnknownEvent(eventType string) {
	unknownEventCounter.WithLabelValues(eventType).Inc()
}
