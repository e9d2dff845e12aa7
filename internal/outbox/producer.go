package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer turns outbox rows into Kafka records and delivers them,
// keeping one writer per destination topic. Each record carries the row's
// partition key and an event_type header so consumers can route without
// decoding the payload.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// Publish delivers the given outbox rows grouped per topic. The first failed
// topic aborts delivery so the caller can roll the whole batch back; rows in
// topics already written may be delivered again on retry.
func (p *KafkaProducer) Publish(ctx context.Context, msgs ...Message) error {
	for topic, batch := range buildRecords(msgs) {
		if err := p.writerForTopic(topic).WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("publish %d records to %s: %w", len(batch), topic, err)
		}
	}
	return nil
}

func buildRecords(msgs []Message) map[string][]kafka.Message {
	now := time.Now().UTC()
	batches := make(map[string][]kafka.Message)
	for _, msg := range msgs {
		batches[msg.Topic] = append(batches[msg.Topic], kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: msg.Payload,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
			},
		})
	}
	return batches
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	// The relay is the only producer and batches rows itself, so writes are
	// synchronous with full acks; duplicate delivery is tolerated, loss is not.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
