// Package events publishes pipeline events (search started, completed,
// failed, titles translated) to Kafka. Publishing is fire-and-log: callers
// never let a publish failure affect a search.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Publisher delivers pipeline events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event) error
	Close() error
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic for pipeline events.
	Topic string
	// BatchTimeout bounds how long the writer waits to fill a batch.
	BatchTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic, keyed by search ID so the
// events of one search stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers are required", domain.ErrInvalidInput)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka topic is required", domain.ErrInvalidInput)
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
	}

	return newKafkaPublisher(writer, cfg.Topic, logger, metrics), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		topic:   topic,
		logger:  logger.With().Str("component", "event_publisher").Str("topic", topic).Logger(),
		metrics: metrics,
	}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.metrics.RecordEventFailed(event.EventType)
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SearchID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordEventFailed(event.EventType)
		return fmt.Errorf("write event to kafka: %w", err)
	}

	p.metrics.RecordEventPublished(event.EventType)
	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("search_id", event.SearchID).
		Msg("event published")
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}

// NoopPublisher discards events. It is used when events are disabled.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, *domain.Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// MemoryPublisher keeps events in memory. The CLI uses it to print a trace
// of a search, and tests use it to assert emitted events.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

// Publish implements Publisher.
func (m *MemoryPublisher) Publish(_ context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

// Close implements Publisher.
func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of the published events in order.
func (m *MemoryPublisher) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the event types published so far, in order.
func (m *MemoryPublisher) Types() []string {
	events := m.Events()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	return types
}

// New returns a KafkaPublisher when enabled, otherwise a NoopPublisher.
func New(enabled bool, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (Publisher, error) {
	if !enabled {
		return NoopPublisher{}, nil
	}
	return NewKafkaPublisher(cfg, logger, metrics)
}
