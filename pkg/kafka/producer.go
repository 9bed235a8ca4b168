package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// TopicPrefix namespaces every topic this service writes to.
const TopicPrefix = "auth"

// Topic builds a topic name such as "auth.audit.recorded".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Async        bool
}

// DefaultProducerConfig returns defaults for the Kafka producer.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        false,
	}
}

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events through a kafka-go writer.
type Producer struct {
	writer  MessageWriter
	brokers []string
	logger  *slog.Logger
}

// NewProducer creates a new Kafka producer. No connection is made until the
// first publish.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Async:        cfg.Async,
		RequiredAcks: kafka.RequireAll,
	}
	return NewProducerWithWriter(w, cfg.Brokers, logger)
}

// NewProducerWithWriter creates a producer around an existing writer.
func NewProducerWithWriter(w MessageWriter, brokers []string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{writer: w, brokers: brokers, logger: logger}
}

// Publish sends an event to the given topic, keyed by aggregate ID so events
// for one principal keep their order.
func (p *Producer) Publish(ctx context.Context, topic string, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "source", Value: []byte(event.Source)},
	}
	if event.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(event.CorrelationID)})
	}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&headers))

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(event.AggregateID),
		Value:   data,
		Headers: headers,
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	ProducerPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		ProducerPublishErrors.WithLabelValues(topic).Inc()
		return fmt.Errorf("publish event to %s: %w", topic, err)
	}
	ProducerMessagesPublished.WithLabelValues(topic).Inc()

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
	)
	return nil
}

// Ping checks Kafka broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers returns nil if at least one broker answers a metadata request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka ping: all brokers unreachable: %w", lastErr)
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
