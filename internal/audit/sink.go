package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgkafka "github.com/aipowereddevteam/auth2026/pkg/kafka"
	"github.com/aipowereddevteam/auth2026/pkg/logger"
)

// Kafka envelope constants.
const (
	AggregateTypePrincipal = "principal"
	SourceAuthService      = "authd"
)

// TopicAuditRecorded receives every audit entry.
var TopicAuditRecorded = pkgkafka.Topic("audit", "recorded")

// Publisher is the part of pkg/kafka.Producer the sink uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// BreakerConfig tunes the circuit breaker in front of Kafka.
type BreakerConfig struct {
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns conservative defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Timeout: 30 * time.Second, ConsecutiveFailures: 5}
}

// KafkaSink publishes entries to Kafka. While the broker is failing, the
// breaker opens and writes fail fast instead of holding the worker for a
// full write timeout each.
type KafkaSink struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[any]
}

// NewKafkaSink wraps publisher in a circuit breaker named "audit-kafka".
func NewKafkaSink(publisher Publisher, cfg BreakerConfig, l *slog.Logger) *KafkaSink {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	settings := gobreaker.Settings{
		Name:        "audit-kafka",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
			l.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	breakerState.WithLabelValues(settings.Name).Set(stateToFloat(gobreaker.StateClosed))

	return &KafkaSink{
		publisher: publisher,
		breaker:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Write publishes e keyed by principal id.
func (s *KafkaSink) Write(ctx context.Context, e Entry) error {
	event, err := pkgkafka.NewEventAt(e.Timestamp, string(e.Action),
		strconv.FormatInt(e.PrincipalID, 10), AggregateTypePrincipal, SourceAuthService, e)
	if err != nil {
		return fmt.Errorf("create audit event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	_, err = s.breaker.Execute(func() (any, error) {
		return nil, s.publisher.Publish(ctx, TopicAuditRecorded, event)
	})
	if err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (s *KafkaSink) State() gobreaker.State {
	return s.breaker.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// LogSink writes entries as structured log lines. Used when Kafka is not
// configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(l *slog.Logger) *LogSink {
	return &LogSink{logger: l}
}

// Write logs e at info level.
func (s *LogSink) Write(ctx context.Context, e Entry) error {
	s.logger.InfoContext(ctx, "audit",
		slog.String("action", string(e.Action)),
		slog.Int64("principal_id", e.PrincipalID),
		slog.String("ip", e.IP),
		slog.String("user_agent", e.UserAgent),
		slog.String("details", e.Details),
		slog.Time("timestamp", e.Timestamp),
	)
	return nil
}
