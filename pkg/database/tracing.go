package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aipowereddevteam/auth2026/pkg/database"

var slowOps struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowQueryLogging configures slow operation detection for both SQL
// statements and Redis commands. A zero threshold disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowOps.mu.Lock()
	defer slowOps.mu.Unlock()
	slowOps.threshold = threshold
	slowOps.logger = logger
}

func slowOpConfig() (time.Duration, *slog.Logger) {
	slowOps.mu.RLock()
	defer slowOps.mu.RUnlock()
	return slowOps.threshold, slowOps.logger
}

// TraceQuery starts a span for a SQL statement. The returned function must be
// called when the statement completes:
//
//	ctx, end := database.TraceQuery(ctx, "FindPrincipalByEmail", query)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	return traceOp(ctx, "postgresql", operation, attribute.String("db.statement", statement))
}

// TraceCommand starts a span for a key-value store command. Only the key
// namespace is recorded; keys may embed tokens.
func TraceCommand(ctx context.Context, command, keyspace string) (context.Context, func(error)) {
	return traceOp(ctx, "redis", command, attribute.String("db.redis.keyspace", keyspace))
}

func traceOp(ctx context.Context, system, operation string, detail attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			detail,
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		threshold, logger := slowOpConfig()
		if threshold <= 0 || logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= threshold {
			attrs := []any{
				slog.String("system", system),
				slog.String("operation", operation),
				slog.String(string(detail.Key), detail.Value.Emit()),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.WarnContext(ctx, "slow database operation", attrs...)
		}
	}
}
