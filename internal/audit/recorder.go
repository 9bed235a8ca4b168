package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink persists entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Recorder hands entries to a Sink from a single worker goroutine. The queue
// is bounded; when it is full new entries are dropped and counted.
type Recorder struct {
	sink         Sink
	logger       *slog.Logger
	queue        chan queued
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type queued struct {
	ctx   context.Context
	entry Entry
}

// NewRecorder starts a recorder with room for bufferSize pending entries.
func NewRecorder(sink Sink, bufferSize int, writeTimeout time.Duration, logger *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	r := &Recorder{
		sink:         sink,
		logger:       logger,
		queue:        make(chan queued, bufferSize),
		writeTimeout: writeTimeout,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e without blocking. The request context is kept for trace
// and correlation ids but not for cancellation.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		entriesTotal.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case r.queue <- queued{ctx: context.WithoutCancel(ctx), entry: e}:
		queueDepth.Set(float64(len(r.queue)))
	default:
		entriesTotal.WithLabelValues("dropped").Inc()
		r.logger.WarnContext(ctx, "audit queue full, entry dropped",
			slog.String("action", string(e.Action)),
			slog.Int64("principal_id", e.PrincipalID),
		)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for q := range r.queue {
		queueDepth.Set(float64(len(r.queue)))
		r.write(q)
	}
}

func (r *Recorder) write(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, r.writeTimeout)
	defer cancel()

	if err := r.sink.Write(ctx, q.entry); err != nil {
		entriesTotal.WithLabelValues("failed").Inc()
		// The log line doubles as a fallback record of the entry.
		r.logger.ErrorContext(ctx, "audit sink write failed",
			slog.String("error", err.Error()),
			slog.String("action", string(q.entry.Action)),
			slog.Int64("principal_id", q.entry.PrincipalID),
			slog.String("ip", q.entry.IP),
			slog.String("details", q.entry.Details),
		)
		return
	}
	entriesTotal.WithLabelValues("recorded").Inc()
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// end, whichever comes first.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
