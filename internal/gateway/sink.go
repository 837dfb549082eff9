package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/sydlexius/tributary/internal/event"
	"github.com/sydlexius/tributary/internal/provider"
)

// OutcomeSuccess is the Outcome of an attempt that returned without error.
// Failed attempts carry the error kind's name.
const OutcomeSuccess = "success"

// AttemptEvent describes one provider call attempt.
type AttemptEvent struct {
	Provider    provider.ProviderName
	Operation   provider.Operation
	Attempt     int
	MaxAttempts int
	Duration    time.Duration
	Outcome     string
	Retryable   bool

	// Diagnostics, set only for timeout, rate_limited and dependency failures.
	StatusCode int
	RetryAfter time.Duration
	Cause      string
}

// Sink receives attempt events. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	RecordAttempt(ctx context.Context, ev AttemptEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev AttemptEvent)

// RecordAttempt calls f.
func (f SinkFunc) RecordAttempt(ctx context.Context, ev AttemptEvent) { f(ctx, ev) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// RecordAttempt forwards ev to every non-nil sink.
func (m MultiSink) RecordAttempt(ctx context.Context, ev AttemptEvent) {
	for _, s := range m {
		if s != nil {
			s.RecordAttempt(ctx, ev)
		}
	}
}

// LogSink writes attempt events as structured log records: successes at
// debug, failures at warn.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "gateway"))}
}

// RecordAttempt logs ev.
func (s *LogSink) RecordAttempt(ctx context.Context, ev AttemptEvent) {
	attrs := []slog.Attr{
		slog.String("provider", string(ev.Provider)),
		slog.String("operation", string(ev.Operation)),
		slog.Int("attempt", ev.Attempt),
		slog.Int("max_attempts", ev.MaxAttempts),
		slog.Duration("duration", ev.Duration),
		slog.String("outcome", ev.Outcome),
	}
	if ev.Outcome == OutcomeSuccess {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "provider attempt", attrs...)
		return
	}
	attrs = append(attrs, slog.Bool("retryable", ev.Retryable))
	if ev.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status_code", ev.StatusCode))
	}
	if ev.RetryAfter > 0 {
		attrs = append(attrs, slog.Duration("retry_after", ev.RetryAfter))
	}
	if ev.Cause != "" {
		attrs = append(attrs, slog.String("cause", ev.Cause))
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "provider attempt failed", attrs...)
}

// BusSink publishes attempt events on the event bus as
// event.ProviderAttempt.
type BusSink struct {
	bus *event.Bus
}

// NewBusSink creates a BusSink.
func NewBusSink(bus *event.Bus) *BusSink {
	return &BusSink{bus: bus}
}

// RecordAttempt publishes ev.
func (s *BusSink) RecordAttempt(_ context.Context, ev AttemptEvent) {
	data := map[string]any{
		"provider":     string(ev.Provider),
		"operation":    string(ev.Operation),
		"attempt":      ev.Attempt,
		"max_attempts": ev.MaxAttempts,
		"duration_ms":  ev.Duration.Milliseconds(),
		"outcome":      ev.Outcome,
	}
	if ev.Outcome != OutcomeSuccess {
		data["retryable"] = ev.Retryable
	}
	if ev.StatusCode != 0 {
		data["status_code"] = ev.StatusCode
	}
	if ev.RetryAfter > 0 {
		data["retry_after_ms"] = ev.RetryAfter.Milliseconds()
	}
	if ev.Cause != "" {
		data["cause"] = ev.Cause
	}
	s.bus.Publish(event.Event{Type: event.ProviderAttempt, Data: data})
}

type nopSink struct{}

func (nopSink) RecordAttempt(context.Context, AttemptEvent) {}

// attemptEvent builds the event for one finished attempt. err is nil on
// success.
func attemptEvent(name provider.ProviderName, op provider.Operation, attempt, maxAttempts int, d time.Duration, err *Error) AttemptEvent {
	ev := AttemptEvent{
		Provider:    name,
		Operation:   op,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Duration:    d,
		Outcome:     OutcomeSuccess,
	}
	if err == nil {
		return ev
	}
	ev.Outcome = err.Kind.String()
	ev.Retryable = err.Retryable()
	if ev.Retryable {
		ev.StatusCode = err.StatusCode
		ev.RetryAfter = err.RetryAfter
		if err.Cause != nil {
			ev.Cause = err.Cause.Error()
		}
	}
	return ev
}
