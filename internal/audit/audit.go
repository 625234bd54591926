// Package audit is the append-only log of pairing transitions.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/events"
	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// Log appends audit events and fans them out to the event bus.
type Log struct {
	store     store.AuditLog
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger

	failures atomic.Int64
}

// Option configures a Log.
type Option func(*Log)

// WithPublisher sets the event bus recorded events are published to.
func WithPublisher(p events.Publisher) Option {
	return func(l *Log) { l.publisher = p }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New returns a Log writing to s. Without options it publishes nowhere and
// logs to slog.Default().
func New(s store.AuditLog, clk clock.Clock, opts ...Option) *Log {
	l := &Log{
		store:     s,
		publisher: &events.NoopPublisher{},
		clock:     clk,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = clock.Real()
	}
	return l
}

// Append persists ev and returns it with its id and timestamp filled in.
// A zero CreatedAt defaults to the log's clock.
func (l *Log) Append(ctx context.Context, ev *model.AuditEvent) (*model.AuditEvent, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.clock.Now()
	}
	if err := model.ValidateAuditEvent(ev); err != nil {
		return nil, err
	}
	if err := l.store.AppendEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	return ev, nil
}

// ListByRequest returns every event recorded for requestID, oldest first.
// Events outlive their request, so this works after the request is purged.
func (l *Log) ListByRequest(ctx context.Context, requestID string) ([]*model.AuditEvent, error) {
	evs, err := l.store.ListEvents(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return evs, nil
}

// Record appends ev and publishes it. Neither failure is returned: a
// transition that already committed is not undone because its audit trail
// could not be written.
func (l *Log) Record(ctx context.Context, ev *model.AuditEvent, req *model.PairingRequest) {
	if _, err := l.Append(ctx, ev); err != nil {
		l.failures.Add(1)
		l.logger.Warn("failed to record audit event",
			"event", ev.Event, "request_id", ev.RequestID, "error", err)
		return
	}

	payload := events.RequestEvent{Audit: ev}
	if req != nil {
		payload.ClientID = req.ClientID
		payload.Status = req.Status
	}
	if err := l.publisher.Publish(ctx, events.TopicFor(ev.Event), payload); err != nil {
		l.logger.Warn("failed to publish audit event",
			"event", ev.Event, "request_id", ev.RequestID, "error", err)
	}
}

// Failures reports how many Record calls failed to persist their event.
func (l *Log) Failures() int64 {
	return l.failures.Load()
}
