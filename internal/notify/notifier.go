// Package notify implements the deduplicated notification sink: stdout,
// email, and Telegram delivery gated by a per-(handler, image) dedupe
// registry so a recurring condition produces at most one message per
// distinct log kind (spec §6-7, §9 "Dedup registry").
package notify

import (
	"context"
	"sync"
	"time"
)

// EventType identifies what happened during a reconcile tick.
type EventType string

const (
	EventUpdateApplied EventType = "update_applied"
	EventRestart       EventType = "restart"
	EventNotifyOnly    EventType = "notify_only"
	EventError         EventType = "error"
)

// Event represents a notification event.
type Event struct {
	// ID is a unique correlation identifier for this notification, minted
	// fresh per distinct occurrence (spec §6's notification surface) —
	// unlike the dedupe gate's logID, which is deliberately deterministic
	// content, ID exists purely so a delivered message can be traced back
	// to the tick that produced it.
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Handler    string    `json:"handler"`
	Deployment string    `json:"deployment"`
	Container  string    `json:"container"`
	Image      string    `json:"image"`
	FromTag    string    `json:"from_tag,omitempty"`
	ToTag      string    `json:"to_tag,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink sends events to an external system.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Name() string
}

// Logger is a minimal logging interface to avoid importing the logging
// package directly into notify.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Multi fans out events to multiple sinks. It never returns errors —
// failures are logged but must not block a reconcile tick.
type Multi struct {
	mu    sync.RWMutex
	sinks []Sink
	log   Logger
}

// NewMulti creates a dispatcher from the given sinks.
func NewMulti(log Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: log}
}

// Notify sends an event to every registered sink. Errors are logged but
// never propagated, matching spec §7's NotificationTransportFailure policy
// ("logged to stdout only; never fails the tick").
func (m *Multi) Notify(ctx context.Context, event Event) {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(ctx, event); err != nil {
			m.log.Error("notification failed",
				"provider", s.Name(),
				"event", string(event.Type),
				"handler", event.Handler,
				"deployment", event.Deployment,
				"error", err.Error(),
			)
		}
	}
}

// Reconfigure replaces the sink chain at runtime.
func (m *Multi) Reconfigure(sinks ...Sink) {
	m.mu.Lock()
	m.sinks = sinks
	m.mu.Unlock()
}
