package orchestrator

import (
	"context"
	"time"
)

// EventType names a session transition.
type EventType string

const (
	EventCreated   EventType = "created"
	EventStarted   EventType = "started"
	EventPhase     EventType = "phase"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Terminal reports whether no further event follows for the session.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed || t == EventCancelled
}

// Event is published on every session transition.
type Event struct {
	SessionID  string    `json:"session_id"`
	Type       EventType `json:"type"`
	Status     Status    `json:"status"`
	Phase      Phase     `json:"phase"`
	ErrorCount int       `json:"error_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher receives session transitions. Publish errors are logged
// and never affect the session.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Persister stores finished sessions.
type Persister interface {
	Persist(ctx context.Context, s Session) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func terminalEvent(s Status) EventType {
	switch s {
	case StatusCompleted:
		return EventCompleted
	case StatusCancelled:
		return EventCancelled
	default:
		return EventFailed
	}
}
