package model

import (
	"encoding/json"
	"time"
)

// EventKind tags the transition an audit event records.
type EventKind string

const (
	EventRequestInit    EventKind = "request.init"
	EventRequestPolled  EventKind = "request.polled"
	EventRequestClaimed EventKind = "request.claimed"
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks whether the event kind is a known value.
func (k EventKind) IsValid() bool {
	switch k {
	case EventRequestInit, EventRequestPolled, EventRequestClaimed:
		return true
	}
	return false
}

// ActorType distinguishes human-initiated from agent-initiated transitions.
type ActorType string

const (
	ActorUser  ActorType = "user"
	ActorAgent ActorType = "agent"
)

// Actor describes who caused an audit event.
type Actor struct {
	Type             ActorType `json:"type"`
	UserID           string    `json:"user_id,omitempty"`
	AgentID          string    `json:"agent_id,omitempty"`
	ClientInstanceID string    `json:"client_instance_id,omitempty"`
}

// AuditEvent is an immutable record of one pairing transition. It is keyed
// by request id but has no lifetime dependency on the request row.
type AuditEvent struct {
	ID        int64           `json:"id"`
	RequestID string          `json:"request_id"`
	Event     EventKind       `json:"event"`
	Actor     Actor           `json:"actor"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
