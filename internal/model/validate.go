package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field length limits. Ids and tokens are minted server-side, the rest come
// from callers.
const (
	MaxIdentifierLength = 256
	MaxScopeLength      = 1024
	MinRequestIDLength  = 22 // 128 bits in base62; hex ids are 32
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) required(field, value string) {
	v := strings.TrimSpace(value)
	if v == "" {
		e.add(field, "is required")
		return
	}
	if len(v) > MaxIdentifierLength {
		e.add(field, fmt.Sprintf("must be %d characters or fewer", MaxIdentifierLength))
	}
}

// ValidatePairingRequest checks a freshly built request before it is
// inserted. It returns a *ValidationError if any rules fail, or nil.
func ValidatePairingRequest(r *PairingRequest) error {
	var ve ValidationError

	if len(r.ID) < MinRequestIDLength {
		ve.add("id", fmt.Sprintf("must be at least %d characters", MinRequestIDLength))
	}
	ve.required("user_id", r.UserID)
	ve.required("client_id", r.ClientID)
	if len(r.TabID) > MaxIdentifierLength {
		ve.add("tab_id", fmt.Sprintf("must be %d characters or fewer", MaxIdentifierLength))
	}
	if len(r.Scope) > MaxScopeLength {
		ve.add("scope", fmt.Sprintf("must be %d characters or fewer", MaxScopeLength))
	}
	if r.TTLSeconds <= 0 {
		ve.add("ttl_seconds", fmt.Sprintf("must be positive, got %d", r.TTLSeconds))
	}
	if r.Status != StatusPending {
		ve.add("status", fmt.Sprintf("must be %q on creation, got %q", StatusPending, r.Status))
	}
	if r.PollLeaseExpiresAt != nil || r.ClaimToken != "" || r.PolledBy != nil || r.ClaimedBy != nil {
		ve.add("status", "lease and claim fields must be empty on creation")
	}
	if !r.ExpiresAt.Equal(r.CreatedAt.Add(r.TTL())) {
		ve.add("expires_at", "must equal created_at + ttl_seconds")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateAgent checks the agent identity presented to poll and claim.
func ValidateAgent(agentID, clientInstanceID string) error {
	var ve ValidationError
	ve.required("agent_id", agentID)
	if len(clientInstanceID) > MaxIdentifierLength {
		ve.add("client_instance_id", fmt.Sprintf("must be %d characters or fewer", MaxIdentifierLength))
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateAuditEvent checks an audit event before it is appended.
func ValidateAuditEvent(e *AuditEvent) error {
	var ve ValidationError

	if strings.TrimSpace(e.RequestID) == "" {
		ve.add("request_id", "is required")
	}
	if !e.Event.IsValid() {
		ve.add("event", fmt.Sprintf("invalid value %q", e.Event))
	}
	switch e.Actor.Type {
	case ActorUser:
		if e.Actor.UserID == "" {
			ve.add("actor.user_id", "is required for user actors")
		}
	case ActorAgent:
		if e.Actor.AgentID == "" {
			ve.add("actor.agent_id", "is required for agent actors")
		}
	default:
		ve.add("actor.type", fmt.Sprintf("invalid value %q", e.Actor.Type))
	}
	if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
		ve.add("metadata", "contains invalid JSON")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
