package model

import (
	"time"
)

// Status represents the stored state of a pairing request. Expiry is not a
// status: a request whose ExpiresAt has passed is simply gone, whatever its
// stored status says.
type Status string

const (
	StatusPending Status = "pending"
	StatusPolled  Status = "polled"
	StatusClaimed Status = "claimed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPolled, StatusClaimed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusClaimed
}

// ActorRef identifies the agent process that performed a transition.
type ActorRef struct {
	AgentID          string    `json:"agent_id"`
	ClientInstanceID string    `json:"client_instance_id,omitempty"`
	At               time.Time `json:"at"`
}

// PairingRequest is a short-lived authorization handshake linking a
// user-initiated action to a client context.
//
// PollLeaseExpiresAt is set only while Status is polled. ClaimToken is set
// only while Status is polled or claimed and changes only on lease grant.
// ExpiresAt is fixed at creation.
type PairingRequest struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	ClientID   string `json:"client_id"`
	TabID      string `json:"tab_id,omitempty"`
	Scope      string `json:"scope"`
	Status     Status `json:"status"`
	TTLSeconds int    `json:"ttl_seconds"`

	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	PollLeaseExpiresAt *time.Time `json:"poll_lease_expires_at,omitempty"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`

	ClaimToken string    `json:"claim_token,omitempty"`
	PolledBy   *ActorRef `json:"polled_by,omitempty"`
	ClaimedBy  *ActorRef `json:"claimed_by,omitempty"`
}

// TTL returns the request lifetime as a duration.
func (r *PairingRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// IsExpired reports whether the request is past its TTL at now.
func (r *PairingRequest) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// LeaseLapsed reports whether a polled request's lease has run out at now.
// It is false for requests that hold no lease.
func (r *PairingRequest) LeaseLapsed(now time.Time) bool {
	if r.Status != StatusPolled || r.PollLeaseExpiresAt == nil {
		return false
	}
	return !now.Before(*r.PollLeaseExpiresAt)
}

// NewPairingRequest builds a pending request created at now. ExpiresAt is
// derived from createdAt and ttlSeconds here and nowhere else. Timestamps
// are truncated to the microsecond precision of the store.
func NewPairingRequest(id, userID, clientID, tabID, scope string, ttlSeconds int, now time.Time) *PairingRequest {
	createdAt := now.UTC().Truncate(time.Microsecond)
	return &PairingRequest{
		ID:         id,
		UserID:     userID,
		ClientID:   clientID,
		TabID:      tabID,
		Scope:      scope,
		Status:     StatusPending,
		TTLSeconds: ttlSeconds,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(time.Duration(ttlSeconds) * time.Second),
	}
}
