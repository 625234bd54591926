package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/pairing/internal/model"
)

var (
	// ErrNotFound is returned when an id has no live record: it never
	// existed, it expired, or it was purged.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned by CreateRequest when the id is taken.
	ErrDuplicateID = errors.New("duplicate id")
)

// LeaseGrant describes one lease attempt. Now is the instant eligibility is
// evaluated against; the lease runs until Now + Duration.
type LeaseGrant struct {
	ClientID         string
	AgentID          string
	ClientInstanceID string
	ClaimToken       string
	Duration         time.Duration
	Now              time.Time
}

// LeaseExpiresAt returns the poll lease expiry this grant writes.
func (g LeaseGrant) LeaseExpiresAt() time.Time {
	return g.Now.Add(g.Duration)
}

// ClaimAttempt describes one claim attempt evaluated at Now.
type ClaimAttempt struct {
	ID               string
	ClaimToken       string
	AgentID          string
	ClientInstanceID string
	Now              time.Time
}

// RequestStore persists pairing requests. Every mutating method is a single
// atomic conditional write; there is no read-then-write anywhere.
type RequestStore interface {
	// CreateRequest inserts a pending request. Returns ErrDuplicateID if
	// the id exists.
	CreateRequest(ctx context.Context, req *model.PairingRequest) error

	// GetRequest returns the request if it exists and expires after now,
	// ErrNotFound otherwise.
	GetRequest(ctx context.Context, id string, now time.Time) (*model.PairingRequest, error)

	// LeaseRequest grants a lease on the oldest eligible request for the
	// grant's client. Returns (nil, nil) when none is eligible.
	LeaseRequest(ctx context.Context, grant LeaseGrant) (*model.PairingRequest, error)

	// ClaimRequest finalizes a leased request. Returns (nil, nil) when any
	// precondition fails.
	ClaimRequest(ctx context.Context, attempt ClaimAttempt) (*model.PairingRequest, error)

	// PurgeExpiredRequests physically removes up to limit requests whose
	// expiry is at or before now. Returns the number removed.
	PurgeExpiredRequests(ctx context.Context, now time.Time, limit int) (int, error)
}

// AuditLog persists audit events. Events are write-once.
type AuditLog interface {
	AppendEvent(ctx context.Context, event *model.AuditEvent) error
	ListEvents(ctx context.Context, requestID string) ([]*model.AuditEvent, error)

	// ListEventsBefore returns up to limit events created before cutoff,
	// oldest first.
	ListEventsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.AuditEvent, error)

	// DeleteEventsThrough removes events created before cutoff with id at
	// most maxID. Returns the number removed.
	DeleteEventsThrough(ctx context.Context, cutoff time.Time, maxID int64) (int, error)
}

// Store defines the persistence interface for the pairing core.
type Store interface {
	RequestStore
	AuditLog

	Close() error
}
