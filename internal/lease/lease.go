// Package lease hands out exclusive, time-boxed poll leases on pending
// pairing requests.
package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/pairing/internal/audit"
	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/idgen"
	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// DefaultDuration is used when LeaseParams.LeaseDuration is zero.
const DefaultDuration = 30 * time.Second

// LeaseParams identifies the polling agent and the client whose queue it
// drains.
type LeaseParams struct {
	ClientID         string
	AgentID          string
	ClientInstanceID string
	LeaseDuration    time.Duration
}

// Manager grants poll leases.
type Manager struct {
	store    store.RequestStore
	audit    *audit.Log
	clock    clock.Clock
	newToken func() (string, error)
}

// NewManager returns a Manager. Leases are recorded to log.
func NewManager(s store.RequestStore, log *audit.Log, clk clock.Clock) *Manager {
	return &Manager{
		store:    s,
		audit:    log,
		clock:    clk,
		newToken: idgen.ClaimToken,
	}
}

// Lease grants a lease on the oldest eligible request for p.ClientID and
// returns it with its fresh claim token. It returns (nil, nil) when no
// request is eligible. Any token minted by an earlier, lapsed lease on the
// same request stops working.
func (m *Manager) Lease(ctx context.Context, p LeaseParams) (*model.PairingRequest, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	d := p.LeaseDuration
	if d == 0 {
		d = DefaultDuration
	}

	token, err := m.newToken()
	if err != nil {
		return nil, fmt.Errorf("mint claim token: %w", err)
	}

	now := m.clock.Now()
	req, err := m.store.LeaseRequest(ctx, store.LeaseGrant{
		ClientID:         p.ClientID,
		AgentID:          p.AgentID,
		ClientInstanceID: p.ClientInstanceID,
		ClaimToken:       token,
		Duration:         d,
		Now:              now,
	})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}

	m.audit.Record(ctx, polledEvent(req, p, now), req)
	return req, nil
}

func validate(p LeaseParams) error {
	var ve model.ValidationError
	if err := model.ValidateAgent(p.AgentID, p.ClientInstanceID); err != nil {
		ve = *err.(*model.ValidationError)
	}
	if p.ClientID == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "client_id", Message: "is required"})
	}
	if p.LeaseDuration < 0 {
		ve.Errors = append(ve.Errors, model.FieldError{
			Field:   "lease_duration",
			Message: fmt.Sprintf("must be positive, got %s", p.LeaseDuration),
		})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

type polledMetadata struct {
	PollLeaseExpiresAt time.Time `json:"poll_lease_expires_at"`
}

func polledEvent(req *model.PairingRequest, p LeaseParams, now time.Time) *model.AuditEvent {
	ev := &model.AuditEvent{
		RequestID: req.ID,
		Event:     model.EventRequestPolled,
		Actor: model.Actor{
			Type:             model.ActorAgent,
			AgentID:          p.AgentID,
			ClientInstanceID: p.ClientInstanceID,
		},
		CreatedAt: now,
	}
	if req.PollLeaseExpiresAt != nil {
		md, err := json.Marshal(polledMetadata{PollLeaseExpiresAt: *req.PollLeaseExpiresAt})
		if err != nil {
			slog.Warn("dropping polled event metadata", "request_id", req.ID, "error", err)
		} else {
			ev.Metadata = md
		}
	}
	return ev
}
