// Package claim finalizes leased pairing requests.
package claim

import (
	"context"

	"github.com/alfredjeanlab/pairing/internal/audit"
	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// ClaimParams is one agent's attempt to finalize a request it leased.
type ClaimParams struct {
	ID               string
	ClaimToken       string
	AgentID          string
	ClientInstanceID string
}

// Validator accepts or rejects claims.
type Validator struct {
	store store.RequestStore
	audit *audit.Log
	clock clock.Clock
}

// NewValidator returns a Validator. Accepted claims are recorded to log.
func NewValidator(s store.RequestStore, log *audit.Log, clk clock.Clock) *Validator {
	return &Validator{store: s, audit: log, clock: clk}
}

// Claim moves the request to claimed if the token matches the current
// lease, the lease is unexpired, and the request itself is unexpired. It
// returns (nil, nil) when any of those fail; the caller learns nothing
// about which one. A non-nil error means the store could not be reached.
func (v *Validator) Claim(ctx context.Context, p ClaimParams) (*model.PairingRequest, error) {
	if p.ID == "" || p.ClaimToken == "" || model.ValidateAgent(p.AgentID, p.ClientInstanceID) != nil {
		return nil, nil
	}

	now := v.clock.Now()
	req, err := v.store.ClaimRequest(ctx, store.ClaimAttempt{
		ID:               p.ID,
		ClaimToken:       p.ClaimToken,
		AgentID:          p.AgentID,
		ClientInstanceID: p.ClientInstanceID,
		Now:              now,
	})
	if err != nil || req == nil {
		return nil, err
	}

	v.audit.Record(ctx, &model.AuditEvent{
		RequestID: req.ID,
		Event:     model.EventRequestClaimed,
		Actor: model.Actor{
			Type:             model.ActorAgent,
			AgentID:          p.AgentID,
			ClientInstanceID: p.ClientInstanceID,
		},
		CreatedAt: now,
	}, req)
	return req, nil
}
