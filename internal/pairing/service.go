// Package pairing is the entry point callers use to open, poll, and claim
// pairing requests.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/pairing/internal/audit"
	"github.com/alfredjeanlab/pairing/internal/claim"
	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/events"
	"github.com/alfredjeanlab/pairing/internal/idgen"
	"github.com/alfredjeanlab/pairing/internal/lease"
	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// DefaultTTL applies when InitParams.TTLSeconds is zero.
const DefaultTTL = 5 * time.Minute

// Options tunes a Service. Zero values select the package defaults.
type Options struct {
	DefaultTTL           time.Duration
	DefaultLeaseDuration time.Duration
	Publisher            events.Publisher
	Clock                clock.Clock
	Logger               *slog.Logger
}

// Service implements Init, Poll, and Claim over a shared store. It holds
// no per-request state; any number of instances may share one store.
type Service struct {
	store  store.Store
	audit  *audit.Log
	leases *lease.Manager
	claims *claim.Validator
	clock  clock.Clock
	logger *slog.Logger

	defaultTTL   time.Duration
	leaseDefault time.Duration
	newID        func() (string, error)
}

// InitParams opens a request.
type InitParams struct {
	UserID     string
	ClientID   string
	TabID      string
	Scope      string
	TTLSeconds int
}

// PollParams asks for the oldest leasable request of a client.
type PollParams struct {
	ClientID         string
	AgentID          string
	ClientInstanceID string
	LeaseDuration    time.Duration
}

// ClaimParams finalizes a leased request.
type ClaimParams = claim.ClaimParams

// New wires a Service over s.
func New(s store.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.DefaultLeaseDuration <= 0 {
		opts.DefaultLeaseDuration = lease.DefaultDuration
	}

	log := audit.New(s, opts.Clock, audit.WithPublisher(opts.Publisher), audit.WithLogger(opts.Logger))
	return &Service{
		store:        s,
		audit:        log,
		leases:       lease.NewManager(s, log, opts.Clock),
		claims:       claim.NewValidator(s, log, opts.Clock),
		clock:        opts.Clock,
		logger:       opts.Logger,
		defaultTTL:   opts.DefaultTTL,
		leaseDefault: opts.DefaultLeaseDuration,
		newID:        idgen.RequestID,
	}
}

// Init creates a pending request under a freshly minted id and records
// request.init. A collision surfaces as ErrDuplicateID and is not retried.
func (s *Service) Init(ctx context.Context, p InitParams) (*model.PairingRequest, error) {
	ttl := p.TTLSeconds
	if ttl == 0 {
		ttl = int(s.defaultTTL / time.Second)
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("mint request id: %w", err)
	}

	req := model.NewPairingRequest(id, p.UserID, p.ClientID, p.TabID, p.Scope, ttl, s.clock.Now())
	if err := model.ValidatePairingRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.audit.Record(ctx, &model.AuditEvent{
		RequestID: req.ID,
		Event:     model.EventRequestInit,
		Actor:     model.Actor{Type: model.ActorUser, UserID: req.UserID},
		CreatedAt: req.CreatedAt,
	}, req)
	s.logger.Debug("pairing request opened", "request_id", req.ID, "client_id", req.ClientID, "ttl_seconds", ttl)
	return req, nil
}

// Poll leases the oldest eligible request for p.ClientID. It returns
// (nil, nil) when nothing is eligible; that is a normal outcome.
func (s *Service) Poll(ctx context.Context, p PollParams) (*model.PairingRequest, error) {
	d := p.LeaseDuration
	if d == 0 {
		d = s.leaseDefault
	}
	req, err := s.leases.Lease(ctx, lease.LeaseParams{
		ClientID:         p.ClientID,
		AgentID:          p.AgentID,
		ClientInstanceID: p.ClientInstanceID,
		LeaseDuration:    d,
	})
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("lease request: %w", err)
	}
	if req != nil {
		s.logger.Debug("pairing request leased", "request_id", req.ID, "agent_id", p.AgentID)
	}
	return req, nil
}

// Claim finalizes a leased request. Every failed precondition returns
// ErrClaimRejected; only store failures return anything else.
func (s *Service) Claim(ctx context.Context, p ClaimParams) (*model.PairingRequest, error) {
	req, err := s.claims.Claim(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("claim request: %w", err)
	}
	if req == nil {
		return nil, ErrClaimRejected
	}
	s.logger.Debug("pairing request claimed", "request_id", req.ID, "agent_id", p.AgentID)
	return req, nil
}

// Lookup returns a live request by id for diagnostics. The result still
// carries its claim token; callers exposing it must redact.
func (s *Service) Lookup(ctx context.Context, id string) (*model.PairingRequest, error) {
	req, err := s.store.GetRequest(ctx, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// Events returns the audit trail of a request, oldest first. It works for
// expired and purged requests too.
func (s *Service) Events(ctx context.Context, id string) ([]*model.AuditEvent, error) {
	return s.audit.ListByRequest(ctx, id)
}

// AuditFailures reports how many transitions committed without an audit
// record.
func (s *Service) AuditFailures() int64 {
	return s.audit.Failures()
}
