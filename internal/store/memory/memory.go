// Package memory is an in-memory fake of store.Store for tests. It mirrors
// the conditional writes of the postgres store under a single mutex so
// component tests can exercise contention without a database. Pairing state
// in production always lives in the shared postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu       sync.Mutex
	requests map[string]*model.PairingRequest
	events   []*model.AuditEvent
	nextID   int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{requests: make(map[string]*model.PairingRequest)}
}

func (s *Store) CreateRequest(_ context.Context, req *model.PairingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return store.ErrDuplicateID
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string, now time.Time) (*model.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || !r.ExpiresAt.After(now) {
		return nil, store.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *Store) LeaseRequest(_ context.Context, g store.LeaseGrant) (*model.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *model.PairingRequest
	for _, r := range s.requests {
		if !leaseEligible(r, g.ClientID, g.Now) {
			continue
		}
		if oldest == nil || older(r, oldest) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, nil
	}

	leaseExpiresAt := g.LeaseExpiresAt()
	oldest.Status = model.StatusPolled
	oldest.ClaimToken = g.ClaimToken
	oldest.PollLeaseExpiresAt = &leaseExpiresAt
	oldest.PolledBy = &model.ActorRef{
		AgentID:          g.AgentID,
		ClientInstanceID: g.ClientInstanceID,
		At:               g.Now,
	}
	return cloneRequest(oldest), nil
}

func leaseEligible(r *model.PairingRequest, clientID string, now time.Time) bool {
	if r.ClientID != clientID || !r.ExpiresAt.After(now) {
		return false
	}
	switch r.Status {
	case model.StatusPending:
		return true
	case model.StatusPolled:
		return r.PollLeaseExpiresAt != nil && !r.PollLeaseExpiresAt.After(now)
	}
	return false
}

func older(a, b *model.PairingRequest) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Store) ClaimRequest(_ context.Context, a store.ClaimAttempt) (*model.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[a.ID]
	if !ok ||
		r.ClaimToken != a.ClaimToken ||
		r.Status != model.StatusPolled ||
		!r.ExpiresAt.After(a.Now) ||
		r.PollLeaseExpiresAt == nil ||
		!r.PollLeaseExpiresAt.After(a.Now) {
		return nil, nil
	}

	claimedAt := a.Now
	r.Status = model.StatusClaimed
	r.PollLeaseExpiresAt = nil
	r.ClaimedAt = &claimedAt
	r.ClaimedBy = &model.ActorRef{
		AgentID:          a.AgentID,
		ClientInstanceID: a.ClientInstanceID,
		At:               a.Now,
	}
	return cloneRequest(r), nil
}

func (s *Store) PurgeExpiredRequests(_ context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*model.PairingRequest
	for _, r := range s.requests {
		if !r.ExpiresAt.After(now) {
			expired = append(expired, r)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	for _, r := range expired {
		delete(s.requests, r.ID)
	}
	return len(expired), nil
}

func (s *Store) AppendEvent(_ context.Context, ev *model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev.ID = s.nextID
	s.events = append(s.events, cloneEvent(ev))
	return nil
}

func (s *Store) ListEvents(_ context.Context, requestID string) ([]*model.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AuditEvent
	for _, ev := range s.events {
		if ev.RequestID == requestID {
			out = append(out, cloneEvent(ev))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListEventsBefore(_ context.Context, cutoff time.Time, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AuditEvent
	// events is kept in id order.
	for _, ev := range s.events {
		if len(out) == limit {
			break
		}
		if ev.CreatedAt.Before(cutoff) {
			out = append(out, cloneEvent(ev))
		}
	}
	return out, nil
}

func (s *Store) DeleteEventsThrough(_ context.Context, cutoff time.Time, maxID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	n := 0
	for _, ev := range s.events {
		if ev.CreatedAt.Before(cutoff) && ev.ID <= maxID {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return n, nil
}

func (s *Store) Close() error { return nil }

func cloneRequest(r *model.PairingRequest) *model.PairingRequest {
	c := *r
	if r.PollLeaseExpiresAt != nil {
		t := *r.PollLeaseExpiresAt
		c.PollLeaseExpiresAt = &t
	}
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		c.ClaimedAt = &t
	}
	if r.PolledBy != nil {
		p := *r.PolledBy
		c.PolledBy = &p
	}
	if r.ClaimedBy != nil {
		p := *r.ClaimedBy
		c.ClaimedBy = &p
	}
	return &c
}

func cloneEvent(ev *model.AuditEvent) *model.AuditEvent {
	c := *ev
	if ev.Metadata != nil {
		c.Metadata = append([]byte(nil), ev.Metadata...)
	}
	return &c
}
