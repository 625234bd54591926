//go:build integration

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/pairing/internal/idgen"
	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// Run with: PAIRING_TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/store/postgres/
func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("PAIRING_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PAIRING_TEST_DATABASE_URL not set")
	}
	s, err := New(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func freshID(t *testing.T) string {
	t.Helper()
	id, err := idgen.RequestID()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestIntegration_ConcurrentLeaseSingleWinner(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	clientID := "client-" + freshID(t)

	req := model.NewPairingRequest(freshID(t), "user-1", clientID, "", "read", 300, now)
	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	const pollers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := range pollers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := idgen.ClaimToken()
			if err != nil {
				t.Error(err)
				return
			}
			got, err := s.LeaseRequest(ctx, store.LeaseGrant{
				ClientID:   clientID,
				AgentID:    "agent-" + string(rune('a'+i)),
				ClaimToken: tok,
				Duration:   30 * time.Second,
				Now:        now.Add(time.Second),
			})
			if err != nil {
				t.Error(err)
				return
			}
			if got != nil {
				mu.Lock()
				winners = append(winners, got.ClaimToken)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("%d pollers leased the single request, want 1", len(winners))
	}

	var claims sync.WaitGroup
	var mu2 sync.Mutex
	accepted := 0
	for range pollers {
		claims.Add(1)
		go func() {
			defer claims.Done()
			got, err := s.ClaimRequest(ctx, store.ClaimAttempt{
				ID:         req.ID,
				ClaimToken: winners[0],
				AgentID:    "agent-x",
				Now:        now.Add(2 * time.Second),
			})
			if err != nil {
				t.Error(err)
				return
			}
			if got != nil {
				mu2.Lock()
				accepted++
				mu2.Unlock()
			}
		}()
	}
	claims.Wait()

	if accepted != 1 {
		t.Fatalf("%d claims accepted, want 1", accepted)
	}
}

func TestIntegration_ConcurrentLeaseDistinctRequests(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	clientID := "client-" + freshID(t)

	const n = 8
	for i := range n {
		req := model.NewPairingRequest(freshID(t), "user-1", clientID, "", "read", 300, now.Add(time.Duration(i)*time.Millisecond))
		if err := s.CreateRequest(ctx, req); err != nil {
			t.Fatal(err)
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for range 2 * n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := idgen.ClaimToken()
			if err != nil {
				t.Error(err)
				return
			}
			got, err := s.LeaseRequest(ctx, store.LeaseGrant{
				ClientID:   clientID,
				AgentID:    "agent-1",
				ClaimToken: tok,
				Duration:   30 * time.Second,
				Now:        now.Add(time.Second),
			})
			if err != nil {
				t.Error(err)
				return
			}
			if got != nil {
				mu.Lock()
				seen[got.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("leased %d distinct requests, want %d", len(seen), n)
	}
	for id, c := range seen {
		if c != 1 {
			t.Errorf("request %s leased %d times", id, c)
		}
	}
}
