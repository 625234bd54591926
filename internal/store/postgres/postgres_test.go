package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// requestRowColumns mirrors requestColumns.
var requestRowColumns = []string{
	"id", "user_id", "client_id", "tab_id", "scope", "status", "ttl_seconds",
	"created_at", "expires_at", "poll_lease_expires_at", "claim_token",
	"polled_by_agent_id", "polled_by_client_instance_id", "polled_at",
	"claimed_by_agent_id", "claimed_by_client_instance_id", "claimed_at",
}

var eventRowColumns = []string{"id", "request_id", "event", "actor", "metadata", "created_at"}

const testID = "0123456789abcdef0123456789abcdef"

func pendingRow(created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(requestRowColumns).AddRow(
		testID, "u1", "c1", nil, "read", "pending", 300,
		created, created.Add(300*time.Second), nil, nil,
		nil, nil, nil,
		nil, nil, nil,
	)
}

func polledRow(created, now, lease time.Time, token string) *sqlmock.Rows {
	return sqlmock.NewRows(requestRowColumns).AddRow(
		testID, "u1", "c1", "tab-1", "read", "polled", 300,
		created, created.Add(300*time.Second), lease, token,
		"agent-1", "inst-1", now,
		nil, nil, nil,
	)
}

func TestScanHelpers(t *testing.T) {
	// timePtr
	if timePtr(sql.NullTime{}) != nil {
		t.Error("timePtr(invalid) should be nil")
	}
	local := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 7200))
	if tp := timePtr(sql.NullTime{Time: local, Valid: true}); tp == nil || !tp.Equal(local) || tp.Location() != time.UTC {
		t.Errorf("timePtr(valid) = %v", tp)
	}

	// nullString
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("hello"); !ns.Valid || ns.String != "hello" {
		t.Errorf("nullString(\"hello\") = %v", ns)
	}

	// jsonbBytes
	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	input := json.RawMessage(`{"key":"value"}`)
	if string(jsonbBytes(input)) != `{"key":"value"}` {
		t.Errorf("jsonbBytes = %s", jsonbBytes(input))
	}
}

func TestMapPgErr(t *testing.T) {
	if mapPgErr(nil) != nil {
		t.Error("mapPgErr(nil) should be nil")
	}
	if err := mapPgErr(&pq.Error{Code: "23505"}); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("unique violation mapped to %v, want ErrDuplicateID", err)
	}
	other := &pq.Error{Code: "23503"}
	if err := mapPgErr(other); err != other {
		t.Errorf("foreign key violation should pass through, got %v", err)
	}
}

func TestQueryCreateRequest(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	r := model.NewPairingRequest(testID, "u1", "c1", "", "read", 300, now)

	mock.ExpectExec("INSERT INTO pairing_requests").
		WithArgs(testID, "u1", "c1", nil, "read", "pending", 300, r.CreatedAt, r.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateRequest(context.Background(), db, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryCreateRequest_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	r := model.NewPairingRequest(testID, "u1", "c1", "tab", "read", 300, time.Now())

	mock.ExpectExec("INSERT INTO pairing_requests").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := queryCreateRequest(context.Background(), db, r)
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestQueryGetRequest(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	created := now.Add(-time.Minute)

	mock.ExpectQuery("SELECT .+ FROM pairing_requests WHERE id = \\$1 AND expires_at > \\$2").
		WithArgs(testID, now).
		WillReturnRows(pendingRow(created))

	r, err := queryGetRequest(context.Background(), db, testID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID != testID || r.Status != model.StatusPending {
		t.Fatalf("got id=%q status=%q", r.ID, r.Status)
	}
	if r.PollLeaseExpiresAt != nil || r.ClaimToken != "" || r.PolledBy != nil {
		t.Errorf("pending request carries lease fields: %+v", r)
	}
	if !r.ExpiresAt.Equal(r.CreatedAt.Add(300 * time.Second)) {
		t.Errorf("ExpiresAt = %v, want CreatedAt+300s", r.ExpiresAt)
	}
}

func TestQueryGetRequest_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM pairing_requests WHERE id = \\$1").
		WithArgs("expired", now).
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetRequest(context.Background(), db, "expired", now)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryGetRequest_StoreFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM pairing_requests").
		WillReturnError(errors.New("connection refused"))

	_, err := queryGetRequest(context.Background(), db, testID, time.Now())
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected wrapped store failure, got %v", err)
	}
}

func TestQueryLeaseRequest(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	created := now.Add(-time.Minute)
	grant := store.LeaseGrant{
		ClientID:         "c1",
		AgentID:          "agent-1",
		ClientInstanceID: "inst-1",
		ClaimToken:       "tok-1",
		Duration:         5 * time.Second,
		Now:              now,
	}

	mock.ExpectQuery("UPDATE pairing_requests SET .+ WHERE id = \\(\\s*SELECT id FROM pairing_requests .+ ORDER BY created_at ASC, id ASC\\s+LIMIT 1\\s+FOR UPDATE SKIP LOCKED").
		WithArgs("c1", "tok-1", now.Add(5*time.Second), "agent-1", "inst-1", now).
		WillReturnRows(polledRow(created, now, now.Add(5*time.Second), "tok-1"))

	r, err := queryLeaseRequest(context.Background(), db, grant)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil {
		t.Fatal("expected a leased request")
	}
	if r.Status != model.StatusPolled || r.ClaimToken != "tok-1" {
		t.Errorf("got status=%q token=%q", r.Status, r.ClaimToken)
	}
	if r.PollLeaseExpiresAt == nil || !r.PollLeaseExpiresAt.Equal(now.Add(5*time.Second)) {
		t.Errorf("PollLeaseExpiresAt = %v", r.PollLeaseExpiresAt)
	}
	if r.PolledBy == nil || r.PolledBy.AgentID != "agent-1" || r.PolledBy.ClientInstanceID != "inst-1" {
		t.Errorf("PolledBy = %+v", r.PolledBy)
	}
	if r.TabID != "tab-1" {
		t.Errorf("TabID = %q", r.TabID)
	}
}

func TestQueryLeaseRequest_NoneEligible(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("UPDATE pairing_requests SET").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	r, err := queryLeaseRequest(context.Background(), db, store.LeaseGrant{ClientID: "c1", AgentID: "a", Now: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil request, got %+v", r)
	}
}

func TestQueryLeaseRequest_StoreFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("UPDATE pairing_requests SET").
		WillReturnError(errors.New("deadlock detected"))

	r, err := queryLeaseRequest(context.Background(), db, store.LeaseGrant{ClientID: "c1", AgentID: "a", Now: time.Now()})
	if err == nil {
		t.Fatal("expected error")
	}
	if r != nil {
		t.Fatalf("expected nil request, got %+v", r)
	}
}

func TestQueryClaimRequest(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	created := now.Add(-time.Minute)
	attempt := store.ClaimAttempt{ID: testID, ClaimToken: "tok-1", AgentID: "agent-1", Now: now}

	rows := sqlmock.NewRows(requestRowColumns).AddRow(
		testID, "u1", "c1", nil, "read", "claimed", 300,
		created, created.Add(300*time.Second), nil, "tok-1",
		"agent-1", "inst-1", now.Add(-2*time.Second),
		"agent-1", nil, now,
	)
	mock.ExpectQuery("UPDATE pairing_requests SET\\s+status = 'claimed',\\s+poll_lease_expires_at = NULL.+WHERE id = \\$1\\s+AND claim_token = \\$2\\s+AND status = 'polled'\\s+AND expires_at > \\$5\\s+AND poll_lease_expires_at > \\$5").
		WithArgs(testID, "tok-1", "agent-1", nil, now).
		WillReturnRows(rows)

	r, err := queryClaimRequest(context.Background(), db, attempt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Status != model.StatusClaimed {
		t.Fatalf("expected claimed request, got %+v", r)
	}
	if r.PollLeaseExpiresAt != nil {
		t.Error("claimed request must not carry a poll lease")
	}
	if r.ClaimedAt == nil || !r.ClaimedAt.Equal(now) {
		t.Errorf("ClaimedAt = %v, want %v", r.ClaimedAt, now)
	}
	if r.ClaimedBy == nil || r.ClaimedBy.AgentID != "agent-1" {
		t.Errorf("ClaimedBy = %+v", r.ClaimedBy)
	}
}

func TestQueryClaimRequest_Rejected(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("UPDATE pairing_requests SET").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	r, err := queryClaimRequest(context.Background(), db, store.ClaimAttempt{ID: testID, ClaimToken: "stale", AgentID: "a", Now: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil request, got %+v", r)
	}
}

func TestQueryPurgeExpiredRequests(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("DELETE FROM pairing_requests WHERE id IN \\(\\s*SELECT id FROM pairing_requests\\s+WHERE expires_at <= \\$1").
		WithArgs(now, 500).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := queryPurgeExpiredRequests(context.Background(), db, now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("purged %d, want 7", n)
	}
}

func TestQueryAppendEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	e := &model.AuditEvent{
		RequestID: testID,
		Event:     model.EventRequestPolled,
		Actor:     model.Actor{Type: model.ActorAgent, AgentID: "agent-1"},
		Metadata:  json.RawMessage(`{"poll_lease_expires_at":"x"}`),
		CreatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO audit_events").
		WithArgs(testID, "request.polled", []byte(`{"type":"agent","agent_id":"agent-1"}`), sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))

	if err := queryAppendEvent(context.Background(), db, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != 42 {
		t.Errorf("ID = %d, want 42", e.ID)
	}
}

func TestQueryListEvents(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(1, testID, "request.init", []byte(`{"type":"user","user_id":"u1"}`), nil, now).
		AddRow(2, testID, "request.polled", []byte(`{"type":"agent","agent_id":"a1"}`), []byte(`{"k":1}`), now.Add(time.Second))

	mock.ExpectQuery("SELECT .+ FROM audit_events\\s+WHERE request_id = \\$1\\s+ORDER BY created_at ASC, id ASC").
		WithArgs(testID).
		WillReturnRows(rows)

	events, err := queryListEvents(context.Background(), db, testID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != model.EventRequestInit || events[0].Actor.UserID != "u1" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Actor.Type != model.ActorAgent || string(events[1].Metadata) != `{"k":1}` {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestQueryListEvents_BadActor(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(1, testID, "request.init", []byte(`not json`), nil, time.Now())
	mock.ExpectQuery("SELECT .+ FROM audit_events").WillReturnRows(rows)

	if _, err := queryListEvents(context.Background(), db, testID); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestQueryListEventsBefore(t *testing.T) {
	db, mock := newMockDB(t)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(5, testID, "request.claimed", []byte(`{"type":"agent","agent_id":"a1"}`), nil, cutoff.Add(-time.Hour))
	mock.ExpectQuery("SELECT .+ FROM audit_events\\s+WHERE created_at < \\$1\\s+ORDER BY id ASC\\s+LIMIT \\$2").
		WithArgs(cutoff, 1000).
		WillReturnRows(rows)

	events, err := queryListEventsBefore(context.Background(), db, cutoff, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].ID != 5 {
		t.Fatalf("got %+v", events)
	}
}

func TestQueryDeleteEventsThrough(t *testing.T) {
	db, mock := newMockDB(t)
	cutoff := time.Now().UTC()
	mock.ExpectExec("DELETE FROM audit_events\\s+WHERE created_at < \\$1 AND id <= \\$2").
		WithArgs(cutoff, 99).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := queryDeleteEventsThrough(context.Background(), db, cutoff, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
}
