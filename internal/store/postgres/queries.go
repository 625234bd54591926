package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// requestColumns is the column list used for SELECT and RETURNING on the
// pairing_requests table.
const requestColumns = `id, user_id, client_id, tab_id, scope, status, ttl_seconds,
	created_at, expires_at, poll_lease_expires_at, claim_token,
	polled_by_agent_id, polled_by_client_instance_id, polled_at,
	claimed_by_agent_id, claimed_by_client_instance_id, claimed_at`

// eventColumns is the column list used for SELECT statements on audit_events.
const eventColumns = `id, request_id, event, actor, metadata, created_at`

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateRequest(ctx context.Context, db executor, r *model.PairingRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pairing_requests (
			id, user_id, client_id, tab_id, scope, status, ttl_seconds,
			created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9
		)`,
		r.ID,
		r.UserID,
		r.ClientID,
		nullString(r.TabID),
		r.Scope,
		string(r.Status),
		r.TTLSeconds,
		r.CreatedAt,
		r.ExpiresAt,
	)
	return mapPgErr(err)
}

// queryGetRequest filters on expiry in SQL so a row the sweeper has not yet
// purged is still reported as not found.
func queryGetRequest(ctx context.Context, db executor, id string, now time.Time) (*model.PairingRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM pairing_requests
		WHERE id = $1 AND expires_at > $2`,
		id, now,
	)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// queryLeaseRequest selects and leases the oldest eligible request in one
// statement. SKIP LOCKED makes a concurrent caller that lost the race for a
// row move on to the next eligible row instead of waiting on it.
func queryLeaseRequest(ctx context.Context, db executor, g store.LeaseGrant) (*model.PairingRequest, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE pairing_requests SET
			status = 'polled',
			claim_token = $2,
			poll_lease_expires_at = $3,
			polled_by_agent_id = $4,
			polled_by_client_instance_id = $5,
			polled_at = $6
		WHERE id = (
			SELECT id FROM pairing_requests
			WHERE client_id = $1
				AND expires_at > $6
				AND (
					status = 'pending'
					OR (status = 'polled' AND poll_lease_expires_at <= $6)
				)
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+requestColumns,
		g.ClientID,
		g.ClaimToken,
		g.LeaseExpiresAt(),
		g.AgentID,
		nullString(g.ClientInstanceID),
		g.Now,
	)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease request: %w", err)
	}
	return r, nil
}

// queryClaimRequest checks every claim precondition in the WHERE clause of
// a single UPDATE. No row back means rejected, whatever the cause.
func queryClaimRequest(ctx context.Context, db executor, a store.ClaimAttempt) (*model.PairingRequest, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE pairing_requests SET
			status = 'claimed',
			poll_lease_expires_at = NULL,
			claimed_by_agent_id = $3,
			claimed_by_client_instance_id = $4,
			claimed_at = $5
		WHERE id = $1
			AND claim_token = $2
			AND status = 'polled'
			AND expires_at > $5
			AND poll_lease_expires_at > $5
		RETURNING `+requestColumns,
		a.ID,
		a.ClaimToken,
		a.AgentID,
		nullString(a.ClientInstanceID),
		a.Now,
	)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim request: %w", err)
	}
	return r, nil
}

func queryPurgeExpiredRequests(ctx context.Context, db executor, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM pairing_requests
		WHERE id IN (
			SELECT id FROM pairing_requests
			WHERE expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`,
		now, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func queryAppendEvent(ctx context.Context, db executor, e *model.AuditEvent) error {
	actor, err := json.Marshal(e.Actor)
	if err != nil {
		return fmt.Errorf("marshal actor: %w", err)
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO audit_events (request_id, event, actor, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.RequestID, string(e.Event), actor, jsonbBytes(e.Metadata), e.CreatedAt,
	).Scan(&e.ID, &e.CreatedAt)
}

func queryListEvents(ctx context.Context, db executor, requestID string) ([]*model.AuditEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryListEventsBefore(ctx context.Context, db executor, cutoff time.Time, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE created_at < $1
		ORDER BY id ASC
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events before: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryDeleteEventsThrough(ctx context.Context, db executor, cutoff time.Time, maxID int64) (int, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM audit_events
		WHERE created_at < $1 AND id <= $2`,
		cutoff, maxID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// mapPgErr translates driver errors into store sentinels.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return store.ErrDuplicateID
	}
	return err
}
