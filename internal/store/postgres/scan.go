package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/pairing/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRequest scans a single row into a model.PairingRequest.
// The row must contain columns in the order defined by requestColumns.
func scanRequest(row scannable) (*model.PairingRequest, error) {
	var r model.PairingRequest
	var (
		tabID                     sql.NullString
		pollLeaseExpiresAt        sql.NullTime
		claimToken                sql.NullString
		polledByAgentID           sql.NullString
		polledByClientInstanceID  sql.NullString
		polledAt                  sql.NullTime
		claimedByAgentID          sql.NullString
		claimedByClientInstanceID sql.NullString
		claimedAt                 sql.NullTime
	)

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.ClientID,
		&tabID,
		&r.Scope,
		&r.Status,
		&r.TTLSeconds,
		&r.CreatedAt,
		&r.ExpiresAt,
		&pollLeaseExpiresAt,
		&claimToken,
		&polledByAgentID,
		&polledByClientInstanceID,
		&polledAt,
		&claimedByAgentID,
		&claimedByClientInstanceID,
		&claimedAt,
	)
	if err != nil {
		return nil, err
	}

	r.TabID = tabID.String
	r.ClaimToken = claimToken.String
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.PollLeaseExpiresAt = timePtr(pollLeaseExpiresAt)
	r.ClaimedAt = timePtr(claimedAt)

	if polledByAgentID.Valid {
		r.PolledBy = &model.ActorRef{
			AgentID:          polledByAgentID.String,
			ClientInstanceID: polledByClientInstanceID.String,
			At:               polledAt.Time.UTC(),
		}
	}
	if claimedByAgentID.Valid {
		r.ClaimedBy = &model.ActorRef{
			AgentID:          claimedByAgentID.String,
			ClientInstanceID: claimedByClientInstanceID.String,
			At:               claimedAt.Time.UTC(),
		}
	}

	return &r, nil
}

// scanEvent scans a single row into a model.AuditEvent.
func scanEvent(row scannable) (*model.AuditEvent, error) {
	var e model.AuditEvent
	var (
		actor    []byte
		metadata []byte
	)
	err := row.Scan(&e.ID, &e.RequestID, &e.Event, &actor, &metadata, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(actor) > 0 {
		if err := json.Unmarshal(actor, &e.Actor); err != nil {
			return nil, fmt.Errorf("decode actor of event %d: %w", e.ID, err)
		}
	}
	if len(metadata) > 0 {
		e.Metadata = json.RawMessage(metadata)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.AuditEvent pointers.
func scanEvents(rows *sql.Rows) ([]*model.AuditEvent, error) {
	var events []*model.AuditEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// timePtr converts a sql.NullTime to a *time.Time in UTC.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
