// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := Open(databaseURL)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Open connects and pings without touching the schema.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewWithDB wraps an already-migrated database handle.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies pending migrations to db. steps == 0 migrates fully up;
// a negative value rolls back that many migrations.
func Migrate(db *sql.DB, steps int) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	return Migrate(db, 0)
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *model.PairingRequest) error {
	return queryCreateRequest(ctx, s.db, req)
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string, now time.Time) (*model.PairingRequest, error) {
	return queryGetRequest(ctx, s.db, id, now)
}

func (s *PostgresStore) LeaseRequest(ctx context.Context, grant store.LeaseGrant) (*model.PairingRequest, error) {
	return queryLeaseRequest(ctx, s.db, grant)
}

func (s *PostgresStore) ClaimRequest(ctx context.Context, attempt store.ClaimAttempt) (*model.PairingRequest, error) {
	return queryClaimRequest(ctx, s.db, attempt)
}

func (s *PostgresStore) PurgeExpiredRequests(ctx context.Context, now time.Time, limit int) (int, error) {
	return queryPurgeExpiredRequests(ctx, s.db, now, limit)
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *model.AuditEvent) error {
	return queryAppendEvent(ctx, s.db, event)
}

func (s *PostgresStore) ListEvents(ctx context.Context, requestID string) ([]*model.AuditEvent, error) {
	return queryListEvents(ctx, s.db, requestID)
}

func (s *PostgresStore) ListEventsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.AuditEvent, error) {
	return queryListEventsBefore(ctx, s.db, cutoff, limit)
}

func (s *PostgresStore) DeleteEventsThrough(ctx context.Context, cutoff time.Time, maxID int64) (int, error) {
	return queryDeleteEventsThrough(ctx, s.db, cutoff, maxID)
}
