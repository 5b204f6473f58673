package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	// Postgres driver.
	_ "github.com/lib/pq"

	"github.com/jonesrussell/gopace/internal/domain"
)

// profileStateSchema holds one JSON document per (profile, kind).
const profileStateSchema = `
CREATE TABLE IF NOT EXISTS profile_state (
	profile    TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile, kind)
)`

const upsertStateQuery = `
INSERT INTO profile_state (profile, kind, data, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile, kind)
DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

const selectStateQuery = `
SELECT data FROM profile_state WHERE profile = $1 AND kind = $2`

// PostgresStore persists profile state as JSONB documents in Postgres.
type PostgresStore struct {
	db      *sqlx.DB
	profile string
}

// NewPostgresStore connects to Postgres, ensures the schema exists, and
// returns a store scoped to one profile.
func NewPostgresStore(ctx context.Context, dsn, profile string) (*PostgresStore, error) {
	if profile == "" {
		return nil, errors.New("profile name cannot be empty")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, profileStateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{db: db, profile: profile}, nil
}

// LoadConfig decodes the persisted configuration into v.
func (s *PostgresStore) LoadConfig(ctx context.Context, v any) error {
	return s.get(ctx, "config", v)
}

// SaveConfig persists the configuration object.
func (s *PostgresStore) SaveConfig(ctx context.Context, v any) error {
	return s.set(ctx, "config", v)
}

// LoadSchedule returns the persisted active interaction schedule.
func (s *PostgresStore) LoadSchedule(ctx context.Context) ([]domain.Interaction, error) {
	var schedule []domain.Interaction
	if err := s.get(ctx, "schedule", &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// SaveSchedule persists the active interaction schedule.
func (s *PostgresStore) SaveSchedule(ctx context.Context, schedule []domain.Interaction) error {
	return s.set(ctx, "schedule", schedule)
}

// LoadLog returns the persisted execution log.
func (s *PostgresStore) LoadLog(ctx context.Context) ([]domain.ExecutionLogEntry, error) {
	var log []domain.ExecutionLogEntry
	if err := s.get(ctx, "log", &log); err != nil {
		return nil, err
	}
	return log, nil
}

// SaveLog persists the execution log, capped to MaxLogEntries.
func (s *PostgresStore) SaveLog(ctx context.Context, log []domain.ExecutionLogEntry) error {
	return s.set(ctx, "log", CapLog(log))
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// get fetches and decodes one state document.
func (s *PostgresStore) get(ctx context.Context, kind string, v any) error {
	var data []byte
	err := s.db.GetContext(ctx, &data, selectStateQuery, s.profile, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// set serializes and upserts one state document.
func (s *PostgresStore) set(ctx context.Context, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertStateQuery, s.profile, kind, data); err != nil {
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	return nil
}
