// Package storage provides durable per-profile state for the pacing
// subsystem: scheduler configuration, the active interaction schedule, and
// the capped execution log.
package storage

import (
	"context"
	"errors"

	"github.com/jonesrussell/gopace/internal/domain"
)

// MaxLogEntries caps the persisted execution log to the most recent entries.
const MaxLogEntries = 1000

// ErrNotFound is returned when a profile has no persisted state of the
// requested kind.
var ErrNotFound = errors.New("profile state not found")

// ProfileStore persists the state of one profile. A profile's persisted
// state is owned exclusively by one scheduler instance; concurrent writers
// to the same profile require external locking not provided here.
type ProfileStore interface {
	// LoadConfig decodes the persisted configuration into v.
	// Returns ErrNotFound if the profile has no saved configuration.
	LoadConfig(ctx context.Context, v any) error

	// SaveConfig persists the configuration object.
	SaveConfig(ctx context.Context, v any) error

	// LoadSchedule returns the persisted active interaction schedule.
	// Returns ErrNotFound if none has been saved.
	LoadSchedule(ctx context.Context) ([]domain.Interaction, error)

	// SaveSchedule persists the active interaction schedule.
	SaveSchedule(ctx context.Context, schedule []domain.Interaction) error

	// LoadLog returns the persisted execution log.
	// Returns ErrNotFound if none has been saved.
	LoadLog(ctx context.Context) ([]domain.ExecutionLogEntry, error)

	// SaveLog persists the execution log, capped to MaxLogEntries.
	SaveLog(ctx context.Context, log []domain.ExecutionLogEntry) error

	// Close releases any underlying resources.
	Close() error
}

// CapLog bounds a log slice to the most recent MaxLogEntries entries.
func CapLog(log []domain.ExecutionLogEntry) []domain.ExecutionLogEntry {
	if len(log) <= MaxLogEntries {
		return log
	}
	return log[len(log)-MaxLogEntries:]
}

// Interface conformance checks.
var (
	_ ProfileStore = (*FileStore)(nil)
	_ ProfileStore = (*RedisStore)(nil)
	_ ProfileStore = (*PostgresStore)(nil)
)
