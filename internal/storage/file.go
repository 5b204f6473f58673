package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/gopace/internal/domain"
)

const (
	configFile   = "scheduler_config.json"
	scheduleFile = "interaction_schedule.json"
	logFile      = "execution_log.json"

	profileDirPerm = 0o755
	stateFilePerm  = 0o644
)

// FileStore persists profile state as JSON files under a profile directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at baseDir/profile. The directory
// is created if absent.
func NewFileStore(baseDir, profile string) (*FileStore, error) {
	if profile == "" {
		return nil, errors.New("profile name cannot be empty")
	}
	dir := filepath.Join(baseDir, profile)
	if err := os.MkdirAll(dir, profileDirPerm); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the profile directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// LoadConfig decodes the persisted configuration into v.
func (s *FileStore) LoadConfig(ctx context.Context, v any) error {
	return s.read(configFile, v)
}

// SaveConfig persists the configuration object.
func (s *FileStore) SaveConfig(ctx context.Context, v any) error {
	return s.write(configFile, v)
}

// LoadSchedule returns the persisted active interaction schedule.
func (s *FileStore) LoadSchedule(ctx context.Context) ([]domain.Interaction, error) {
	var schedule []domain.Interaction
	if err := s.read(scheduleFile, &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// SaveSchedule persists the active interaction schedule.
func (s *FileStore) SaveSchedule(ctx context.Context, schedule []domain.Interaction) error {
	return s.write(scheduleFile, schedule)
}

// LoadLog returns the persisted execution log.
func (s *FileStore) LoadLog(ctx context.Context) ([]domain.ExecutionLogEntry, error) {
	var log []domain.ExecutionLogEntry
	if err := s.read(logFile, &log); err != nil {
		return nil, err
	}
	return log, nil
}

// SaveLog persists the execution log, capped to MaxLogEntries.
func (s *FileStore) SaveLog(ctx context.Context, log []domain.ExecutionLogEntry) error {
	return s.write(logFile, CapLog(log))
}

// Close is a no-op for file-backed storage.
func (s *FileStore) Close() error {
	return nil
}

// read decodes one state file into v.
func (s *FileStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write serializes v to a temp file and renames it into place, so readers
// never observe a partially written state file.
func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, stateFilePerm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
