package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gopace/internal/domain"
)

const (
	// defaultKeyPrefix namespaces profile keys in Redis.
	defaultKeyPrefix = "gopace"

	// defaultConnectTimeout bounds the initial ping.
	defaultConnectTimeout = 2 * time.Second
)

// RedisConfig holds connection settings for the Redis-backed store.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password" json:"-"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// RedisStore persists profile state as JSON values in Redis.
type RedisStore struct {
	client  *redis.Client
	profile string
	prefix  string
}

// NewRedisStore connects to Redis and returns a store scoped to one profile.
func NewRedisStore(cfg RedisConfig, profile string) (*RedisStore, error) {
	if profile == "" {
		return nil, errors.New("profile name cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStore{client: client, profile: profile, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing Redis client.
func NewRedisStoreFromClient(client *redis.Client, prefix, profile string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, profile: profile, prefix: prefix}
}

// key builds the full Redis key for a state kind.
func (s *RedisStore) key(kind string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.profile, kind)
}

// LoadConfig decodes the persisted configuration into v.
func (s *RedisStore) LoadConfig(ctx context.Context, v any) error {
	return s.get(ctx, "config", v)
}

// SaveConfig persists the configuration object.
func (s *RedisStore) SaveConfig(ctx context.Context, v any) error {
	return s.set(ctx, "config", v)
}

// LoadSchedule returns the persisted active interaction schedule.
func (s *RedisStore) LoadSchedule(ctx context.Context) ([]domain.Interaction, error) {
	var schedule []domain.Interaction
	if err := s.get(ctx, "schedule", &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// SaveSchedule persists the active interaction schedule.
func (s *RedisStore) SaveSchedule(ctx context.Context, schedule []domain.Interaction) error {
	return s.set(ctx, "schedule", schedule)
}

// LoadLog returns the persisted execution log.
func (s *RedisStore) LoadLog(ctx context.Context) ([]domain.ExecutionLogEntry, error) {
	var log []domain.ExecutionLogEntry
	if err := s.get(ctx, "log", &log); err != nil {
		return nil, err
	}
	return log, nil
}

// SaveLog persists the execution log, capped to MaxLogEntries.
func (s *RedisStore) SaveLog(ctx context.Context, log []domain.ExecutionLogEntry) error {
	return s.set(ctx, "log", CapLog(log))
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// get fetches and decodes one state value.
func (s *RedisStore) get(ctx context.Context, kind string, v any) error {
	data, err := s.client.Get(ctx, s.key(kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// set serializes and stores one state value.
func (s *RedisStore) set(ctx context.Context, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := s.client.Set(ctx, s.key(kind), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", kind, err)
	}
	return nil
}
