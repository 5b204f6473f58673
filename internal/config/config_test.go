package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopace/internal/config"
	"github.com/jonesrussell/gopace/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, config.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "profiles", cfg.Storage.Dir)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 1000, cfg.Monitor.HistorySize)
	assert.Equal(t, 10, cfg.Executor.ReadyBatchSize)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
profile: myagent
logging:
  level: debug
server:
  address: ":9090"
rate_limit:
  hourly_limits:
    tweets: 5
    follows: 2
  min_delay_seconds:
    tweets: 120
storage:
  backend: redis
  redis:
    addr: "redis:6379"
    prefix: pacer
executor:
  ready_batch_size: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "myagent", cfg.Profile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, config.BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 25, cfg.Executor.ReadyBatchSize)

	limits := cfg.RateLimit.HourlyLimitOverrides()
	assert.Equal(t, 5, limits[domain.ActionTweet])
	assert.Equal(t, 2, limits[domain.ActionFollow])

	delays := cfg.RateLimit.MinDelayOverrides()
	assert.Equal(t, 2*time.Minute, delays[domain.ActionTweet])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Profile = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "etcd"
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidBackend)

	cfg = base()
	cfg.Storage.Backend = config.BackendPostgres
	assert.Error(t, cfg.Validate(), "postgres backend requires a DSN")

	cfg = base()
	cfg.RateLimit.HourlyLimits = map[string]int{"teleports": 5}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.RateLimit.HourlyLimits = map[string]int{"tweets": -1}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Monitor.HistorySize = 0
	assert.Error(t, cfg.Validate())
}
