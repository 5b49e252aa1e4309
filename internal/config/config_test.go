package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, ValidationLocal, cfg.ValidationMode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30, cfg.NumberingLimits().ExpiryWarningDays)
	assert.Equal(t, int64(100), cfg.NumberingLimits().ExhaustionWarning)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.NoError(t, cfg.AccountPlan().Validate())
	assert.Empty(t, cfg.NegativeStock())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/ledger")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("VALIDATION_MODE", "asynq")
	t.Setenv("REDIS_URL", "redis://:secret@cache:6380/2")
	t.Setenv("NEGATIVE_STOCK_LOCATIONS", "kiosk, ,popup")
	t.Setenv("TIMEZONE", "America/Bogota")
	t.Setenv("ACCOUNT_RECEIVABLE", "1305")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kiosk", "popup"}, cfg.NegativeStock())
	assert.Equal(t, "America/Bogota", cfg.Location().String())
	assert.Equal(t, "1305", cfg.AccountPlan().Receivable)

	pc := cfg.PoolConfig()
	assert.Equal(t, "postgres://ledger@localhost/ledger", pc.DSN)
	assert.Equal(t, int32(7), pc.MaxConns)

	opts, err := cfg.AsynqRedis()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown storage", map[string]string{"STORAGE": "sqlite"}},
		{"postgres without dsn", map[string]string{"STORAGE": "postgres"}},
		{"asynq without redis", map[string]string{"VALIDATION_MODE": "asynq"}},
		{"unknown validation mode", map[string]string{"VALIDATION_MODE": "kafka"}},
		{"delay bounds inverted", map[string]string{"VALIDATION_DELAY_MIN": "5s", "VALIDATION_DELAY_MAX": "1s"}},
		{"approval rate above one", map[string]string{"VALIDATION_APPROVAL_RATE": "1.5"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad duration", map[string]string{"IDEMPOTENCY_TTL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAsynqRedisRequiresURL(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.AsynqRedis()
	assert.Error(t, err)
}
