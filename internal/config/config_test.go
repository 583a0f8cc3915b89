package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("BCRYPT_COST", "10")
}

func TestFromEnvMemoryDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.BookingTimeout)
	assert.Equal(t, 3, cfg.DBTxRetries)
	assert.Equal(t, 5, cfg.GridRows)
	assert.Equal(t, 8, cfg.GridCols)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.SeedDemo)
	assert.Empty(t, cfg.RabbitURL)
}

func TestFromEnvMySQLRequiresDB(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "DB_HOST")

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "cinema")
	t.Setenv("BOOKING_TIMEOUT", "2s")
	t.Setenv("SEED_DEMO", "true")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.BookingTimeout)
	assert.True(t, cfg.SeedDemo)
}

func TestFromEnvCollectsProblems(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("BCRYPT_COST", "high")
	t.Setenv("GRID_ROWS", "0")

	_, err := FromEnv()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "STORE_DRIVER")
	assert.Contains(t, msg, "BCRYPT_COST")
	assert.Contains(t, msg, "grid")
}

func TestFromEnvRejectsBcryptCostOutOfRange(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BCRYPT_COST", "40")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid BCRYPT_COST")
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "user_route", cfg.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.True(t, cfg.Enabled)
}

func TestNewRedisClientDisabled(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{})
	assert.ErrorIs(t, err, ErrRedisDisabled)
}
