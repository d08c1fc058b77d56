package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "telehealth_", cfg.TablePrefix)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.MinCancelNotice)
	assert.Equal(t, 15*time.Minute, cfg.NoShowSweepInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TABLE_PREFIX", "staging_")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("MIN_CANCEL_NOTICE", "2h")
	t.Setenv("NO_SHOW_SWEEP_INTERVAL", "1m")

	cfg := Load()

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "staging_", cfg.TablePrefix)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, 2*time.Hour, cfg.MinCancelNotice)
	assert.Equal(t, time.Minute, cfg.NoShowSweepInterval)
}

func TestLoadIgnoresMalformedDuration(t *testing.T) {
	t.Setenv("MIN_CANCEL_NOTICE", "not-a-duration")

	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.MinCancelNotice)
}
