package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 60*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheMaxSize)
	assert.Equal(t, time.Hour, cfg.ActiveWindow)
	assert.Equal(t, 24*time.Hour, cfg.Cooldown)
	assert.Equal(t, 3, cfg.WeeklyCap)
	assert.False(t, cfg.QuietHoursEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("QUIET_HOURS_START", "22:00")
	t.Setenv("QUIET_HOURS_END", "07:00")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.QuietHoursEnabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FLOW_WEEKLY_CAP=5\nLOG_MODE=prod\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("FLOW_WEEKLY_CAP")
		os.Unsetenv("LOG_MODE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.WeeklyCap)
	assert.Equal(t, "prod", cfg.LogMode)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"zero size", func(c *Config) { c.CacheMaxSize = 0 }},
		{"zero timeout", func(c *Config) { c.SignalTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.BatchConcurrency = 0 }},
		{"zero cap", func(c *Config) { c.WeeklyCap = 0 }},
		{"half quiet hours", func(c *Config) { c.QuietHoursStart = "22:00" }},
		{"zero workers", func(c *Config) { c.IngestWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
