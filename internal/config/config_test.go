package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", "/tmp/owl")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("TORN_REQUESTS_PER_MINUTE", "")
	t.Setenv("CHAIN_CHECK_INTERVAL_SECONDS", "")
	t.Setenv("FACTION_STATS_INTERVAL_MINUTES", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("YATA_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.Discord.Token)
	assert.Equal(t, filepath.Join("/tmp/owl", "brother_owl.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, filepath.Join("/tmp/owl", "giveaways.json"), cfg.Storage.File("giveaways.json"))
	assert.Equal(t, 100, cfg.Torn.RequestsPerMinute)
	assert.Equal(t, time.Minute, cfg.Monitor.ChainInterval)
	assert.Equal(t, time.Hour, cfg.Monitor.StatsInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Redis.Addr)
	assert.NotContains(t, cfg.Mirrors, "yata")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("TORN_REQUESTS_PER_MINUTE", "50")
	t.Setenv("CHAIN_CHECK_INTERVAL_SECONDS", "30")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("YATA_URL", "http://yata.local/%[1]d?key=%[2]s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Torn.RequestsPerMinute)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ChainInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "http://yata.local/%[1]d?key=%[2]s", cfg.Mirrors["yata"])
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing token", map[string]string{"DISCORD_TOKEN": ""}},
		{"bad integer", map[string]string{"DISCORD_TOKEN": "t", "REDIS_DB": "two"}},
		{"bad level", map[string]string{"DISCORD_TOKEN": "t", "LOG_LEVEL": "loud"}},
		{"bad rate", map[string]string{"DISCORD_TOKEN": "t", "TORN_REQUESTS_PER_MINUTE": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
