package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs Load from an empty directory so no stray config.yaml is picked up
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "monopoly", cfg.MongoDB.Database)
	assert.Equal(t, "matches", cfg.MongoDB.MatchesColl)
	assert.Equal(t, "localhost:6379", cfg.Redis.URI)
	assert.Equal(t, 72*time.Hour, cfg.Redis.StateExpiry())
	assert.Equal(t, time.Second, cfg.Game.AuctionPoll())
	assert.Equal(t, 200*time.Millisecond, cfg.Game.OutboxPoll())
	assert.Equal(t, 3, cfg.Game.MaxDeliveryAttempts)
	assert.Zero(t, cfg.Game.Seed)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_URI", "redis:6380")
	t.Setenv("GAME_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis:6380", cfg.Redis.URI)
	assert.Equal(t, int64(42), cfg.Game.Seed)
}

func TestLoadConfigFile(t *testing.T) {
	dir := inTempDir(t)
	yaml := []byte("server:\n  port: 7070\njwt:\n  secret: from-file\ngame:\n  auction_poll_interval: 250\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 250*time.Millisecond, cfg.Game.AuctionPoll())
	// untouched keys keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
