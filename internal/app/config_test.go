package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CAREVIEW_SESSION_SECRET", "test-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 4000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Address)
	require.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Equal(t, 7*24*time.Hour, cfg.Notifications.TTL)
	require.Equal(t, 100, cfg.RateLimit.MaxRequests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.True(t, cfg.GraphQLCache.Enabled)
	require.Equal(t, 30*time.Second, cfg.Realtime.PingInterval)
	require.Equal(t, 5*time.Minute, cfg.Realtime.IdleTimeout)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("CAREVIEW_SESSION_SECRET", "")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "redis.example.com:6379", cfg.Redis.Address)
	require.Equal(t, "file-secret", cfg.Session.Secret)
	require.Equal(t, 12*time.Hour, cfg.Session.TTL)
	require.Equal(t, 50, cfg.RateLimit.MaxRequests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	require.False(t, cfg.GraphQLCache.Enabled)
}

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging(""))
	require.NoError(t, ConfigureLogging("debug"))
}
