package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenNoFileIsFound(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.GetAddr())
	assert.Equal(t, "session", cfg.Session.KeyPrefix)
	assert.Equal(t, "token", cfg.Session.TokenPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.True(t, cfg.Session.ShareTokenTTL)
	assert.Equal(t, "*", cfg.Export.Pattern)
	assert.Equal(t, "redis_data.json", cfg.Export.Path)
	assert.Equal(t, "info", cfg.Logger.Level)
	mc := cfg.ManagerConfig()
	assert.NoError(t, mc.Validate())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
redis:
  host: cache.internal
  port: 6380
  db: 2
session:
  key_prefix: sess
  ttl: 10m
logger:
  level: debug
`)
	t.Setenv("GOSESSION_REDIS_PORT", "7000")
	t.Setenv("GOSESSION_SESSION_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:7000", cfg.Redis.GetAddr())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "sess", cfg.Session.KeyPrefix)
	assert.Equal(t, 90*time.Second, cfg.Session.TTL)
	assert.Equal(t, "debug", cfg.Logger.Level)

	mc := cfg.ManagerConfig()
	assert.Equal(t, "sess", mc.Session.KeyPrefix)
	assert.Equal(t, 90*time.Second, mc.Session.TTL)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestAddressesPrefersAddrs(t *testing.T) {
	r := RedisConfig{Host: "h", Port: 1, Addrs: []string{"a:1", "b:2"}}
	assert.Equal(t, []string{"a:1", "b:2"}, r.Addresses())

	r.Addrs = nil
	assert.Equal(t, []string{"h:1"}, r.Addresses())
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	mc := cfg.ManagerConfig()
	assert.NoError(t, mc.Validate())
}
