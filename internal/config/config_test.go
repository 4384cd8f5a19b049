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
	t.Chdir(t.TempDir())
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "SERVER_PORT", "CHECK_MODE", "CHECK_BATCH_SIZE", "CHECK_TIMEOUT", "CHECK_SCHEDULE", "FETCHER_PROXIES"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, 15, c.CheckBatchSize)
	assert.Equal(t, 5*time.Second, c.CheckTimeout)
	assert.Equal(t, "optimistic", c.CheckMode)
	assert.Equal(t, time.Hour, c.SessionTTL)
	assert.False(t, c.HasDatabase())
	assert.Empty(t, c.Proxies)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/scout")
	t.Setenv("CHECK_MODE", "Strict")
	t.Setenv("CHECK_BATCH_SIZE", "20")
	t.Setenv("CHECK_TIMEOUT", "bogus")
	t.Setenv("CHECK_VERIFY_HLS", "true")
	t.Setenv("CHECK_SCHEDULE", "*/30 * * * *")
	t.Setenv("FETCHER_PROXIES", "https://a/?u={url}, ,https://b/{url}")

	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.HasDatabase())
	assert.Equal(t, "strict", c.CheckMode)
	assert.Equal(t, 20, c.CheckBatchSize)
	assert.Equal(t, 5*time.Second, c.CheckTimeout)
	assert.True(t, c.CheckVerifyHLS)
	assert.Equal(t, []string{"https://a/?u={url}", "https://b/{url}"}, c.Proxies)
}

func TestLoad_InvalidMode(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHECK_MODE", "paranoid")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidCheckMode)
}

func TestLoad_InvalidSchedule(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHECK_MODE", "")
	t.Setenv("CHECK_SCHEDULE", "every now and then")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=9999\nREDIS_URL=redis://from-file:6379\n"), 0o600))
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("REDIS_URL", "")
	os.Unsetenv("REDIS_URL")
	t.Setenv("CHECK_MODE", "")
	t.Setenv("CHECK_SCHEDULE", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", c.ServerPort)
	assert.Equal(t, "redis://from-file:6379", c.RedisURL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database_url: postgres://db/scout
server_port: "9090"
proxies:
  - https://p/?u={url}
check_batch_size: 5
check_timeout: 2s
check_mode: strict
session_ttl: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/scout", c.DatabaseURL)
	assert.Equal(t, "9090", c.ServerPort)
	assert.Equal(t, []string{"https://p/?u={url}"}, c.Proxies)
	assert.Equal(t, 5, c.CheckBatchSize)
	assert.Equal(t, 2*time.Second, c.CheckTimeout)
	assert.Equal(t, "strict", c.CheckMode)
	assert.Equal(t, 10*time.Minute, c.SessionTTL)
	assert.Equal(t, 30*time.Second, c.Timeout)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
