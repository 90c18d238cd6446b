package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

upstream:
  base_url: "https://graph.adplatform.example/v19.0"
  timeout_seconds: 45
  max_retries: 5

worker:
  concurrency: 12
  poll_interval_seconds: 2
  stale_after_minutes: 20

scheduler:
  rule_check_cron: "*/10 * * * *"
  report_dispatch_cron: "*/2 * * * *"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "https://graph.adplatform.example/v19.0", cfg.Upstream.BaseURL)
	assert.Equal(t, 45, cfg.Upstream.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Upstream.MaxRetries)

	assert.Equal(t, 12, cfg.Worker.Concurrency)
	assert.Equal(t, 2, cfg.Worker.PollIntervalSeconds)
	assert.Equal(t, 20, cfg.Worker.StaleAfterMinutes)

	assert.Equal(t, "*/10 * * * *", cfg.Scheduler.RuleCheckCron)
	assert.Equal(t, "*/2 * * * *", cfg.Scheduler.ReportDispatchCron)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("server:\n  port: 8081\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Upstream.TimeoutSeconds)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
	assert.Equal(t, 5, cfg.Upstream.RatePerSecond)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.RuleCheckCron)
	assert.Equal(t, "* * * * *", cfg.Scheduler.ReportDispatchCron)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("database:\n  url: \"file-dsn\"\n"), 0644)
	require.NoError(t, err)

	os.Setenv("DATABASE_URL", "env-dsn")
	os.Setenv("REDIS_URL", "redis://env")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("REDIS_URL")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-dsn", cfg.Database.URL)
	assert.Equal(t, "redis://env", cfg.Redis.URL)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestUpstreamTimeout(t *testing.T) {
	cfg := UpstreamConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45*1000000000, int(cfg.Timeout().Nanoseconds()))
}

func TestWorkerPollInterval(t *testing.T) {
	cfg := WorkerConfig{PollIntervalSeconds: 5}
	assert.Equal(t, 5*1000000000, int(cfg.PollInterval().Nanoseconds()))
}
