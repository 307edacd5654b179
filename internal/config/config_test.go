package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "prospect-audit.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://app.pageoptimizer.pro/api", cfg.POP.BaseURL)
	assert.InDelta(t, 2.0, cfg.POP.RequestsPerSecond, 0.001)
	assert.Equal(t, 30, cfg.POP.SubmitTimeoutSecs)
	assert.Equal(t, 60, cfg.POP.Terms.MaxAttempts)
	assert.Equal(t, 120, cfg.POP.Report.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.POP.Report.Budget().Interval)
	assert.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.Retention())
	assert.Equal(t, 10*time.Minute, cfg.Jobs.SweepInterval())
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(600), cfg.Anthropic.MaxTokens)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.InDelta(t, 0.25, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/audit
log:
  level: debug
  format: console
server:
  port: 9090
pop:
  terms:
    max_attempts: 10
    interval_secs: 2
jobs:
  max_concurrent: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/audit", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.POP.Terms.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.POP.Terms.Budget().Interval)
	assert.Equal(t, 8, cfg.Jobs.MaxConcurrent)
	// Defaults still apply for unset values
	assert.Equal(t, 120, cfg.POP.Report.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("AUDIT_STORE_DRIVER", "postgres")
	t.Setenv("AUDIT_LOG_LEVEL", "warn")
	t.Setenv("AUDIT_POP_KEY", "pop-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "pop-secret", cfg.POP.Key)
}

func TestLoadEnvOverridesNested(t *testing.T) {
	chdirTemp(t)

	t.Setenv("AUDIT_POP_REPORT_MAX_ATTEMPTS", "7")
	t.Setenv("AUDIT_RATE_LIMIT_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.POP.Report.MaxAttempts)
	assert.Equal(t, 3, cfg.RateLimit.Limit)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "audit.db"
	cfg.POP.Key = "pop-key"
	cfg.POP.Terms.MaxAttempts = 60
	cfg.POP.Report.MaxAttempts = 120
	cfg.Jobs.MaxConcurrent = 4
	cfg.RateLimit.Limit = 10
	cfg.RateLimit.WindowSecs = 60
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.POP.Key = ""
	cfg.Server.Port = 0
	cfg.Jobs.MaxConcurrent = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pop.key is required")
	assert.Contains(t, err.Error(), "server.port 0 is out of range")
	assert.Contains(t, err.Error(), "jobs.max_concurrent must be positive")
}

func TestValidateAudit_IgnoresServerSettings(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate("audit"))

	cfg.POP.Report.MaxAttempts = 0
	assert.ErrorContains(t, cfg.Validate("audit"), "max_attempts")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.POP.Key = ""
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate("store"), `store.driver "mysql" is not supported`)

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate("store"), "store.database_url is required")
}

func TestValidateOffline(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate("offline"))
}
