package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completeConfig returns defaults with the mandatory secrets filled in, i.e.
// the minimum a deployment must provide.
func completeConfig() Config {
	cfg := Defaults()
	cfg.Privy.AppID = "app-id"
	cfg.Privy.AppSecret = "app-secret"
	cfg.Security.ServiceToken = "token"
	return cfg
}

func TestValidateComplete(t *testing.T) {
	cfg := completeConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := completeConfig()
	cfg.Privy.AppID = ""
	cfg.Security.ServiceToken = ""
	cfg.Whitelist.ChainID = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "privy: app_id")
	assert.Contains(t, err.Error(), "security: service_token")
	assert.Contains(t, err.Error(), "whitelist: chain_id")
	assert.Contains(t, err.Error(), "server: port")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"negative rate limit", func(c *Config) { c.Security.MaxSignaturesPerMinute = -1 }, "max_signatures_per_minute"},
		{"commission over 100", func(c *Config) { c.Commission.ExpectedPercentage = 101 }, "expected_percentage"},
		{"negative tolerance", func(c *Config) { c.Commission.TolerancePercentage = -0.1 }, "tolerance_percentage"},
		{"no verifying contracts", func(c *Config) { c.Whitelist.VerifyingContracts = nil }, "verifying_contracts"},
		{"no tokens", func(c *Config) { c.Whitelist.TokenAddresses = nil }, "token_addresses"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true; c.S3.Bucket = "" }, "bucket"},
		{"missing pg database", func(c *Config) { c.AuditDB.Database = "" }, "audit_db: database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := completeConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := completeConfig()
	cfg.LedgerDB.Host = ""
	cfg.LedgerDB.Database = ""
	cfg.LedgerDB.DSN = "postgres://user:pass@db:5432/copytrading"

	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[privy]
app_id = "file-app"
app_secret = "file-secret"

[security]
service_token = "file-token"
max_signatures_per_minute = 30

[server]
port = 9999
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file-app", cfg.Privy.AppID)
	assert.Equal(t, 30, cfg.Security.MaxSignaturesPerMinute)
	assert.Equal(t, 9999, cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.privy.io", cfg.Privy.BaseURL)
	assert.Equal(t, int64(137), cfg.Whitelist.ChainID)
	assert.Equal(t, 90, cfg.Archive.RetentionDays)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGNBROKER_PRIVY_APP_SECRET", "env-secret")
	t.Setenv("SIGNBROKER_SERVER_PORT", "8123")
	t.Setenv("SIGNBROKER_MAX_DAILY_VOLUME_USDC", "50000")
	t.Setenv("SIGNBROKER_TEAM_WALLETS", "0xaaa, 0xbbb")
	t.Setenv("SIGNBROKER_AUDIT_DB_PASSWORD", "env-pass")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "env-secret", cfg.Privy.AppSecret)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, 50000.0, cfg.Security.MaxDailyVolumeUSDC)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, cfg.Whitelist.TeamWallets)
	assert.Equal(t, "env-pass", cfg.AuditDB.Password)
}

func TestRedactedConfig(t *testing.T) {
	cfg := completeConfig()
	cfg.AuditDB.Password = "db-pass"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.NotEqual(t, cfg.Privy.AppSecret, red.Privy.AppSecret)
	assert.NotEqual(t, cfg.AuditDB.Password, red.AuditDB.Password)
	assert.NotEqual(t, cfg.S3.SecretKey, red.S3.SecretKey)
	assert.NotEqual(t, cfg.Security.ServiceToken, red.Security.ServiceToken)
	assert.NotEqual(t, cfg.Notify.TelegramToken, red.Notify.TelegramToken)

	// The original must not be touched.
	assert.Equal(t, "app-secret", cfg.Privy.AppSecret)
}
