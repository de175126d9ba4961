package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SIGNBROKER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SIGNBROKER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Privy ──
	setStr(&cfg.Privy.BaseURL, "SIGNBROKER_PRIVY_BASE_URL")
	setStr(&cfg.Privy.AppID, "SIGNBROKER_PRIVY_APP_ID")
	setStr(&cfg.Privy.AppSecret, "SIGNBROKER_PRIVY_APP_SECRET")
	setInt(&cfg.Privy.TimeoutSeconds, "SIGNBROKER_PRIVY_TIMEOUT_SECONDS")

	// ── Audit DB ──
	applyPostgresEnv(&cfg.AuditDB, "SIGNBROKER_AUDIT_DB")

	// ── Ledger DB ──
	applyPostgresEnv(&cfg.LedgerDB, "SIGNBROKER_LEDGER_DB")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SIGNBROKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SIGNBROKER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SIGNBROKER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SIGNBROKER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SIGNBROKER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SIGNBROKER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SIGNBROKER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SIGNBROKER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SIGNBROKER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SIGNBROKER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SIGNBROKER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SIGNBROKER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SIGNBROKER_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SIGNBROKER_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SIGNBROKER_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Interval, "SIGNBROKER_ARCHIVE_INTERVAL")

	// ── Security ──
	setStr(&cfg.Security.ServiceToken, "SIGNBROKER_SERVICE_TOKEN")
	setStringSlice(&cfg.Security.AllowedIPsOrder, "SIGNBROKER_ALLOWED_IPS_ORDER")
	setStringSlice(&cfg.Security.AllowedIPsAllowance, "SIGNBROKER_ALLOWED_IPS_ALLOWANCE")
	setStringSlice(&cfg.Security.AllowedIPsTransfer, "SIGNBROKER_ALLOWED_IPS_TRANSFER")
	setInt(&cfg.Security.MaxSignaturesPerMinute, "SIGNBROKER_MAX_SIGNATURES_PER_MINUTE")
	setFloat64(&cfg.Security.MaxDailyVolumeUSDC, "SIGNBROKER_MAX_DAILY_VOLUME_USDC")

	// ── Commission ──
	setFloat64(&cfg.Commission.ExpectedPercentage, "SIGNBROKER_COMMISSION_EXPECTED_PERCENTAGE")
	setFloat64(&cfg.Commission.TolerancePercentage, "SIGNBROKER_COMMISSION_TOLERANCE_PERCENTAGE")

	// ── Whitelist ──
	setInt64(&cfg.Whitelist.ChainID, "SIGNBROKER_CHAIN_ID")
	setStringSlice(&cfg.Whitelist.VerifyingContracts, "SIGNBROKER_VERIFYING_CONTRACTS")
	setStringSlice(&cfg.Whitelist.TokenAddresses, "SIGNBROKER_TOKEN_ADDRESSES")
	setStringSlice(&cfg.Whitelist.SpenderAddresses, "SIGNBROKER_SPENDER_ADDRESSES")
	setStringSlice(&cfg.Whitelist.TeamWallets, "SIGNBROKER_TEAM_WALLETS")

	// ── Server ──
	setInt(&cfg.Server.Port, "SIGNBROKER_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SIGNBROKER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SIGNBROKER_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "SIGNBROKER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SIGNBROKER_LOG_LEVEL")
}

// applyPostgresEnv applies the standard set of overrides for one Postgres
// section under the given prefix (e.g. SIGNBROKER_AUDIT_DB_HOST).
func applyPostgresEnv(pg *PostgresConfig, prefix string) {
	setStr(&pg.DSN, prefix+"_DSN")
	setStr(&pg.Host, prefix+"_HOST")
	setInt(&pg.Port, prefix+"_PORT")
	setStr(&pg.Database, prefix+"_DATABASE")
	setStr(&pg.User, prefix+"_USER")
	setStr(&pg.Password, prefix+"_PASSWORD")
	setStr(&pg.SSLMode, prefix+"_SSLMODE")
	setInt(&pg.PoolMaxConns, prefix+"_POOL_MAX_CONNS")
	setInt(&pg.PoolMinConns, prefix+"_POOL_MIN_CONNS")
	setBool(&pg.RunMigrations, prefix+"_RUN_MIGRATIONS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
