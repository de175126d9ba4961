// Package config defines the top-level configuration for the signing broker
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SIGNBROKER_* environment
// variables.
type Config struct {
	Privy      PrivyConfig      `toml:"privy"`
	AuditDB    PostgresConfig   `toml:"audit_db"`
	LedgerDB   PostgresConfig   `toml:"ledger_db"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Security   SecurityConfig   `toml:"security"`
	Commission CommissionConfig `toml:"commission"`
	Whitelist  WhitelistConfig  `toml:"whitelist"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// PrivyConfig holds custodial signing provider credentials.
type PrivyConfig struct {
	BaseURL        string `toml:"base_url"`
	AppID          string `toml:"app_id"`
	AppSecret      string `toml:"app_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PostgresConfig holds PostgreSQL connection parameters. It is used twice:
// once for the audit database this service owns, and once for the external
// activity ledger (read + replay flags only).
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for audit archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls export and pruning of old audit rows.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Interval      string `toml:"interval"` // Go duration string, e.g. "24h"
}

// SecurityConfig holds service authentication and per-user limits.
// A limit of 0 means unlimited.
type SecurityConfig struct {
	ServiceToken           string   `toml:"service_token"`
	AllowedIPsOrder        []string `toml:"allowed_ips_order"`
	AllowedIPsAllowance    []string `toml:"allowed_ips_allowance"`
	AllowedIPsTransfer     []string `toml:"allowed_ips_transfer"`
	MaxSignaturesPerMinute int      `toml:"max_signatures_per_minute"`
	MaxDailyVolumeUSDC     float64  `toml:"max_daily_volume_usdc"`
}

// CommissionConfig holds the expected platform fee and the accepted
// deviation, both in percent.
type CommissionConfig struct {
	ExpectedPercentage  float64 `toml:"expected_percentage"`
	TolerancePercentage float64 `toml:"tolerance_percentage"`
}

// WhitelistConfig pins the contracts, tokens, and recipients a request may
// reference. Everything is compared lowercased.
type WhitelistConfig struct {
	ChainID            int64    `toml:"chain_id"`
	VerifyingContracts []string `toml:"verifying_contracts"`
	TokenAddresses     []string `toml:"token_addresses"`
	SpenderAddresses   []string `toml:"spender_addresses"`
	TeamWallets        []string `toml:"team_wallets"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port int `toml:"port"`
}

// NotifyConfig holds alert channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Privy: PrivyConfig{
			BaseURL:        "https://api.privy.io",
			TimeoutSeconds: 15,
		},
		AuditDB: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "signbroker",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		LedgerDB: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "copytrading",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
			// The ledger schema is owned by the copytrading service; this
			// service never migrates it.
			RunMigrations: false,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "signbroker-audit",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      "24h",
		},
		Security: SecurityConfig{
			MaxSignaturesPerMinute: 0,
			MaxDailyVolumeUSDC:     0,
		},
		Commission: CommissionConfig{
			ExpectedPercentage:  1.0,
			TolerancePercentage: 0.1,
		},
		Whitelist: WhitelistConfig{
			ChainID: 137,
			VerifyingContracts: []string{
				"0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e", // CTF Exchange
				"0xc5d563a36ae78145c45a50134d48a1215220f80a", // NegRisk CTF Exchange
			},
			TokenAddresses: []string{
				"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", // USDC
				"0x2791bca1f2de4661ed88a30c99a7a9449aa84174", // USDC.e
			},
			SpenderAddresses: []string{
				"0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e",
				"0xc5d563a36ae78145c45a50134d48a1215220f80a",
			},
			TeamWallets: []string{},
		},
		Server: ServerConfig{
			Port: 8090,
		},
		Notify: NotifyConfig{
			Events: []string{"validation_failed", "volume_limited", "audit_write_failed"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. A non-nil result is a
// fatal startup condition.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Privy credentials are mandatory: without them no signature can ever
	// be produced.
	if c.Privy.AppID == "" {
		errs = append(errs, "privy: app_id must not be empty")
	}
	if c.Privy.AppSecret == "" {
		errs = append(errs, "privy: app_secret must not be empty")
	}
	if c.Privy.BaseURL == "" {
		errs = append(errs, "privy: base_url must not be empty")
	}
	if c.Privy.TimeoutSeconds <= 0 {
		errs = append(errs, "privy: timeout_seconds must be positive")
	}

	errs = append(errs, validatePostgres("audit_db", c.AuditDB)...)
	errs = append(errs, validatePostgres("ledger_db", c.LedgerDB)...)

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.Security.ServiceToken == "" {
		errs = append(errs, "security: service_token must not be empty")
	}
	if c.Security.MaxSignaturesPerMinute < 0 {
		errs = append(errs, "security: max_signatures_per_minute must not be negative")
	}
	if c.Security.MaxDailyVolumeUSDC < 0 {
		errs = append(errs, "security: max_daily_volume_usdc must not be negative")
	}

	if c.Commission.ExpectedPercentage < 0 || c.Commission.ExpectedPercentage > 100 {
		errs = append(errs, fmt.Sprintf("commission: expected_percentage must be 0-100, got %g", c.Commission.ExpectedPercentage))
	}
	if c.Commission.TolerancePercentage < 0 {
		errs = append(errs, "commission: tolerance_percentage must not be negative")
	}

	if c.Whitelist.ChainID <= 0 {
		errs = append(errs, "whitelist: chain_id must be positive")
	}
	if len(c.Whitelist.VerifyingContracts) == 0 {
		errs = append(errs, "whitelist: verifying_contracts must not be empty")
	}
	if len(c.Whitelist.TokenAddresses) == 0 {
		errs = append(errs, "whitelist: token_addresses must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if c.Archive.Enabled {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when archive is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePostgres(section string, pg PostgresConfig) []string {
	var errs []string
	if strings.TrimSpace(pg.DSN) == "" {
		if pg.Host == "" {
			errs = append(errs, section+": host must not be empty (or set dsn)")
		}
		if pg.Port <= 0 || pg.Port > 65535 {
			errs = append(errs, fmt.Sprintf("%s: port must be 1-65535, got %d", section, pg.Port))
		}
		if pg.Database == "" {
			errs = append(errs, section+": database must not be empty")
		}
	}
	if pg.PoolMaxConns < 1 {
		errs = append(errs, section+": pool_max_conns must be >= 1")
	}
	if pg.PoolMinConns < 0 {
		errs = append(errs, section+": pool_min_conns must not be negative")
	}
	return errs
}
