package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/signbroker/internal/blob/s3"
	"github.com/alanyoungcy/signbroker/internal/cache/redis"
	"github.com/alanyoungcy/signbroker/internal/config"
	"github.com/alanyoungcy/signbroker/internal/domain"
	"github.com/alanyoungcy/signbroker/internal/notify"
	"github.com/alanyoungcy/signbroker/internal/platform/privy"
	"github.com/alanyoungcy/signbroker/internal/server"
	"github.com/alanyoungcy/signbroker/internal/server/handler"
	"github.com/alanyoungcy/signbroker/internal/signing"
	"github.com/alanyoungcy/signbroker/internal/store/postgres"
)

// Dependencies bundles every wired component the application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	AuditStore domain.AuditStore
	Ledger     domain.ActivityLedger
	Signer     domain.Signer

	Signing  *signing.Service
	Server   *server.Server
	Archiver domain.Archiver // nil when archival is disabled
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Audit database (owned by this service) ---
	auditClient, err := postgres.New(ctx, pgClientConfig(cfg.AuditDB))
	if err != nil {
		return fail(fmt.Errorf("wire: audit db: %w", err))
	}
	closers = append(closers, auditClient.Close)

	if cfg.AuditDB.RunMigrations {
		if err := auditClient.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: audit db migrations: %w", err))
		}
	}
	deps.AuditStore = postgres.NewAuditStore(auditClient.Pool())

	// --- Activity ledger (owned by the copytrading service, never migrated
	// here) ---
	ledgerClient, err := postgres.New(ctx, pgClientConfig(cfg.LedgerDB))
	if err != nil {
		return fail(fmt.Errorf("wire: ledger db: %w", err))
	}
	closers = append(closers, ledgerClient.Close)
	deps.Ledger = postgres.NewActivityStore(ledgerClient.Pool())

	// --- Redis (shared limit state across broker processes) ---
	var (
		rateLimiter   signing.RateLimiter
		volumeTracker signing.VolumeTracker
		redisClient   *redis.Client
	)
	if limitsConfigured(cfg.Security) {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		rateLimiter = redis.NewRateLimiter(redisClient)
		volumeTracker = redis.NewVolumeTracker(redisClient)
	}

	// --- Alerting ---
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		deps.Notifier = notify.NewNotifier(
			[]notify.Sender{notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)},
			cfg.Notify.Events,
			logger,
		)
	}

	// --- Custodial signing provider ---
	deps.Signer = privy.New(privy.Config{
		BaseURL:   cfg.Privy.BaseURL,
		AppID:     cfg.Privy.AppID,
		AppSecret: cfg.Privy.AppSecret,
		Timeout:   time.Duration(cfg.Privy.TimeoutSeconds) * time.Second,
	})

	// --- Signing orchestrator ---
	security := signing.NewSecurityManager(rateLimiter, volumeTracker, signing.Limits{
		MaxSignaturesPerMinute: cfg.Security.MaxSignaturesPerMinute,
		MaxDailyVolumeUSDC:     cfg.Security.MaxDailyVolumeUSDC,
	}, logger)

	whitelist := signing.NewWhitelist(signing.WhitelistConfig{
		ChainID:            cfg.Whitelist.ChainID,
		VerifyingContracts: cfg.Whitelist.VerifyingContracts,
		TokenAddresses:     cfg.Whitelist.TokenAddresses,
		SpenderAddresses:   cfg.Whitelist.SpenderAddresses,
		TeamWallets:        cfg.Whitelist.TeamWallets,
	})

	var alerter signing.Alerter
	if deps.Notifier != nil {
		alerter = deps.Notifier
	}

	deps.Signing = signing.NewService(
		deps.Ledger,
		deps.AuditStore,
		deps.Signer,
		security,
		alerter,
		whitelist,
		signing.CommissionPolicy{
			ExpectedPct:  cfg.Commission.ExpectedPercentage,
			TolerancePct: cfg.Commission.TolerancePercentage,
		},
		logger,
	)

	// --- Audit archival (optional) ---
	var blobReader domain.BlobReader
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}

		deps.Archiver = s3blob.NewArchiver(s3Client, deps.AuditStore, logger)
		blobReader = s3blob.NewReader(s3Client)
	}

	// --- HTTP server ---
	pingers := map[string]handler.Pinger{
		"audit_db":  auditClient,
		"ledger_db": ledgerClient,
	}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(pingers, logger),
		Sign:   handler.NewSignHandler(deps.Signing, logger),
		Audit:  handler.NewAuditHandler(deps.AuditStore, blobReader, logger),
	}

	deps.Server = server.NewServer(server.Config{
		Port:                cfg.Server.Port,
		ServiceToken:        cfg.Security.ServiceToken,
		AllowedIPsOrder:     cfg.Security.AllowedIPsOrder,
		AllowedIPsAllowance: cfg.Security.AllowedIPsAllowance,
		AllowedIPsTransfer:  cfg.Security.AllowedIPsTransfer,
	}, handlers, logger)

	return deps, cleanup, nil
}

func pgClientConfig(pg config.PostgresConfig) postgres.ClientConfig {
	return postgres.ClientConfig{
		DSN:      pg.DSN,
		Host:     pg.Host,
		Port:     pg.Port,
		Database: pg.Database,
		User:     pg.User,
		Password: pg.Password,
		SSLMode:  pg.SSLMode,
		MaxConns: pg.PoolMaxConns,
		MinConns: pg.PoolMinConns,
	}
}

// limitsConfigured reports whether any per-user limit needs Redis-backed
// state.
func limitsConfigured(sec config.SecurityConfig) bool {
	return sec.MaxSignaturesPerMinute > 0 || sec.MaxDailyVolumeUSDC > 0
}
