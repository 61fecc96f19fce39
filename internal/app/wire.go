package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/oraclebot/internal/blob/s3"
	"github.com/alanyoungcy/oraclebot/internal/cache/redis"
	"github.com/alanyoungcy/oraclebot/internal/config"
	oraclecrypto "github.com/alanyoungcy/oraclebot/internal/crypto"
	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/inference"
	"github.com/alanyoungcy/oraclebot/internal/ledger"
	"github.com/alanyoungcy/oraclebot/internal/notify"
	"github.com/alanyoungcy/oraclebot/internal/oracle"
	"github.com/alanyoungcy/oraclebot/internal/settle"
	"github.com/alanyoungcy/oraclebot/internal/store/postgres"
	"github.com/alanyoungcy/oraclebot/internal/strategy"
	"github.com/alanyoungcy/oraclebot/internal/verify"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore    domain.MarketStore
	RequestStore   domain.RequestStore
	DisputeStore   domain.DisputeStore
	AssertionStore domain.AssertionStore
	WorkflowStore  domain.WorkflowStore
	AuditStore     domain.AuditStore

	// Caches
	LockManager domain.LockManager
	ResultCache domain.ResultCache
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter

	// External services
	Ledger  domain.BondLedger
	Settler domain.SettlementEngine
	Gateway domain.InferenceGateway

	// Resolution core
	Registry     *strategy.Registry
	Orchestrator *verify.Orchestrator
	Oracle       *oracle.Service

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.RequestStore = postgres.NewRequestStore(pool)
	deps.DisputeStore = postgres.NewDisputeStore(pool)
	deps.AssertionStore = postgres.NewAssertionStore(pool)
	deps.WorkflowStore = postgres.NewWorkflowStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.ResultCache = redis.NewResultCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only when evidence archival is on) ---
	if cfg.Oracle.EvidenceArchiveOn {
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- External services ---
	deps.Ledger = ledger.New(ledger.ClientConfig{
		BaseURL: cfg.Ledger.BaseURL,
		ApiKey:  cfg.Ledger.ApiKey,
		Timeout: cfg.Ledger.Timeout.Duration,
	})
	deps.Settler = settle.New(settle.ClientConfig{
		BaseURL: cfg.Settle.BaseURL,
		ApiKey:  cfg.Settle.ApiKey,
		Timeout: cfg.Settle.Timeout.Duration,
	})

	if len(cfg.Inference.Endpoints) > 0 {
		gateway, err := inference.New(inference.GatewayConfig{
			Endpoints:   cfg.Inference.Endpoints,
			ApiKey:      cfg.Inference.ApiKey,
			Model:       cfg.Inference.Model,
			MaxTokens:   cfg.Inference.MaxTokens,
			Temperature: cfg.Inference.Temperature,
			Timeout:     cfg.Inference.Timeout.Duration,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: inference gateway: %w", err)
		}
		deps.Gateway = gateway
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Strategies ---
	registry, err := buildRegistry(cfg, deps, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Registry = registry

	// --- Verification orchestrator ---
	httpRunner := verify.NewHTTPSourceRunner()
	runners := map[domain.VerificationMethod]verify.SourceRunner{
		domain.MethodNewsConsensus:   httpRunner,
		domain.MethodAPIPriceFeed:    httpRunner,
		domain.MethodSportsAPI:       httpRunner,
		domain.MethodExpertVoting:    httpRunner,
		domain.MethodCommunityVoting: httpRunner,
		domain.MethodChainlinkOracle: httpRunner,
		domain.MethodTrustedSources:  httpRunner,
		domain.MethodManualAdmin:     verify.ManualAdminRunner{},
	}
	if deps.Gateway != nil {
		runners[domain.MethodAIOracle] = verify.NewAISourceRunner(deps.Gateway)
	}
	deps.Orchestrator = verify.New(runners, deps.ResultCache, verify.Config{
		DefaultSourceTimeout: cfg.Verify.DefaultSourceTimeout.Duration,
		DefaultRetries:       cfg.Verify.DefaultRetries,
		MaxConcurrentSources: cfg.Verify.MaxConcurrentSources,
		MismatchBar:          cfg.Verify.MismatchBar,
		ResultTTL:            cfg.Oracle.ResultCacheTTL.Duration,
	}, logger)

	if cfg.Verify.SeedDefaults {
		if err := verify.SeedDefaults(ctx, deps.WorkflowStore, logger); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: seed workflows: %w", err)
		}
	}

	// --- Resolution signer (optional) ---
	var signer *oraclecrypto.Signer
	if cfg.Oracle.SignerKeyPath != "" || cfg.Oracle.SignerKeyPassword != "" {
		keyHex, err := oraclecrypto.LoadKey(oraclecrypto.KeyConfig{
			EncryptedKeyPath: cfg.Oracle.SignerKeyPath,
			KeyPassword:      cfg.Oracle.SignerKeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load signer key: %w", err)
		}
		signer, err = oraclecrypto.NewSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
	}

	// --- Oracle service ---
	deps.Oracle = oracle.NewService(oracle.Deps{
		Markets:    deps.MarketStore,
		Requests:   deps.RequestStore,
		Disputes:   deps.DisputeStore,
		Assertions: deps.AssertionStore,
		Workflows:  deps.WorkflowStore,
		Audit:      deps.AuditStore,
		Locks:      deps.LockManager,
		Ledger:     deps.Ledger,
		Settler:    deps.Settler,
		Registry:   deps.Registry,
		Verifier:   deps.Orchestrator,
		Blob:       deps.BlobWriter,
		Bus:        deps.SignalBus,
		Notifier:   deps.Notifier,
		Signer:     signer,
		Logger:     logger,
	}, oracle.ServiceConfig{
		ChallengeWindow:  cfg.Oracle.ChallengeWindow.Duration,
		MinBond:          cfg.Oracle.MinBond,
		BondCurrency:     cfg.Oracle.BondCurrency,
		HighBond:         cfg.Oracle.HighConfidenceBond,
		LowBond:          cfg.Oracle.LowConfidenceBond,
		ConfidenceCutoff: cfg.Oracle.ConfidenceCutoff,
		SlashWinnerShare: cfg.Oracle.SlashWinnerShare,
		LockTTL:          cfg.Oracle.LockTTL.Duration,
	})

	return deps, cleanup, nil
}

// buildRegistry registers every resolution strategy the configuration can
// support. Strategies with missing prerequisites (no inference gateway, no
// admin signer set) are skipped with a warning rather than failing the boot.
func buildRegistry(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*strategy.Registry, error) {
	registry := strategy.NewRegistry()

	registry.Register(strategy.NewManualStrategy(cfg.Oracle.MinBond))
	registry.Register(strategy.NewAPIStrategy(cfg.Verify.DefaultSourceTimeout.Duration, cfg.Oracle.MinBond))
	registry.Register(strategy.NewAssertionStrategy(cfg.Oracle.MinBond))

	if deps.Gateway != nil {
		registry.Register(strategy.NewAIStrategy(deps.Gateway, strategy.AIStrategyConfig{
			ConfidenceCutoff: cfg.Oracle.ConfidenceCutoff,
			HighBond:         cfg.Oracle.HighConfidenceBond,
			LowBond:          cfg.Oracle.LowConfidenceBond,
		}, logger))
	} else {
		logger.Warn("ai strategy disabled: no inference endpoints configured")
	}

	if len(cfg.MultiSig.AdminAddresses) > 0 {
		verifier, err := oraclecrypto.NewMultiSigVerifier(cfg.MultiSig.AdminAddresses, cfg.MultiSig.Threshold, logger)
		if err != nil {
			return nil, fmt.Errorf("wire: multisig verifier: %w", err)
		}
		registry.Register(strategy.NewCentralizedStrategy(verifier))
	} else {
		logger.Warn("centralized strategy disabled: no admin addresses configured")
	}

	return registry, nil
}
