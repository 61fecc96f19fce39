package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORACLEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known ORACLEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "ORACLEBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ORACLEBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ORACLEBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ORACLEBOT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "ORACLEBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "ORACLEBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ORACLEBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "ORACLEBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ORACLEBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ORACLEBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORACLEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORACLEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORACLEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORACLEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORACLEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORACLEBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ORACLEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORACLEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORACLEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORACLEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORACLEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORACLEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORACLEBOT_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setDuration(&cfg.Oracle.ChallengeWindow, "ORACLEBOT_ORACLE_CHALLENGE_WINDOW")
	setFloat64(&cfg.Oracle.MinBond, "ORACLEBOT_ORACLE_MIN_BOND")
	setStr(&cfg.Oracle.BondCurrency, "ORACLEBOT_ORACLE_BOND_CURRENCY")
	setFloat64(&cfg.Oracle.HighConfidenceBond, "ORACLEBOT_ORACLE_HIGH_CONFIDENCE_BOND")
	setFloat64(&cfg.Oracle.LowConfidenceBond, "ORACLEBOT_ORACLE_LOW_CONFIDENCE_BOND")
	setFloat64(&cfg.Oracle.ConfidenceCutoff, "ORACLEBOT_ORACLE_CONFIDENCE_CUTOFF")
	setFloat64(&cfg.Oracle.SlashWinnerShare, "ORACLEBOT_ORACLE_SLASH_WINNER_SHARE")
	setDuration(&cfg.Oracle.LockTTL, "ORACLEBOT_ORACLE_LOCK_TTL")
	setBool(&cfg.Oracle.EvidenceArchiveOn, "ORACLEBOT_ORACLE_EVIDENCE_ARCHIVE_ON")
	setDuration(&cfg.Oracle.ResultCacheTTL, "ORACLEBOT_ORACLE_RESULT_CACHE_TTL")
	setStr(&cfg.Oracle.SignerKeyPath, "ORACLEBOT_ORACLE_SIGNER_KEY_PATH")
	setStr(&cfg.Oracle.SignerKeyPassword, "ORACLEBOT_ORACLE_SIGNER_KEY_PASSWORD")
	setFloat64(&cfg.Oracle.AutoResolveCutoff, "ORACLEBOT_ORACLE_AUTO_RESOLVE_CUTOFF")
	setStr(&cfg.Oracle.DefaultStrategyType, "ORACLEBOT_ORACLE_DEFAULT_STRATEGY_TYPE")

	// ── Verify ──
	setDuration(&cfg.Verify.DefaultSourceTimeout, "ORACLEBOT_VERIFY_DEFAULT_SOURCE_TIMEOUT")
	setInt(&cfg.Verify.DefaultRetries, "ORACLEBOT_VERIFY_DEFAULT_RETRIES")
	setInt(&cfg.Verify.MaxConcurrentSources, "ORACLEBOT_VERIFY_MAX_CONCURRENT_SOURCES")
	setFloat64(&cfg.Verify.MismatchBar, "ORACLEBOT_VERIFY_MISMATCH_BAR")
	setFloat64(&cfg.Verify.EscalationThreshold, "ORACLEBOT_VERIFY_ESCALATION_THRESHOLD")
	setBool(&cfg.Verify.SeedDefaults, "ORACLEBOT_VERIFY_SEED_DEFAULTS")

	// ── Inference ──
	setStringSlice(&cfg.Inference.Endpoints, "ORACLEBOT_INFERENCE_ENDPOINTS")
	setStr(&cfg.Inference.ApiKey, "ORACLEBOT_INFERENCE_API_KEY")
	setStr(&cfg.Inference.Model, "ORACLEBOT_INFERENCE_MODEL")
	setInt(&cfg.Inference.MaxTokens, "ORACLEBOT_INFERENCE_MAX_TOKENS")
	setFloat64(&cfg.Inference.Temperature, "ORACLEBOT_INFERENCE_TEMPERATURE")
	setDuration(&cfg.Inference.Timeout, "ORACLEBOT_INFERENCE_TIMEOUT")

	// ── MultiSig ──
	setStringSlice(&cfg.MultiSig.AdminAddresses, "ORACLEBOT_MULTISIG_ADMIN_ADDRESSES")
	setInt(&cfg.MultiSig.Threshold, "ORACLEBOT_MULTISIG_THRESHOLD")

	// ── Ledger / Settle ──
	setStr(&cfg.Ledger.BaseURL, "ORACLEBOT_LEDGER_BASE_URL")
	setStr(&cfg.Ledger.ApiKey, "ORACLEBOT_LEDGER_API_KEY")
	setDuration(&cfg.Ledger.Timeout, "ORACLEBOT_LEDGER_TIMEOUT")
	setStr(&cfg.Settle.BaseURL, "ORACLEBOT_SETTLE_BASE_URL")
	setStr(&cfg.Settle.ApiKey, "ORACLEBOT_SETTLE_API_KEY")
	setDuration(&cfg.Settle.Timeout, "ORACLEBOT_SETTLE_TIMEOUT")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Enabled, "ORACLEBOT_SCHEDULER_ENABLED")
	setDuration(&cfg.Scheduler.SweepInterval, "ORACLEBOT_SCHEDULER_SWEEP_INTERVAL")
	setInt(&cfg.Scheduler.BatchSize, "ORACLEBOT_SCHEDULER_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ORACLEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ORACLEBOT_SERVER_PORT")
	setStr(&cfg.Server.AdminToken, "ORACLEBOT_SERVER_ADMIN_TOKEN")
	setStringSlice(&cfg.Server.CORSOrigins, "ORACLEBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ORACLEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORACLEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ORACLEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ORACLEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ORACLEBOT_MODE")
	setStr(&cfg.LogLevel, "ORACLEBOT_LOG_LEVEL")
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
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
