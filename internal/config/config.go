// Package config defines the top-level configuration for the oracle bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORACLEBOT_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Oracle    OracleConfig    `toml:"oracle"`
	Verify    VerifyConfig    `toml:"verify"`
	Inference InferenceConfig `toml:"inference"`
	MultiSig  MultiSigConfig  `toml:"multisig"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Settle    SettleConfig    `toml:"settle"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// S3Config holds S3-compatible object storage parameters for evidence
// archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds the optimistic-oracle economic parameters.
type OracleConfig struct {
	ChallengeWindow     duration `toml:"challenge_window"`
	MinBond             float64  `toml:"min_bond"`
	BondCurrency        string   `toml:"bond_currency"`
	HighConfidenceBond  float64  `toml:"high_confidence_bond"`
	LowConfidenceBond   float64  `toml:"low_confidence_bond"`
	ConfidenceCutoff    float64  `toml:"confidence_cutoff"`
	SlashWinnerShare    float64  `toml:"slash_winner_share"`
	LockTTL             duration `toml:"lock_ttl"`
	EvidenceArchiveOn   bool     `toml:"evidence_archive_on"`
	ResultCacheTTL      duration `toml:"result_cache_ttl"`
	SignerKeyPath       string   `toml:"signer_key_path"`
	SignerKeyPassword   string   `toml:"signer_key_password"`
	AutoResolveCutoff   float64  `toml:"auto_resolve_cutoff"`
	DefaultStrategyType string   `toml:"default_strategy_type"`
}

// VerifyConfig holds verification orchestration parameters.
type VerifyConfig struct {
	DefaultSourceTimeout duration `toml:"default_source_timeout"`
	DefaultRetries       int      `toml:"default_retries"`
	MaxConcurrentSources int      `toml:"max_concurrent_sources"`
	MismatchBar          float64  `toml:"mismatch_bar"`
	EscalationThreshold  float64  `toml:"escalation_threshold"`
	SeedDefaults         bool     `toml:"seed_defaults"`
}

// InferenceConfig holds model provider parameters for AI verification.
type InferenceConfig struct {
	Endpoints   []string `toml:"endpoints"`
	ApiKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature float64  `toml:"temperature"`
	Timeout     duration `toml:"timeout"`
}

// MultiSigConfig holds the admin signer set for centralized resolution.
type MultiSigConfig struct {
	AdminAddresses []string `toml:"admin_addresses"`
	Threshold      int      `toml:"threshold"`
}

// LedgerConfig holds the bond ledger service endpoint.
type LedgerConfig struct {
	BaseURL string   `toml:"base_url"`
	ApiKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// SettleConfig holds the settlement engine endpoint.
type SettleConfig struct {
	BaseURL string   `toml:"base_url"`
	ApiKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// SchedulerConfig holds the background sweeper parameters.
type SchedulerConfig struct {
	Enabled       bool     `toml:"enabled"`
	SweepInterval duration `toml:"sweep_interval"`
	BatchSize     int      `toml:"batch_size"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	AdminToken  string   `toml:"admin_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oraclebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
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
			Bucket:         "oraclebot-evidence",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			ChallengeWindow:     duration{2 * time.Hour},
			MinBond:             50,
			BondCurrency:        "USDC",
			HighConfidenceBond:  100,
			LowConfidenceBond:   50,
			ConfidenceCutoff:    0.9,
			SlashWinnerShare:    0.75,
			LockTTL:             duration{30 * time.Second},
			EvidenceArchiveOn:   true,
			ResultCacheTTL:      duration{24 * time.Hour},
			AutoResolveCutoff:   0.9,
			DefaultStrategyType: "ai",
		},
		Verify: VerifyConfig{
			DefaultSourceTimeout: duration{30 * time.Second},
			DefaultRetries:       2,
			MaxConcurrentSources: 8,
			MismatchBar:          80,
			EscalationThreshold:  70,
			SeedDefaults:         true,
		},
		Inference: InferenceConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.1,
			Timeout:     duration{60 * time.Second},
		},
		MultiSig: MultiSigConfig{
			Threshold: 2,
		},
		Ledger: LedgerConfig{
			BaseURL: "http://localhost:8081",
			Timeout: duration{10 * time.Second},
		},
		Settle: SettleConfig{
			BaseURL: "http://localhost:8082",
			Timeout: duration{30 * time.Second},
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SweepInterval: duration{time.Minute},
			BatchSize:     50,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"outcome_proposed", "outcome_challenged", "market_resolved", "escalated", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":  true,
	"worker": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, worker, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when evidence archival is on.
	if c.Oracle.EvidenceArchiveOn {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when evidence_archive_on is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when evidence_archive_on is set")
		}
	}

	// Oracle economics
	if c.Oracle.ChallengeWindow.Duration <= 0 {
		errs = append(errs, "oracle: challenge_window must be > 0")
	}
	if c.Oracle.MinBond <= 0 {
		errs = append(errs, "oracle: min_bond must be > 0")
	}
	if c.Oracle.HighConfidenceBond < c.Oracle.MinBond {
		errs = append(errs, "oracle: high_confidence_bond must be >= min_bond")
	}
	if c.Oracle.LowConfidenceBond < c.Oracle.MinBond {
		errs = append(errs, "oracle: low_confidence_bond must be >= min_bond")
	}
	if c.Oracle.ConfidenceCutoff <= 0 || c.Oracle.ConfidenceCutoff > 1 {
		errs = append(errs, fmt.Sprintf("oracle: confidence_cutoff must be in (0, 1], got %g", c.Oracle.ConfidenceCutoff))
	}
	if c.Oracle.SlashWinnerShare < 0 || c.Oracle.SlashWinnerShare > 1 {
		errs = append(errs, fmt.Sprintf("oracle: slash_winner_share must be in [0, 1], got %g", c.Oracle.SlashWinnerShare))
	}
	if c.Oracle.LockTTL.Duration <= 0 {
		errs = append(errs, "oracle: lock_ttl must be > 0")
	}

	// Verification
	if c.Verify.DefaultSourceTimeout.Duration <= 0 {
		errs = append(errs, "verify: default_source_timeout must be > 0")
	}
	if c.Verify.DefaultRetries < 0 {
		errs = append(errs, "verify: default_retries must be >= 0")
	}
	if c.Verify.MaxConcurrentSources < 1 {
		errs = append(errs, "verify: max_concurrent_sources must be >= 1")
	}
	if c.Verify.MismatchBar <= 0 || c.Verify.MismatchBar > 100 {
		errs = append(errs, fmt.Sprintf("verify: mismatch_bar must be in (0, 100], got %g", c.Verify.MismatchBar))
	}
	if c.Verify.EscalationThreshold < 0 || c.Verify.EscalationThreshold > 100 {
		errs = append(errs, fmt.Sprintf("verify: escalation_threshold must be in [0, 100], got %g", c.Verify.EscalationThreshold))
	}

	// MultiSig: threshold must be satisfiable by the configured signer set.
	if len(c.MultiSig.AdminAddresses) > 0 {
		if c.MultiSig.Threshold < 1 {
			errs = append(errs, "multisig: threshold must be >= 1")
		}
		if c.MultiSig.Threshold > len(c.MultiSig.AdminAddresses) {
			errs = append(errs, fmt.Sprintf("multisig: threshold %d exceeds admin set size %d", c.MultiSig.Threshold, len(c.MultiSig.AdminAddresses)))
		}
	}

	// Scheduler
	if c.Scheduler.Enabled {
		if c.Scheduler.SweepInterval.Duration <= 0 {
			errs = append(errs, "scheduler: sweep_interval must be > 0 when enabled")
		}
		if c.Scheduler.BatchSize < 1 {
			errs = append(errs, "scheduler: batch_size must be >= 1 when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
