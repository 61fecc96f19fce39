package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "hybrid" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"empty db host", func(c *Config) { c.Database.Host = "" }, "database: host"},
		{"bad db port", func(c *Config) { c.Database.Port = 70000 }, "database: port"},
		{"pool min over max", func(c *Config) {
			c.Database.PoolMinConns = 10
			c.Database.PoolMaxConns = 2
		}, "pool_min_conns"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"zero challenge window", func(c *Config) { c.Oracle.ChallengeWindow.Duration = 0 }, "challenge_window"},
		{"zero min bond", func(c *Config) { c.Oracle.MinBond = 0 }, "min_bond"},
		{"high bond below floor", func(c *Config) { c.Oracle.HighConfidenceBond = 10 }, "high_confidence_bond"},
		{"cutoff out of range", func(c *Config) { c.Oracle.ConfidenceCutoff = 1.5 }, "confidence_cutoff"},
		{"slash share out of range", func(c *Config) { c.Oracle.SlashWinnerShare = 2 }, "slash_winner_share"},
		{"mismatch bar out of range", func(c *Config) { c.Verify.MismatchBar = 150 }, "mismatch_bar"},
		{"threshold exceeds admins", func(c *Config) {
			c.MultiSig.AdminAddresses = []string{"0xabc"}
			c.MultiSig.Threshold = 3
		}, "threshold 3 exceeds admin set size 1"},
		{"archival without bucket", func(c *Config) {
			c.Oracle.EvidenceArchiveOn = true
			c.S3.Bucket = ""
		}, "s3: bucket"},
		{"zero sweep interval", func(c *Config) { c.Scheduler.SweepInterval.Duration = 0 }, "sweep_interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateDSNBypassesHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Host = ""
	cfg.Database.Port = 0
	cfg.Database.Database = ""
	cfg.Database.DSN = "postgres://oracle:secret@db:5432/oraclebot"
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "worker"
log_level = "debug"

[oracle]
challenge_window = "4h"
min_bond = 75.0
high_confidence_bond = 200.0
low_confidence_bond = 80.0

[scheduler]
sweep_interval = "30s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "worker", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4*time.Hour, cfg.Oracle.ChallengeWindow.Duration)
	assert.Equal(t, 75.0, cfg.Oracle.MinBond)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.SweepInterval.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, Defaults().Redis.Addr, cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesWinOverTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
password = "from-toml"

[server]
admin_token = "from-toml"
`), 0o600))

	t.Setenv("ORACLEBOT_DATABASE_PASSWORD", "from-env")
	t.Setenv("ORACLEBOT_SERVER_ADMIN_TOKEN", "env-token")
	t.Setenv("ORACLEBOT_ORACLE_MIN_BOND", "120")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "env-token", cfg.Server.AdminToken)
	assert.Equal(t, 120.0, cfg.Oracle.MinBond)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
