package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100000.0, cfg.Account.InitialCash)
	assert.Equal(t, "fixed_fractional", cfg.Risk.SizingStrategy)
	assert.Equal(t, "hold", cfg.Replay.GapPolicy)
	assert.Equal(t, "none", cfg.Journal.Driver)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no cash", func(c *Config) { c.Account.InitialCash = 0 }, "account.initial_cash"},
		{"risk too high", func(c *Config) { c.Risk.RiskPerTrade = 0.2 }, "risk.risk_per_trade"},
		{"unknown sizing", func(c *Config) { c.Risk.SizingStrategy = "martingale" }, "risk.sizing_strategy"},
		{"soft above hard", func(c *Config) { c.Risk.SoftDrawdown = 0.15 }, "risk.soft_drawdown"},
		{"recovery above soft", func(c *Config) { c.Risk.RecoveryDrawdown = 0.08 }, "risk.recovery_drawdown"},
		{"reduced scale zero", func(c *Config) { c.Risk.ReducedScale = 0 }, "risk.reduced_scale"},
		{"negative exposure", func(c *Config) { c.Risk.MaxSectorExposure = -1 }, "risk.max_sector_exposure"},
		{"regime bands inverted", func(c *Config) { c.Regime.RiskOnMin = -0.5 }, "regime.risk_on_min"},
		{"sentiment out of range", func(c *Config) { c.Layers.SentimentLongMin = 120 }, "layers.sentiment_long_min"},
		{"quorum out of range", func(c *Config) { c.Layers.IntermarketQuorum = 4 }, "layers.intermarket_quorum"},
		{"negative slippage", func(c *Config) { c.Execution.SlippageBPS = -1 }, "execution.slippage_bps"},
		{"unknown gap policy", func(c *Config) { c.Replay.GapPolicy = "skip" }, "replay.gap_policy"},
		{"bad interval", func(c *Config) { c.Replay.Interval = "daily" }, "replay.interval"},
		{"csv without paths", func(c *Config) { c.Journal.Driver = "csv" }, "journal.trades_file"},
		{"sqlite without path", func(c *Config) { c.Journal.Driver = "sqlite" }, "journal.db_path"},
		{"unknown driver", func(c *Config) { c.Journal.Driver = "postgres" }, "journal.driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestKellyFieldsOnlyCheckedForKellyBlend(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Risk.MaxKellyFraction = 0 // invalid, but unused
	require.NoError(t, cfg.Validate())

	cfg.Risk.SizingStrategy = "kelly_blend"
	err := cfg.Validate()
	require.Error(t, err)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "risk.max_kelly_fraction", cerr.Field)
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  initial_cash: 250000
risk:
  risk_per_trade: 0.02
replay:
  symbol: QQQ
  gap_policy: flatten
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 250000.0, cfg.Account.InitialCash)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTrade)
	assert.Equal(t, "QQQ", cfg.Replay.Symbol)
	assert.Equal(t, "flatten", cfg.Replay.GapPolicy)
	assert.Equal(t, 0.05, cfg.Risk.SoftDrawdown, "absent fields keep their defaults")
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"account":{"initial_cash":50000}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, cfg.Account.InitialCash)
}

func TestLoadFromFileInvalidValueFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  initial_cash: -5\n"), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.Account.InitialCash = 123456
	cfg.Replay.Symbol = "SPY"

	for _, name := range []string{"cfg.yaml", "cfg.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		got, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, cfg.Account.InitialCash, got.Account.InitialCash, name)
		assert.Equal(t, "SPY", got.Replay.Symbol, name)
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 24*time.Hour, ReplayConfig{}.ParseInterval())
	assert.Equal(t, time.Hour, ReplayConfig{Interval: "1h"}.ParseInterval())
	assert.Equal(t, 24*time.Hour, ReplayConfig{Interval: "bogus"}.ParseInterval())
}
