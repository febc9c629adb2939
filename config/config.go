// Package config loads and validates the run configuration. Files may be
// YAML or JSON; validation failures are ConfigurationErrors and fatal at
// startup, never mid-replay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigurationError names the offending field. Usable with errors.As.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func bad(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Config is the complete run configuration.
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Regime    RegimeConfig    `json:"regime" yaml:"regime"`
	Layers    LayersConfig    `json:"layers" yaml:"layers"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Replay    ReplayConfig    `json:"replay" yaml:"replay"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
}

type AccountConfig struct {
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

type RiskConfig struct {
	RiskPerTrade     float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	SizingStrategy   string  `json:"sizing_strategy" yaml:"sizing_strategy"` // fixed_fractional or kelly_blend
	MaxKellyFraction float64 `json:"max_kelly_fraction" yaml:"max_kelly_fraction"`
	MinKellyTrades   int     `json:"min_kelly_trades" yaml:"min_kelly_trades"`
	KellyWinRate     float64 `json:"kelly_win_rate" yaml:"kelly_win_rate"`
	KellyPayoffRatio float64 `json:"kelly_payoff_ratio" yaml:"kelly_payoff_ratio"`
	Fractional       bool    `json:"fractional_sizing" yaml:"fractional_sizing"`

	SoftDrawdown     float64 `json:"soft_drawdown" yaml:"soft_drawdown"`
	HardDrawdown     float64 `json:"hard_drawdown" yaml:"hard_drawdown"`
	RecoveryDrawdown float64 `json:"recovery_drawdown" yaml:"recovery_drawdown"`
	ReducedScale     float64 `json:"reduced_scale" yaml:"reduced_scale"`

	MaxTotalExposure    float64           `json:"max_total_exposure" yaml:"max_total_exposure"`
	MaxSectorExposure   float64           `json:"max_sector_exposure" yaml:"max_sector_exposure"`
	MaxBucketExposure   float64           `json:"max_bucket_exposure" yaml:"max_bucket_exposure"`
	MaxPositionExposure float64           `json:"max_position_exposure" yaml:"max_position_exposure"`
	Sectors             map[string]string `json:"sectors,omitempty" yaml:"sectors,omitempty"`
	Buckets             map[string]string `json:"buckets,omitempty" yaml:"buckets,omitempty"`
}

type RegimeConfig struct {
	RiskOnMin  float64 `json:"risk_on_min" yaml:"risk_on_min"`
	RiskOffMax float64 `json:"risk_off_max" yaml:"risk_off_max"`

	WeightVIX       float64 `json:"weight_vix" yaml:"weight_vix"`
	WeightSentiment float64 `json:"weight_sentiment" yaml:"weight_sentiment"`
	WeightBonds     float64 `json:"weight_bonds" yaml:"weight_bonds"`
	WeightUSD       float64 `json:"weight_usd" yaml:"weight_usd"`
	WeightEquity    float64 `json:"weight_equity" yaml:"weight_equity"`
}

type LayersConfig struct {
	SentimentLongMin  float64 `json:"sentiment_long_min" yaml:"sentiment_long_min"`
	SentimentShortMax float64 `json:"sentiment_short_max" yaml:"sentiment_short_max"`
	IntermarketQuorum int     `json:"intermarket_quorum" yaml:"intermarket_quorum"`
	BlackoutHours     int     `json:"blackout_hours" yaml:"blackout_hours"`
	CPIMax            float64 `json:"cpi_max" yaml:"cpi_max"`
	UnemploymentMax   float64 `json:"unemployment_max" yaml:"unemployment_max"`
	TechnicalMinBars  int     `json:"technical_min_bars" yaml:"technical_min_bars"`
}

type ExecutionConfig struct {
	SlippageBPS    float64 `json:"slippage_bps" yaml:"slippage_bps"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	MinCommission  float64 `json:"min_commission" yaml:"min_commission"`
}

type ReplayConfig struct {
	Strategy   string `json:"strategy" yaml:"strategy"`
	GapPolicy  string `json:"gap_policy" yaml:"gap_policy"` // hold, flatten or halt
	CloseAtEnd bool   `json:"close_at_end" yaml:"close_at_end"`
	Symbol     string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Interval   string `json:"interval,omitempty" yaml:"interval,omitempty"` // bar cadence, e.g. 24h
}

type JournalConfig struct {
	Driver     string `json:"driver" yaml:"driver"` // none, csv or sqlite
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ParseInterval returns the configured bar cadence, defaulting to daily.
func (r ReplayConfig) ParseInterval() time.Duration {
	if r.Interval == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(r.Interval)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// LoadFromFile reads a YAML or JSON configuration and validates it.
// Fields absent from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes the config as YAML (.yaml/.yml) or indented JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every recognized option.
func (c *Config) Validate() error {
	if c.Account.InitialCash <= 0 {
		return bad("account.initial_cash", "must be positive, got %g", c.Account.InitialCash)
	}

	r := c.Risk
	if r.RiskPerTrade <= 0 || r.RiskPerTrade > 0.1 {
		return bad("risk.risk_per_trade", "must be in (0, 0.1], got %g", r.RiskPerTrade)
	}
	switch r.SizingStrategy {
	case "fixed_fractional", "kelly_blend":
	default:
		return bad("risk.sizing_strategy", "must be fixed_fractional or kelly_blend, got %q", r.SizingStrategy)
	}
	if r.SizingStrategy == "kelly_blend" {
		if r.MaxKellyFraction <= 0 || r.MaxKellyFraction > 1 {
			return bad("risk.max_kelly_fraction", "must be in (0, 1], got %g", r.MaxKellyFraction)
		}
		if r.KellyWinRate < 0 || r.KellyWinRate > 1 {
			return bad("risk.kelly_win_rate", "must be in [0, 1], got %g", r.KellyWinRate)
		}
		if r.KellyPayoffRatio <= 0 {
			return bad("risk.kelly_payoff_ratio", "must be positive, got %g", r.KellyPayoffRatio)
		}
	}
	if r.SoftDrawdown <= 0 || r.HardDrawdown <= 0 {
		return bad("risk.soft_drawdown", "drawdown thresholds must be positive")
	}
	if r.SoftDrawdown >= r.HardDrawdown {
		return bad("risk.soft_drawdown", "soft threshold %g must be below hard threshold %g",
			r.SoftDrawdown, r.HardDrawdown)
	}
	if r.RecoveryDrawdown < 0 || r.RecoveryDrawdown >= r.SoftDrawdown {
		return bad("risk.recovery_drawdown", "must be in [0, soft_drawdown), got %g", r.RecoveryDrawdown)
	}
	if r.ReducedScale <= 0 || r.ReducedScale > 1 {
		return bad("risk.reduced_scale", "must be in (0, 1], got %g", r.ReducedScale)
	}
	for field, v := range map[string]float64{
		"risk.max_total_exposure":    r.MaxTotalExposure,
		"risk.max_sector_exposure":   r.MaxSectorExposure,
		"risk.max_bucket_exposure":   r.MaxBucketExposure,
		"risk.max_position_exposure": r.MaxPositionExposure,
	} {
		if v <= 0 {
			return bad(field, "must be positive, got %g", v)
		}
	}

	if c.Regime.RiskOnMin <= c.Regime.RiskOffMax {
		return bad("regime.risk_on_min", "must be above risk_off_max")
	}

	l := c.Layers
	if l.SentimentLongMin < 0 || l.SentimentLongMin > 100 {
		return bad("layers.sentiment_long_min", "must be in [0, 100], got %g", l.SentimentLongMin)
	}
	if l.SentimentShortMax < 0 || l.SentimentShortMax > 100 {
		return bad("layers.sentiment_short_max", "must be in [0, 100], got %g", l.SentimentShortMax)
	}
	if l.IntermarketQuorum < 1 || l.IntermarketQuorum > 3 {
		return bad("layers.intermarket_quorum", "must be 1..3, got %d", l.IntermarketQuorum)
	}
	if l.TechnicalMinBars < 1 {
		return bad("layers.technical_min_bars", "must be at least 1, got %d", l.TechnicalMinBars)
	}

	if c.Execution.SlippageBPS < 0 {
		return bad("execution.slippage_bps", "must not be negative, got %g", c.Execution.SlippageBPS)
	}
	if c.Execution.CommissionRate < 0 || c.Execution.MinCommission < 0 {
		return bad("execution.commission_rate", "commission settings must not be negative")
	}

	switch c.Replay.GapPolicy {
	case "hold", "flatten", "halt":
	default:
		return bad("replay.gap_policy", "must be hold, flatten or halt, got %q", c.Replay.GapPolicy)
	}
	if c.Replay.Interval != "" {
		if d, err := time.ParseDuration(c.Replay.Interval); err != nil || d <= 0 {
			return bad("replay.interval", "not a positive duration: %q", c.Replay.Interval)
		}
	}

	switch c.Journal.Driver {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return bad("journal.trades_file", "trades_file and equity_file required for the csv driver")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return bad("journal.db_path", "required for the sqlite driver")
		}
	default:
		return bad("journal.driver", "must be none, csv or sqlite, got %q", c.Journal.Driver)
	}

	return nil
}

// Default returns a configuration with the documented defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{InitialCash: 100000},
		Risk: RiskConfig{
			RiskPerTrade:        0.01,
			SizingStrategy:      "fixed_fractional",
			MaxKellyFraction:    0.25,
			MinKellyTrades:      10,
			KellyWinRate:        0.5,
			KellyPayoffRatio:    1.5,
			SoftDrawdown:        0.05,
			HardDrawdown:        0.10,
			RecoveryDrawdown:    0.02,
			ReducedScale:        0.5,
			MaxTotalExposure:    1.00,
			MaxSectorExposure:   0.25,
			MaxBucketExposure:   0.30,
			MaxPositionExposure: 0.10,
		},
		Regime: RegimeConfig{
			RiskOnMin:       0.3,
			RiskOffMax:      -0.3,
			WeightVIX:       0.25,
			WeightSentiment: 0.25,
			WeightBonds:     0.20,
			WeightUSD:       0.15,
			WeightEquity:    0.15,
		},
		Layers: LayersConfig{
			SentimentLongMin:  50,
			SentimentShortMax: 50,
			IntermarketQuorum: 2,
			BlackoutHours:     24,
			CPIMax:            4.0,
			UnemploymentMax:   5.0,
			TechnicalMinBars:  200,
		},
		Execution: ExecutionConfig{
			SlippageBPS:    5,
			CommissionRate: 0.0005,
			MinCommission:  1,
		},
		Replay: ReplayConfig{
			Strategy:   "trend",
			GapPolicy:  "hold",
			CloseAtEnd: true,
			Interval:   "24h",
		},
		Journal: JournalConfig{Driver: "none"},
	}
}
