package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/macrotrader/broker"
	"github.com/rustyeddy/macrotrader/config"
	"github.com/rustyeddy/macrotrader/journal"
	"github.com/rustyeddy/macrotrader/layers"
	"github.com/rustyeddy/macrotrader/pipeline"
	"github.com/rustyeddy/macrotrader/regime"
	"github.com/rustyeddy/macrotrader/replay"
	"github.com/rustyeddy/macrotrader/risk"
	"github.com/rustyeddy/macrotrader/strategies"
)

// loadConfig returns the file config when --config is set, the defaults
// otherwise.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgPath)
}

// buildEngine assembles the full stack from a validated config.
func buildEngine(cfg *config.Config) (*replay.Engine, journal.Journal, error) {
	strat, err := strategies.ByName(cfg.Replay.Strategy)
	if err != nil {
		return nil, nil, err
	}

	jrnl, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, nil, err
	}

	eng := replay.New(
		replay.Options{
			InitialCash: cfg.Account.InitialCash,
			Fill: broker.FillModel{
				SlippageBPS:    cfg.Execution.SlippageBPS,
				CommissionRate: cfg.Execution.CommissionRate,
				MinCommission:  cfg.Execution.MinCommission,
			},
			GapPolicy:  replay.GapPolicy(cfg.Replay.GapPolicy),
			CloseAtEnd: cfg.Replay.CloseAtEnd,
		},
		buildPipeline(cfg),
		strat,
		buildSizer(cfg.Risk),
		buildExposure(cfg.Risk),
		buildDrawdown(cfg.Risk),
		jrnl,
	)
	eng.SetLogger(logger)
	return eng, jrnl, nil
}

func buildPipeline(cfg *config.Config) *pipeline.Pipeline {
	classifier := regime.New()
	classifier.RiskOnMin = cfg.Regime.RiskOnMin
	classifier.RiskOffMax = cfg.Regime.RiskOffMax
	classifier.Weights = regime.Weights{
		VIX:       cfg.Regime.WeightVIX,
		Sentiment: cfg.Regime.WeightSentiment,
		Bonds:     cfg.Regime.WeightBonds,
		USD:       cfg.Regime.WeightUSD,
		Equity:    cfg.Regime.WeightEquity,
	}

	fundamental := layers.NewFundamental()
	fundamental.Blackout = time.Duration(cfg.Layers.BlackoutHours) * time.Hour
	fundamental.CPIMax = cfg.Layers.CPIMax
	fundamental.UnemploymentMax = cfg.Layers.UnemploymentMax

	sentiment := layers.NewSentiment()
	sentiment.LongMin = cfg.Layers.SentimentLongMin
	sentiment.ShortMax = cfg.Layers.SentimentShortMax

	intermarket := layers.NewIntermarket()
	intermarket.Quorum = cfg.Layers.IntermarketQuorum

	technical := layers.NewTechnical()
	technical.MinBars = cfg.Layers.TechnicalMinBars

	return pipeline.New(classifier, fundamental, sentiment, intermarket, technical)
}

func buildSizer(r config.RiskConfig) *risk.Sizer {
	s := risk.NewSizer()
	s.Strategy = risk.SizingStrategy(r.SizingStrategy)
	s.RiskPerTrade = r.RiskPerTrade
	s.MaxPositionFrac = r.MaxPositionExposure
	s.MaxKellyFraction = r.MaxKellyFraction
	s.MinKellyTrades = r.MinKellyTrades
	s.WinRate = r.KellyWinRate
	s.PayoffRatio = r.KellyPayoffRatio
	s.Fractional = r.Fractional
	return s
}

func buildExposure(r config.RiskConfig) *risk.ExposureManager {
	em := risk.NewExposureManager()
	em.Caps = risk.Caps{
		Total:    r.MaxTotalExposure,
		Sector:   r.MaxSectorExposure,
		Bucket:   r.MaxBucketExposure,
		Position: r.MaxPositionExposure,
	}
	em.Sectors = r.Sectors
	em.Buckets = r.Buckets
	return em
}

func buildDrawdown(r config.RiskConfig) *risk.DrawdownController {
	dc := risk.NewDrawdownController()
	dc.Soft = r.SoftDrawdown
	dc.Hard = r.HardDrawdown
	dc.Recovery = r.RecoveryDrawdown
	dc.ReducedScale = r.ReducedScale
	return dc
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Driver {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	}
	return nil, fmt.Errorf("unknown journal driver %q", jc.Driver)
}

// envOr reads an environment variable with a fallback, for values the
// .env file can override.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
