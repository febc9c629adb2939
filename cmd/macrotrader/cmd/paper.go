package cmd

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macrotrader/broker"
	"github.com/rustyeddy/macrotrader/feed"
	"github.com/rustyeddy/macrotrader/internal/metrics"
	"github.com/rustyeddy/macrotrader/market"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Replay a feed through the paper broker with live metrics",
	Long: `Paper drives the engine from a bar file at a configurable pace,
prices the paper execution adapter from the replay clock, and serves
Prometheus metrics while the run is in flight.

Example:
  macrotrader paper --bars data/spy_daily.csv --listen :9090 --pace 100ms`,
	RunE: runPaper,
}

var (
	ppBarsPath string
	ppSymbol   string
	ppListen   string
	ppPace     time.Duration
)

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVarP(&ppBarsPath, "bars", "b", "", "path to bar CSV (required)")
	paperCmd.Flags().StringVarP(&ppSymbol, "symbol", "s", "", "symbol for files without a symbol column")
	paperCmd.Flags().StringVar(&ppListen, "listen", ":9090", "metrics listen address")
	paperCmd.Flags().DurationVar(&ppPace, "pace", 0, "delay between bars (0 runs flat out)")

	paperCmd.MarkFlagRequired("bars")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ppSymbol == "" {
		ppSymbol = cfg.Replay.Symbol
	}

	bf, err := feed.LoadCSV(ppBarsPath, feed.Config{
		Symbol:   ppSymbol,
		Interval: cfg.Replay.ParseInterval(),
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	paper := broker.NewPaper(broker.FillModel{
		SlippageBPS:    cfg.Execution.SlippageBPS,
		CommissionRate: cfg.Execution.CommissionRate,
		MinCommission:  cfg.Execution.MinCommission,
	}, m)
	paper.Log = logger

	listen := envOr("MACROTRADER_METRICS_ADDR", ppListen)
	srv := &http.Server{Addr: listen, Handler: m.Handler()}
	go func() {
		logger.Info().Str("addr", listen).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	defer srv.Close()

	eng, jrnl, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer jrnl.Close()
	eng.SetMetrics(m)
	eng.SetBroker(paper)

	res, err := eng.Run(cmd.Context(), pacedFeed{feed: bf, paper: paper, pace: ppPace})
	if err != nil {
		return err
	}

	printReport(res, res.Report(0.02, 0))
	return nil
}

// pacedFeed forwards events to the engine at the configured pace and
// keeps the paper broker's price book current with each bar.
type pacedFeed struct {
	feed  *feed.BarFeed
	paper *broker.Paper
	pace  time.Duration
}

func (p pacedFeed) Next() (ev market.Event, ok bool, err error) {
	ev, ok, err = p.feed.Next()
	if !ok || err != nil {
		return ev, ok, err
	}
	if ev.Gap == nil {
		p.paper.SetPrice(ev.Bar.Symbol, ev.Bar.Close, ev.Bar.Time)
	}
	if p.pace > 0 {
		time.Sleep(p.pace)
	}
	return ev, true, nil
}
