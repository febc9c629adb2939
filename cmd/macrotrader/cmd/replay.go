package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macrotrader/analytics"
	"github.com/rustyeddy/macrotrader/feed"
	"github.com/rustyeddy/macrotrader/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a CSV bar file through the decision pipeline",
	Long: `Replay loads a CSV of bars (with optional macro indicator columns),
runs every bar through the layered approval pipeline and risk gates,
and prints the resulting performance report.

Example:
  macrotrader replay --bars data/spy_daily.csv --symbol SPY`,
	RunE: runReplay,
}

var (
	rpBarsPath string
	rpSymbol   string
	rpJSON     bool
	rpRiskFree float64
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&rpBarsPath, "bars", "b", "", "path to bar CSV (required)")
	replayCmd.Flags().StringVarP(&rpSymbol, "symbol", "s", "", "symbol for files without a symbol column")
	replayCmd.Flags().BoolVar(&rpJSON, "json", false, "print the report as JSON")
	replayCmd.Flags().Float64Var(&rpRiskFree, "risk-free", 0.02, "annual risk-free rate for Sharpe/Sortino")

	replayCmd.MarkFlagRequired("bars")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if rpSymbol == "" {
		rpSymbol = cfg.Replay.Symbol
	}

	bf, err := feed.LoadCSV(rpBarsPath, feed.Config{
		Symbol:   rpSymbol,
		Interval: cfg.Replay.ParseInterval(),
	})
	if err != nil {
		return err
	}

	stats := bf.Stats()
	logger.Info().
		Int("bars", stats.Bars).
		Int("gaps", stats.GapCount).
		Int("missing", stats.MissingBars).
		Msg("feed loaded")
	if stats.SuspiciousGaps > 0 {
		logger.Warn().Int("suspicious", stats.SuspiciousGaps).Msg("feed has unexplained gaps")
	}

	eng, jrnl, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	start := time.Now()
	res, err := eng.Run(cmd.Context(), bf)
	if err != nil {
		return err
	}
	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("trades", len(res.Trades)).
		Float64("final_equity", res.FinalEquity).
		Msg("replay finished")

	report := res.Report(rpRiskFree, 0)
	if rpJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(res, report)
	return nil
}

func printReport(res *replay.Result, r analytics.Report) {
	fmt.Printf("Initial equity:   %12.2f\n", r.InitialEquity)
	fmt.Printf("Final equity:     %12.2f\n", r.FinalEquity)
	fmt.Printf("Net profit:       %12.2f\n", r.NetProfit)
	fmt.Printf("Max drawdown:     %11.2f%%\n", 100*r.MaxDrawdown)
	fmt.Printf("CAGR:             %s\n", pct(r.CAGR))
	fmt.Printf("Sharpe:           %s\n", num(r.Sharpe))
	fmt.Printf("Sortino:          %s\n", num(r.Sortino))
	fmt.Printf("Trades:           %6d (%d long, %d short)\n", r.Trades, r.LongTrades, r.ShortTrades)
	fmt.Printf("Win rate:         %s\n", pct(r.WinRate))
	fmt.Printf("Expectancy:       %s\n", num(r.Expectancy))
	fmt.Printf("Profit factor:    %s\n", profitFactor(r.ProfitFactor))
	fmt.Printf("Avg win / loss:   %s / %s\n", num(r.AverageWin), num(r.AverageLoss))
	fmt.Printf("Recovery factor:  %s\n", num(r.RecoveryFactor))
	if res != nil {
		fmt.Printf("Final posture:    %s\n", res.Posture)
		fmt.Printf("Bars / gaps:      %d / %d\n", res.Stats.Bars, res.Stats.Gaps)
		fmt.Printf("Hypotheses:       %d proposed, %d rejected, %d entered\n",
			res.Stats.Hypotheses, res.Stats.Rejected, res.Stats.Entries)
	}
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", 100**v)
}

func profitFactor(pf *analytics.ProfitFactor) string {
	switch {
	case pf == nil:
		return "n/a"
	case pf.Infinite:
		return "inf (no losing trades)"
	default:
		return fmt.Sprintf("%.2f", pf.Value)
	}
}
