package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macrotrader/analytics"
	"github.com/rustyeddy/macrotrader/journal"
	"github.com/rustyeddy/macrotrader/market"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Derive a performance report from a journal database",
	Long: `Report reads the trades and equity curve a previous run journaled
into SQLite and recomputes the performance report from them.

Example:
  macrotrader report --db runs/spy.sqlite --json`,
	RunE: runReport,
}

var (
	reDBPath   string
	reJSON     bool
	reRiskFree float64
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reDBPath, "db", "d", "", "path to SQLite journal (required)")
	reportCmd.Flags().BoolVar(&reJSON, "json", false, "print the report as JSON")
	reportCmd.Flags().Float64Var(&reRiskFree, "risk-free", 0.02, "annual risk-free rate for Sharpe/Sortino")

	reportCmd.MarkFlagRequired("db")
}

func runReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(envOr("MACROTRADER_DB", reDBPath))
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTrades()
	if err != nil {
		return err
	}
	curve, err := j.ListEquity()
	if err != nil {
		return err
	}

	report := analytics.Analyze(curve, trades, analytics.Options{
		RiskFreeRate: reRiskFree,
		MaxDrawdown:  maxDrawdownOf(curve),
	})

	if reJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(nil, report)
	return nil
}

// maxDrawdownOf rescans a stored curve. The live engine tracks this
// incrementally; here only the persisted points exist.
func maxDrawdownOf(curve []market.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
