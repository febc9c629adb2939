package replay

import (
	"github.com/rustyeddy/macrotrader/analytics"
	"github.com/rustyeddy/macrotrader/market"
	"github.com/rustyeddy/macrotrader/risk"
)

// Result is everything a finished (or cancelled) run produced. The curve
// and trade log cover exactly the bars that were committed.
type Result struct {
	Curve  []market.EquityPoint
	Trades []market.Trade
	Stats  Stats

	InitialCash   float64
	FinalEquity   float64
	Cash          float64
	MaxDrawdown   float64
	Posture       risk.Posture
	OpenPositions int
}

func (e *Engine) result() *Result {
	return &Result{
		Curve:         e.curve,
		Trades:        e.trades,
		Stats:         e.stats,
		InitialCash:   e.opts.InitialCash,
		FinalEquity:   e.acct.Equity(),
		Cash:          e.acct.Cash(),
		MaxDrawdown:   e.maxDrawdown,
		Posture:       e.drawdown.Posture(),
		OpenPositions: e.acct.OpenPositions(),
	}
}

// Report derives the performance report from the run's outputs, reusing
// the incrementally tracked max drawdown.
func (r *Result) Report(riskFree, periodsPerYear float64) analytics.Report {
	return analytics.Analyze(r.Curve, r.Trades, analytics.Options{
		RiskFreeRate:   riskFree,
		PeriodsPerYear: periodsPerYear,
		MaxDrawdown:    r.MaxDrawdown,
	})
}
