// Package analytics derives a performance report from a finished equity
// curve and trade log. Everything here is a pure function; the inputs are
// never mutated.
package analytics

import (
	"math"
	"time"

	"github.com/rustyeddy/macrotrader/market"
)

// Options tunes the report derivation.
type Options struct {
	RiskFreeRate   float64 // annual, e.g. 0.02
	PeriodsPerYear float64 // 252 for daily bars; inferred from the curve when 0

	// MaxDrawdown is the peak drawdown fraction the replay engine tracked
	// incrementally; the analyzer reuses it instead of rescanning the
	// curve.
	MaxDrawdown float64
}

// ProfitFactor separates the defined and undefined cases: with no losing
// trades the ratio is explicitly infinite, never zero or a division
// fault. Value stays 0 in the infinite case so the struct remains JSON
// encodable.
type ProfitFactor struct {
	Value    float64 `json:"value"`
	Infinite bool    `json:"infinite"`
}

// Report is the analyzer's output. Ratios that are mathematically
// undefined for the input (zero variance, no losses) are nil and
// serialize as JSON null.
type Report struct {
	InitialEquity float64 `json:"initial_equity"`
	FinalEquity   float64 `json:"final_equity"`
	NetProfit     float64 `json:"net_profit"`
	MaxDrawdown   float64 `json:"max_drawdown"`

	CAGR    *float64 `json:"cagr"`
	Sharpe  *float64 `json:"sharpe"`
	Sortino *float64 `json:"sortino"`

	Trades       int           `json:"trades"`
	LongTrades   int           `json:"long_trades"`
	ShortTrades  int           `json:"short_trades"`
	WinRate      *float64      `json:"win_rate"`
	Expectancy   *float64      `json:"expectancy"`
	ProfitFactor *ProfitFactor `json:"profit_factor"`

	AverageWin     *float64 `json:"average_win"`
	AverageLoss    *float64 `json:"average_loss"`
	WinLossRatio   *float64 `json:"win_loss_ratio"`
	RecoveryFactor *float64 `json:"recovery_factor"`

	AverageHolding time.Duration `json:"average_holding_ns"`
}

// Analyze builds the report. It accepts an empty curve or trade log and
// reports what it can; missing ratios stay nil.
func Analyze(curve []market.EquityPoint, trades []market.Trade, opts Options) Report {
	r := Report{MaxDrawdown: opts.MaxDrawdown}

	if len(curve) > 0 {
		r.InitialEquity = curve[0].Equity
		r.FinalEquity = curve[len(curve)-1].Equity
		r.NetProfit = r.FinalEquity - r.InitialEquity
		r.CAGR = cagr(curve)

		perYear := opts.PeriodsPerYear
		if perYear <= 0 {
			perYear = inferPeriodsPerYear(curve)
		}
		returns := periodReturns(curve)
		r.Sharpe = sharpe(returns, opts.RiskFreeRate, perYear)
		r.Sortino = sortino(returns, opts.RiskFreeRate, perYear)
	}

	analyzeTrades(&r, trades)

	if ddDollars := maxDrawdownDollars(curve); ddDollars > 0 {
		rf := r.NetProfit / ddDollars
		r.RecoveryFactor = &rf
	}

	return r
}

func analyzeTrades(r *Report, trades []market.Trade) {
	r.Trades = len(trades)
	if len(trades) == 0 {
		return
	}

	var wins, losses int
	var grossWin, grossLoss, total float64
	var holding time.Duration
	for _, t := range trades {
		total += t.RealizedPL
		holding += t.ExitTime.Sub(t.EntryTime)
		switch t.Side {
		case market.Long:
			r.LongTrades++
		case market.Short:
			r.ShortTrades++
		}
		switch {
		case t.RealizedPL > 0:
			wins++
			grossWin += t.RealizedPL
		case t.RealizedPL < 0:
			losses++
			grossLoss += -t.RealizedPL
		}
	}

	wr := float64(wins) / float64(len(trades))
	exp := total / float64(len(trades))
	r.WinRate = &wr
	r.Expectancy = &exp
	r.AverageHolding = holding / time.Duration(len(trades))

	if wins > 0 {
		aw := grossWin / float64(wins)
		r.AverageWin = &aw
	}
	if losses > 0 {
		al := -grossLoss / float64(losses)
		r.AverageLoss = &al
	}
	if wins > 0 && losses > 0 {
		wl := (grossWin / float64(wins)) / (grossLoss / float64(losses))
		r.WinLossRatio = &wl
	}

	if grossLoss > 0 {
		r.ProfitFactor = &ProfitFactor{Value: grossWin / grossLoss}
	} else if grossWin > 0 {
		r.ProfitFactor = &ProfitFactor{Infinite: true}
	}
}

// maxDrawdownDollars is the deepest peak-to-trough equity decline in
// dollars, measured against the running peak rather than initial
// equity.
func maxDrawdownDollars(curve []market.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if d := peak - p.Equity; d > worst {
			worst = d
		}
	}
	return worst
}

func cagr(curve []market.EquityPoint) *float64 {
	first, last := curve[0], curve[len(curve)-1]
	years := last.Time.Sub(first.Time).Hours() / (24 * 365.25)
	if years <= 0 || first.Equity <= 0 || last.Equity <= 0 {
		return nil
	}
	v := math.Pow(last.Equity/first.Equity, 1/years) - 1
	return &v
}

func periodReturns(curve []market.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

func sharpe(returns []float64, riskFree, perYear float64) *float64 {
	if len(returns) < 2 || perYear <= 0 {
		return nil
	}
	rfPeriod := riskFree / perYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfPeriod
	}
	sd := stdev(excess)
	if sd == 0 {
		return nil
	}
	v := mean(excess) / sd * math.Sqrt(perYear)
	return &v
}

func sortino(returns []float64, riskFree, perYear float64) *float64 {
	if len(returns) < 2 || perYear <= 0 {
		return nil
	}
	rfPeriod := riskFree / perYear
	var downside []float64
	var sum float64
	for _, r := range returns {
		e := r - rfPeriod
		sum += e
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return nil
	}
	dd := stdev(downside)
	if dd == 0 {
		return nil
	}
	v := sum / float64(len(returns)) / dd * math.Sqrt(perYear)
	return &v
}

// inferPeriodsPerYear estimates the annualization factor from the curve's
// median spacing: daily-or-coarser bars annualize on trading days,
// intraday bars on wall-clock time.
func inferPeriodsPerYear(curve []market.EquityPoint) float64 {
	if len(curve) < 2 {
		return 252
	}
	span := curve[len(curve)-1].Time.Sub(curve[0].Time)
	step := span / time.Duration(len(curve)-1)
	if step <= 0 {
		return 252
	}
	if step >= 24*time.Hour {
		return 252
	}
	return float64(365.25 * 24 * time.Hour / step)
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
