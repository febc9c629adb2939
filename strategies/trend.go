package strategies

import (
	"fmt"

	"github.com/rustyeddy/macrotrader/market"
)

// Trend is the default strategy: trade with a correctly ordered EMA
// stack while RSI is not stretched. Stops hang off EMA50, targets are a
// fixed fraction from entry, and exits fire when the stack breaks or RSI
// reaches an extreme.
type Trend struct {
	MinBars    int     // bars needed before proposing anything
	StopFrac   float64 // stop distance from EMA50, e.g. 0.05
	TargetFrac float64 // target distance from entry, e.g. 0.10
	RSIExitHi  float64 // close longs at or above
	RSIExitLo  float64 // close shorts at or below
	AllowShort bool
}

func NewTrend() *Trend {
	return &Trend{
		MinBars:    200,
		StopFrac:   0.05,
		TargetFrac: 0.10,
		RSIExitHi:  80,
		RSIExitLo:  20,
		AllowShort: true,
	}
}

func (t *Trend) Name() string { return "trend" }

func (t *Trend) Hypotheses(bar market.Bar, snap market.Snapshot) []Hypothesis {
	if snap.BarCount < t.MinBars {
		return nil
	}
	if !market.Known(snap.EMA50) || !market.Known(snap.EMA200) || !market.Known(snap.RSI14) {
		return nil
	}

	c := bar.Close
	switch {
	case c > snap.EMA50 && snap.EMA50 > snap.EMA200:
		return []Hypothesis{{
			Symbol:    bar.Symbol,
			Direction: market.Long,
			Stop:      snap.EMA50 * (1 - t.StopFrac),
			Target:    c * (1 + t.TargetFrac),
			Reason:    fmt.Sprintf("uptrend: close %.2f > EMA50 %.2f > EMA200 %.2f", c, snap.EMA50, snap.EMA200),
		}}
	case t.AllowShort && c < snap.EMA50 && snap.EMA50 < snap.EMA200:
		return []Hypothesis{{
			Symbol:    bar.Symbol,
			Direction: market.Short,
			Stop:      snap.EMA50 * (1 + t.StopFrac),
			Target:    c * (1 - t.TargetFrac),
			Reason:    fmt.Sprintf("downtrend: close %.2f < EMA50 %.2f < EMA200 %.2f", c, snap.EMA50, snap.EMA200),
		}}
	}
	return nil
}

func (t *Trend) ShouldExit(pos Open, bar market.Bar, snap market.Snapshot) (bool, string) {
	if !market.Known(snap.EMA50) || !market.Known(snap.RSI14) {
		return false, ""
	}

	switch pos.Side {
	case market.Long:
		if bar.Close < snap.EMA50 {
			return true, fmt.Sprintf("close %.2f below EMA50 %.2f", bar.Close, snap.EMA50)
		}
		if snap.RSI14 >= t.RSIExitHi {
			return true, fmt.Sprintf("RSI %.1f at or above %.0f", snap.RSI14, t.RSIExitHi)
		}
	case market.Short:
		if bar.Close > snap.EMA50 {
			return true, fmt.Sprintf("close %.2f above EMA50 %.2f", bar.Close, snap.EMA50)
		}
		if snap.RSI14 <= t.RSIExitLo {
			return true, fmt.Sprintf("RSI %.1f at or below %.0f", snap.RSI14, t.RSIExitLo)
		}
	}
	return false, ""
}
