package layers

import (
	"fmt"

	"github.com/rustyeddy/macrotrader/market"
)

// Pattern is an entry predicate over the latest snapshot. The strategy
// supplies it; the Technical evaluator only frames it as a gate layer.
type Pattern func(snap market.Snapshot, dir market.Side) (ok bool, reason string)

// Technical gates on the caller's entry pattern once enough bars have
// been seen to trust the derived indicator values.
type Technical struct {
	MinBars int // bars required before the pattern is evaluated
	Pattern Pattern
}

func NewTechnical() *Technical {
	return &Technical{
		MinBars: 200,
		Pattern: TrendPattern(30, 70),
	}
}

func (t *Technical) Name() string { return "technical" }

func (t *Technical) Evaluate(snap market.Snapshot, dir market.Side) Verdict {
	if snap.BarCount < t.MinBars {
		return fail(t.Name(), fmt.Sprintf("insufficient data: %d of %d bars", snap.BarCount, t.MinBars))
	}

	pattern := t.Pattern
	if pattern == nil {
		pattern = TrendPattern(30, 70)
	}

	ok, reason := pattern(snap, dir)
	if !ok {
		return fail(t.Name(), reason)
	}
	return pass(t.Name(), reason)
}

// TrendPattern is the default entry predicate: price above (below) a
// correctly ordered EMA50/EMA200 stack with RSI inside the band, long and
// short mirrored.
func TrendPattern(rsiLow, rsiHigh float64) Pattern {
	return func(snap market.Snapshot, dir market.Side) (bool, string) {
		if !market.Known(snap.Price) || !market.Known(snap.EMA50) || !market.Known(snap.EMA200) || !market.Known(snap.RSI14) {
			return false, "trend indicators not warmed up"
		}

		rsi := snap.RSI14
		if rsi <= rsiLow || rsi >= rsiHigh {
			return false, fmt.Sprintf("RSI %.1f outside (%.0f, %.0f)", rsi, rsiLow, rsiHigh)
		}

		switch dir {
		case market.Long:
			if snap.Price <= snap.EMA50 {
				return false, "close at or below EMA50"
			}
			if snap.EMA50 <= snap.EMA200 {
				return false, "EMA50 at or below EMA200"
			}
			return true, fmt.Sprintf("uptrend stack, RSI %.1f", rsi)
		case market.Short:
			if snap.Price >= snap.EMA50 {
				return false, "close at or above EMA50"
			}
			if snap.EMA50 >= snap.EMA200 {
				return false, "EMA50 at or above EMA200"
			}
			return true, fmt.Sprintf("downtrend stack, RSI %.1f", rsi)
		}
		return false, "no direction"
	}
}
