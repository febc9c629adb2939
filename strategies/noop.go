package strategies

import "github.com/rustyeddy/macrotrader/market"

// Noop never proposes and never exits. Handy for dry runs that only
// exercise the feed and equity accounting.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Hypotheses(market.Bar, market.Snapshot) []Hypothesis { return nil }

func (Noop) ShouldExit(Open, market.Bar, market.Snapshot) (bool, string) {
	return false, ""
}
