// Package layers holds the independent gate evaluators of the decision
// pipeline. Each evaluator is a pure predicate over an indicator snapshot
// and a direction hypothesis; none of them touch account state, and every
// verdict carries a reason so a decision trace is fully explainable.
package layers

import "github.com/rustyeddy/macrotrader/market"

// Verdict is one layer's answer for one hypothesis.
type Verdict struct {
	Layer  string
	Passed bool
	Reason string
}

// Evaluator is the capability every gate layer implements.
type Evaluator interface {
	Name() string
	Evaluate(snap market.Snapshot, dir market.Side) Verdict
}

func pass(layer, reason string) Verdict {
	return Verdict{Layer: layer, Passed: true, Reason: reason}
}

func fail(layer, reason string) Verdict {
	return Verdict{Layer: layer, Passed: false, Reason: reason}
}
