// Package pipeline runs the gate layers in a fixed order with
// short-circuit semantics, producing one auditable decision per
// hypothesis. Layers after the first failure are not evaluated and do not
// appear in the trace; a decision that was never given a direction is
// distinct from one that was rejected.
package pipeline

import (
	"fmt"

	"github.com/rustyeddy/macrotrader/layers"
	"github.com/rustyeddy/macrotrader/market"
	"github.com/rustyeddy/macrotrader/regime"
)

// Decision is the full trace for one hypothesis on one bar. Approved is
// true only when every evaluated layer passed. The replay engine appends
// its risk-gate verdicts to the same trace before acting on it.
type Decision struct {
	Symbol    string
	Direction market.Side
	Regime    regime.State
	Verdicts  []layers.Verdict
	Approved  bool
}

// NoSignal records that no setup was detected for the symbol on this bar.
func NoSignal(symbol string) Decision {
	return Decision{Symbol: symbol}
}

// HasSignal distinguishes a rejected hypothesis from the absence of one.
func (d Decision) HasSignal() bool { return d.Direction != 0 }

// RejectedBy returns the failing verdict, if any.
func (d Decision) RejectedBy() (layers.Verdict, bool) {
	for _, v := range d.Verdicts {
		if !v.Passed {
			return v, true
		}
	}
	return layers.Verdict{}, false
}

// Pipeline evaluates regime, then the gate layers in registration order.
type Pipeline struct {
	classifier *regime.Classifier
	evaluators []layers.Evaluator
}

func New(c *regime.Classifier, evals ...layers.Evaluator) *Pipeline {
	if c == nil {
		c = regime.New()
	}
	return &Pipeline{classifier: c, evaluators: evals}
}

// Default wires the standard stack: regime veto, then fundamental,
// sentiment, intermarket, and technical gates.
func Default() *Pipeline {
	return New(regime.New(),
		layers.NewFundamental(),
		layers.NewSentiment(),
		layers.NewIntermarket(),
		layers.NewTechnical(),
	)
}

// Evaluate runs the pipeline for one hypothesis. The first failing layer
// short-circuits: later layers are absent from the trace, never fabricated
// as passes.
func (p *Pipeline) Evaluate(symbol string, dir market.Side, snap market.Snapshot) Decision {
	d := Decision{Symbol: symbol, Direction: dir}
	if dir == 0 {
		return d
	}

	d.Regime = p.classifier.Classify(snap)
	v := regimeVerdict(d.Regime, dir)
	d.Verdicts = append(d.Verdicts, v)
	if !v.Passed {
		return d
	}

	for _, e := range p.evaluators {
		v := e.Evaluate(snap, dir)
		d.Verdicts = append(d.Verdicts, v)
		if !v.Passed {
			return d
		}
	}

	d.Approved = true
	return d
}

// regimeVerdict vetoes hypotheses that trade against the macro regime:
// RISK_OFF blocks longs, RISK_ON blocks shorts, NEUTRAL blocks neither.
func regimeVerdict(st regime.State, dir market.Side) layers.Verdict {
	v := layers.Verdict{Layer: "regime"}

	switch {
	case dir == market.Long && st.Label == regime.RiskOff:
		v.Reason = fmt.Sprintf("RISK_OFF regime blocks longs (score %.2f)", st.Score)
	case dir == market.Short && st.Label == regime.RiskOn:
		v.Reason = fmt.Sprintf("RISK_ON regime blocks shorts (score %.2f)", st.Score)
	default:
		v.Passed = true
		v.Reason = fmt.Sprintf("%s (score %.2f, confidence %.2f)", st.Label, st.Score, st.Confidence)
	}

	return v
}
