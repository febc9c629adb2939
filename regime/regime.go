// Package regime classifies macro risk sentiment from a snapshot of
// cross-asset indicators. Classification is a pure function of the
// snapshot; nothing here holds state between bars.
package regime

import (
	"math"
	"time"

	"github.com/rustyeddy/macrotrader/market"
)

type Label string

const (
	RiskOn  Label = "RISK_ON"
	RiskOff Label = "RISK_OFF"
	Neutral Label = "NEUTRAL"
)

// State is the derived regime for one bar.
type State struct {
	Score      float64 // composite in [-1, 1]
	Label      Label
	Confidence float64 // fraction of indicators agreeing with the composite, [0, 1]
	Time       time.Time
}

// Weights scales each indicator's contribution to the composite score.
// Indicators absent from a snapshot are renormalized out.
type Weights struct {
	VIX       float64 `json:"vix" yaml:"vix"`
	Sentiment float64 `json:"sentiment" yaml:"sentiment"`
	Bonds     float64 `json:"bonds" yaml:"bonds"`
	USD       float64 `json:"usd" yaml:"usd"`
	Equity    float64 `json:"equity" yaml:"equity"`
}

func DefaultWeights() Weights {
	return Weights{
		VIX:       0.25,
		Sentiment: 0.25,
		Bonds:     0.20,
		USD:       0.15,
		Equity:    0.15,
	}
}

// Classifier derives a State from a snapshot.
type Classifier struct {
	Weights    Weights
	RiskOnMin  float64 // score at or above is RISK_ON
	RiskOffMax float64 // score at or below is RISK_OFF
}

func New() *Classifier {
	return &Classifier{
		Weights:    DefaultWeights(),
		RiskOnMin:  0.3,
		RiskOffMax: -0.3,
	}
}

// Classify computes the weighted composite of whatever indicators the
// snapshot carries. With nothing to go on it returns a zero-confidence
// NEUTRAL state rather than guessing.
func (c *Classifier) Classify(snap market.Snapshot) State {
	type part struct {
		score  float64
		weight float64
	}
	var parts []part

	if market.Known(snap.VIX) {
		parts = append(parts, part{clamp((30-snap.VIX)/30, -1, 1), c.Weights.VIX})
	}
	if s, ok := sentimentInput(snap); ok {
		parts = append(parts, part{clamp((s-50)/50, -1, 1), c.Weights.Sentiment})
	}
	if market.Known(snap.Yield10YChange) {
		parts = append(parts, part{math.Tanh(snap.Yield10YChange * 10), c.Weights.Bonds})
	}
	if market.Known(snap.DXYChangePct) {
		parts = append(parts, part{-math.Tanh(snap.DXYChangePct * 5), c.Weights.USD})
	}
	if market.Known(snap.EquityChangePct) {
		parts = append(parts, part{math.Tanh(snap.EquityChangePct * 20), c.Weights.Equity})
	}

	st := State{Label: Neutral, Time: snap.Time}
	if len(parts) == 0 {
		return st
	}

	var weighted, total float64
	for _, p := range parts {
		weighted += p.score * p.weight
		total += p.weight
	}
	if total == 0 {
		return st
	}
	st.Score = clamp(weighted/total, -1, 1)

	switch {
	case st.Score >= c.RiskOnMin:
		st.Label = RiskOn
	case st.Score <= c.RiskOffMax:
		st.Label = RiskOff
	}

	if st.Score != 0 {
		agree := 0
		for _, p := range parts {
			if p.score*st.Score > 0 {
				agree++
			}
		}
		st.Confidence = float64(agree) / float64(len(parts))
	}

	return st
}

// sentimentInput prefers the news sentiment series and falls back to the
// fear/greed index, both on a 0..100 scale.
func sentimentInput(snap market.Snapshot) (float64, bool) {
	if market.Known(snap.NewsSentiment) {
		return snap.NewsSentiment, true
	}
	if market.Known(snap.FearGreed) {
		return snap.FearGreed, true
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
