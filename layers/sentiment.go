package layers

import (
	"fmt"
	"math"

	"github.com/rustyeddy/macrotrader/market"
)

// Sentiment gates on a composite crowd-sentiment score (0..100). Longs
// need the composite at or above LongMin, shorts at or below ShortMax.
type Sentiment struct {
	LongMin  float64
	ShortMax float64
}

func NewSentiment() *Sentiment {
	return &Sentiment{LongMin: 50, ShortMax: 50}
}

func (s *Sentiment) Name() string { return "sentiment" }

func (s *Sentiment) Evaluate(snap market.Snapshot, dir market.Side) Verdict {
	score, ok := CompositeSentiment(snap)
	if !ok {
		return fail(s.Name(), "no sentiment data in snapshot")
	}

	switch dir {
	case market.Long:
		if score < s.LongMin {
			return fail(s.Name(), fmt.Sprintf("composite %.1f below long threshold %.1f", score, s.LongMin))
		}
	case market.Short:
		if score > s.ShortMax {
			return fail(s.Name(), fmt.Sprintf("composite %.1f above short threshold %.1f", score, s.ShortMax))
		}
	}

	return pass(s.Name(), fmt.Sprintf("composite %.1f", score))
}

// CompositeSentiment blends fear/greed, a VIX-derived score, and the
// put/call ratio into one 0..100 reading: fear/greed and VIX weigh 0.4
// each, put/call 0.2. Missing components are renormalized out; ok is
// false when none are present.
func CompositeSentiment(snap market.Snapshot) (score float64, ok bool) {
	var sum, weights float64

	if market.Known(snap.FearGreed) {
		sum += 0.4 * clamp01to100(snap.FearGreed)
		weights += 0.4
	}
	if market.Known(snap.VIX) {
		sum += 0.4 * clamp01to100(100-snap.VIX*2)
		weights += 0.4
	}
	if market.Known(snap.PutCallRatio) && snap.PutCallRatio > 0 {
		sum += 0.2 * clamp01to100((1/snap.PutCallRatio)*50)
		weights += 0.2
	}

	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}

func clamp01to100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
