package market

import (
	"math"
	"time"
)

// Snapshot is the point-in-time indicator state aligned to one bar. Macro
// values that were not available at that time are NaN; use Known before
// reading them. Technical values are computed by the feed from the bar
// stream itself.
type Snapshot struct {
	Time time.Time

	// Price is the closing price of the aligned bar.
	Price float64

	// Macro indicators.
	VIX              float64
	VIXChangePct     float64 // day-over-day, e.g. +0.05 = +5%
	DXYChangePct     float64
	Yield10Y         float64
	Yield10YChange   float64 // absolute change in percentage points
	GoldChangePct    float64
	EquityChangePct  float64 // change of the traded symbol's close
	FearGreed        float64 // 0..100
	PutCallRatio     float64
	NewsSentiment    float64 // 0..100
	PolicyRate       float64
	PolicyRateChange float64

	// Economic backdrop.
	CPIYoY           float64
	GDPQoQ           float64
	UnemploymentRate float64

	// NextHighImpactRelease is the next scheduled high-impact economic
	// release, zero when none is known.
	NextHighImpactRelease time.Time

	// Technical values for the bar's symbol.
	EMA50  float64
	EMA200 float64
	RSI14  float64
	ATR14  float64

	// BarCount is how many bars of the symbol have been seen so far,
	// including the current one. Technical values are meaningless until
	// the indicators behind them are warmed up.
	BarCount int
}

// NewSnapshot returns a Snapshot at t with every value marked unknown.
func NewSnapshot(t time.Time) Snapshot {
	n := math.NaN()
	return Snapshot{
		Time:             t,
		Price:            n,
		VIX:              n,
		VIXChangePct:     n,
		DXYChangePct:     n,
		Yield10Y:         n,
		Yield10YChange:   n,
		GoldChangePct:    n,
		EquityChangePct:  n,
		FearGreed:        n,
		PutCallRatio:     n,
		NewsSentiment:    n,
		PolicyRate:       n,
		PolicyRateChange: n,
		CPIYoY:           n,
		GDPQoQ:           n,
		UnemploymentRate: n,
		EMA50:            n,
		EMA200:           n,
		RSI14:            n,
		ATR14:            n,
	}
}

// Known reports whether an indicator value was present in the snapshot.
func Known(v float64) bool {
	return !math.IsNaN(v)
}
