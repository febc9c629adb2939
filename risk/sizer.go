package risk

import (
	"fmt"
	"math"
)

// SizingStrategy selects how the sizer converts risk budget into units.
type SizingStrategy string

const (
	FixedFractional SizingStrategy = "fixed_fractional"
	KellyBlend      SizingStrategy = "kelly_blend"
)

// Sizer turns an approved hypothesis plus account equity into a
// quantity. Fixed-fractional is the base formula; the kelly blend scales
// it down by a capped Kelly fraction rather than replacing it.
type Sizer struct {
	Strategy         SizingStrategy
	RiskPerTrade     float64 // fraction of equity risked per trade, e.g. 0.01
	MaxPositionFrac  float64 // notional cap as a fraction of equity
	MaxKellyFraction float64 // upper clamp on the Kelly fraction
	MinKellyTrades   int     // realized trades needed before history drives Kelly
	Fractional       bool    // allow fractional quantities

	// Seed Kelly inputs, used until MinKellyTrades of history exist.
	WinRate     float64
	PayoffRatio float64
}

func NewSizer() *Sizer {
	return &Sizer{
		Strategy:         FixedFractional,
		RiskPerTrade:     0.01,
		MaxPositionFrac:  0.10,
		MaxKellyFraction: 0.25,
		MinKellyTrades:   10,
		WinRate:          0.5,
		PayoffRatio:      1.5,
	}
}

// Inputs for one sizing call. RiskScale is the drawdown controller's
// posture multiplier (1.0 in NORMAL). History fields are realized-trade
// aggregates; they override the seed Kelly inputs once Trades reaches
// MinKellyTrades.
type Inputs struct {
	Equity     float64
	EntryPrice float64
	StopPrice  float64
	RiskScale  float64

	Trades      int
	WinRate     float64
	PayoffRatio float64
}

type Result struct {
	Quantity     float64
	Notional     float64
	RiskAmount   float64 // equity at risk if the stop is hit
	StopFraction float64
	KellyApplied float64 // multiplier used; 1 for fixed fractional
}

// Size computes the order quantity. It fails with *InvalidSizingError
// when the stop distance is degenerate or the quantity floors to zero.
func (s *Sizer) Size(in Inputs) (Result, error) {
	if in.EntryPrice <= 0 {
		return Result{}, &InvalidSizingError{Reason: fmt.Sprintf("entry price %g", in.EntryPrice)}
	}
	stopFrac := math.Abs(in.EntryPrice-in.StopPrice) / in.EntryPrice
	if stopFrac <= 0 {
		return Result{}, &InvalidSizingError{Reason: "stop distance is zero"}
	}

	scale := in.RiskScale
	if scale <= 0 {
		scale = 1
	}

	riskAmt := in.Equity * s.RiskPerTrade * scale
	notional := riskAmt / stopFrac

	kelly := 1.0
	if s.Strategy == KellyBlend {
		kelly = s.kellyFraction(in)
		notional *= kelly
	}

	if limit := in.Equity * s.MaxPositionFrac; s.MaxPositionFrac > 0 && notional > limit {
		notional = limit
	}

	qty := notional / in.EntryPrice
	if !s.Fractional {
		qty = math.Floor(qty)
	}
	if qty <= 0 {
		return Result{}, &InvalidSizingError{Reason: "quantity rounds to zero"}
	}

	return Result{
		Quantity:     qty,
		Notional:     qty * in.EntryPrice,
		RiskAmount:   riskAmt,
		StopFraction: stopFrac,
		KellyApplied: kelly,
	}, nil
}

// kellyFraction = winRate - (1-winRate)/payoff, clamped to
// [0, MaxKellyFraction]. Realized history takes over from the seed values
// once enough trades exist.
func (s *Sizer) kellyFraction(in Inputs) float64 {
	win, payoff := s.WinRate, s.PayoffRatio
	if in.Trades >= s.MinKellyTrades && s.MinKellyTrades > 0 {
		win, payoff = in.WinRate, in.PayoffRatio
	}
	if payoff <= 0 {
		return 0
	}
	f := win - (1-win)/payoff
	if f < 0 {
		return 0
	}
	if f > s.MaxKellyFraction {
		return s.MaxKellyFraction
	}
	return f
}
