package layers

import (
	"fmt"
	"time"

	"github.com/rustyeddy/macrotrader/market"
)

type stance int

const (
	neutral stance = iota
	dovish
	hawkish
)

func (s stance) String() string {
	switch s {
	case dovish:
		return "dovish"
	case hawkish:
		return "hawkish"
	}
	return "neutral"
}

// Fundamental gates on central-bank policy stance and the economic
// backdrop. Dovish or neutral policy supports longs, hawkish or neutral
// supports shorts. Longs additionally need a supportive economy, and no
// direction trades into a high-impact release window.
type Fundamental struct {
	Blackout        time.Duration // window before a high-impact release; 0 disables
	CPIMax          float64       // inflation ceiling for a supportive economy
	UnemploymentMax float64
}

func NewFundamental() *Fundamental {
	return &Fundamental{
		Blackout:        24 * time.Hour,
		CPIMax:          4.0,
		UnemploymentMax: 5.0,
	}
}

func (f *Fundamental) Name() string { return "fundamental" }

func (f *Fundamental) Evaluate(snap market.Snapshot, dir market.Side) Verdict {
	if f.Blackout > 0 && !snap.NextHighImpactRelease.IsZero() {
		until := snap.NextHighImpactRelease.Sub(snap.Time)
		if until >= 0 && until <= f.Blackout {
			return fail(f.Name(), fmt.Sprintf("high-impact release at %s inside blackout window",
				snap.NextHighImpactRelease.Format("2006-01-02 15:04")))
		}
	}

	st := policyStance(snap)
	switch dir {
	case market.Long:
		if st == hawkish {
			return fail(f.Name(), "hawkish policy stance opposes longs")
		}
		if why, ok := economySupportive(f, snap); !ok {
			return fail(f.Name(), why)
		}
	case market.Short:
		if st == dovish {
			return fail(f.Name(), "dovish policy stance opposes shorts")
		}
	}

	return pass(f.Name(), fmt.Sprintf("%s policy stance", st))
}

func policyStance(snap market.Snapshot) stance {
	if !market.Known(snap.PolicyRateChange) {
		return neutral
	}
	switch {
	case snap.PolicyRateChange > 0:
		return hawkish
	case snap.PolicyRateChange < 0:
		return dovish
	}
	return neutral
}

// economySupportive applies the long-side backdrop checks. Unknown values
// do not count against the hypothesis.
func economySupportive(f *Fundamental, snap market.Snapshot) (string, bool) {
	if market.Known(snap.CPIYoY) && snap.CPIYoY >= f.CPIMax {
		return fmt.Sprintf("inflation %.1f%% at or above %.1f%% ceiling", snap.CPIYoY, f.CPIMax), false
	}
	if market.Known(snap.GDPQoQ) && snap.GDPQoQ <= 0 {
		return fmt.Sprintf("GDP contracting (%.1f%% QoQ)", snap.GDPQoQ), false
	}
	if market.Known(snap.UnemploymentRate) && snap.UnemploymentRate >= f.UnemploymentMax {
		return fmt.Sprintf("unemployment %.1f%% at or above %.1f%%", snap.UnemploymentRate, f.UnemploymentMax), false
	}
	return "", true
}
