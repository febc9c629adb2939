package layers

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/macrotrader/market"
)

// Intermarket gates on confirmation from related markets: the bond trend,
// dollar pressure, and a gold/VIX defensive posture. The signals are
// noisy, so passing takes a quorum rather than unanimity.
type Intermarket struct {
	Quorum int // confirming signals required; default 2 of 3
}

func NewIntermarket() *Intermarket {
	return &Intermarket{Quorum: 2}
}

func (im *Intermarket) Name() string { return "intermarket" }

func (im *Intermarket) Evaluate(snap market.Snapshot, dir market.Side) Verdict {
	quorum := im.Quorum
	if quorum <= 0 {
		quorum = 2
	}

	available := 0
	var confirming []string

	if market.Known(snap.Yield10YChange) {
		available++
		if bondsConfirm(snap.Yield10YChange, dir) {
			confirming = append(confirming, "bonds")
		}
	}
	if market.Known(snap.DXYChangePct) {
		available++
		if usdConfirms(snap.DXYChangePct, dir) {
			confirming = append(confirming, "usd")
		}
	}
	if market.Known(snap.GoldChangePct) && market.Known(snap.VIXChangePct) {
		available++
		if defensiveConfirms(snap.GoldChangePct, snap.VIXChangePct, dir) {
			confirming = append(confirming, "defensive")
		}
	}

	if available < quorum {
		return fail(im.Name(), fmt.Sprintf("only %d of %d required signals available", available, quorum))
	}
	if len(confirming) < quorum {
		return fail(im.Name(), fmt.Sprintf("%d/%d signals confirm, need %d", len(confirming), available, quorum))
	}
	return pass(im.Name(), fmt.Sprintf("%d/%d signals confirm (%s)",
		len(confirming), available, strings.Join(confirming, ", ")))
}

// bondsConfirm: falling yields support equities, rising yields support
// shorts.
func bondsConfirm(yieldChange float64, dir market.Side) bool {
	if dir == market.Long {
		return yieldChange < 0
	}
	return yieldChange > 0
}

// usdConfirms: a strongly rising dollar pressures equities. Longs are
// confirmed while the dollar is not surging, shorts while it is not
// sliding.
func usdConfirms(dxyChange float64, dir market.Side) bool {
	if dir == market.Long {
		return dxyChange < 0.005
	}
	return dxyChange > -0.005
}

// defensiveConfirms: gold up over half a percent together with a VIX jump
// over five percent is a defensive rotation. Its absence confirms longs,
// its presence confirms shorts.
func defensiveConfirms(goldChange, vixChange float64, dir market.Side) bool {
	defensive := goldChange > 0.005 && vixChange > 0.05
	if dir == market.Long {
		return !defensive
	}
	return defensive
}
