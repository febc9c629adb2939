package risk

// Posture is the account's current risk stance.
type Posture int

const (
	Normal Posture = iota
	Reduced
	Halted
)

func (p Posture) String() string {
	switch p {
	case Reduced:
		return "REDUCED"
	case Halted:
		return "HALTED"
	}
	return "NORMAL"
}

// DrawdownController is the kill-switch state machine. Deterioration
// steps NORMAL -> REDUCED -> HALTED as drawdown crosses the soft and hard
// thresholds; recovery runs the same ladder in reverse, one state per
// update, and only when drawdown is back inside the recovery threshold.
// Time passing alone never recovers anything.
type DrawdownController struct {
	Soft         float64 // drawdown fraction entering REDUCED
	Hard         float64 // drawdown fraction entering HALTED
	Recovery     float64 // drawdown fraction at or below which one recovery step happens
	ReducedScale float64 // sizing multiplier while REDUCED

	posture Posture
}

func NewDrawdownController() *DrawdownController {
	return &DrawdownController{
		Soft:         0.05,
		Hard:         0.10,
		Recovery:     0.02,
		ReducedScale: 0.5,
	}
}

func (dc *DrawdownController) Posture() Posture { return dc.posture }

// AllowsEntry reports whether new net-increasing orders may be placed.
// Exits are always allowed.
func (dc *DrawdownController) AllowsEntry() bool { return dc.posture != Halted }

// SizeScale is the multiplier the sizer applies under the current
// posture.
func (dc *DrawdownController) SizeScale() float64 {
	if dc.posture == Reduced {
		return dc.ReducedScale
	}
	return 1
}

// Update recomputes the posture from the latest drawdown. It is called
// once per bar after equity is marked, so the gate the next bar's trades
// see always reflects the most recent close. Worsening may jump straight
// to HALTED; recovery never skips REDUCED.
func (dc *DrawdownController) Update(drawdown float64) Posture {
	switch dc.posture {
	case Normal:
		if drawdown >= dc.Hard {
			dc.posture = Halted
		} else if drawdown >= dc.Soft {
			dc.posture = Reduced
		}
	case Reduced:
		if drawdown >= dc.Hard {
			dc.posture = Halted
		} else if drawdown <= dc.Recovery {
			dc.posture = Normal
		}
	case Halted:
		if drawdown <= dc.Recovery {
			dc.posture = Reduced
		}
	}
	return dc.posture
}
