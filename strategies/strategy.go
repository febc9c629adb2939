// Package strategies supplies directional hypotheses to the replay
// engine. The engine itself is strategy-agnostic: it evaluates whatever
// hypotheses the configured strategy produces and asks it whether open
// positions should be closed.
package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/macrotrader/market"
)

// Hypothesis is one candidate trade for the current bar: a direction plus
// the stop and target the strategy wants. The decision pipeline and risk
// gates decide whether it becomes an order.
type Hypothesis struct {
	Symbol    string
	Direction market.Side
	Stop      float64
	Target    float64
	Reason    string
}

// Open describes a position the strategy previously opened, as the engine
// sees it when asking for an exit.
type Open struct {
	Symbol     string
	Side       market.Side
	EntryPrice float64
	Stop       float64
	Target     float64
}

// Strategy produces zero or more hypotheses per bar and decides when to
// leave. Both calls must be pure over their inputs so replays stay
// deterministic.
type Strategy interface {
	Name() string

	// Hypotheses proposes entries for this bar. An empty result means no
	// setup, which the pipeline records as "no signal".
	Hypotheses(bar market.Bar, snap market.Snapshot) []Hypothesis

	// ShouldExit reports whether an open position should be closed on
	// this bar's close, with the reason. Stop and target levels are
	// checked by the engine against the bar range before this is asked.
	ShouldExit(pos Open, bar market.Bar, snap market.Snapshot) (bool, string)
}

// ByName constructs a registered strategy.
func ByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "trend":
		return NewTrend(), nil
	case "noop", "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the registered strategy names.
func Names() []string {
	return []string{"trend", "noop"}
}
