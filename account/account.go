// Package account owns the mutable state of one simulated account: cash,
// open positions, and the equity/peak/drawdown bookkeeping derived from
// them. The replay engine is the only writer; everything else reads.
package account

import (
	"fmt"
	"math"
	"sort"
)

// Position is one open holding. Quantity is signed: positive long,
// negative short. Created on the first fill for a symbol and removed when
// quantity returns to zero.
type Position struct {
	Symbol       string
	Quantity     float64
	AveragePrice float64
	MarkPrice    float64
}

// Notional is the absolute market value of the position at its mark.
func (p Position) Notional() float64 {
	return math.Abs(p.Quantity) * p.MarkPrice
}

// UnrealizedPL is the open profit at the current mark.
func (p Position) UnrealizedPL() float64 {
	return (p.MarkPrice - p.AveragePrice) * p.Quantity
}

// Account is the single mutable aggregate of a run. It is not safe for
// concurrent use; the replay loop is its single writer.
type Account struct {
	cash      float64
	positions map[string]*Position

	equity   float64
	peak     float64
	drawdown float64 // fraction of peak, >= 0
}

func New(initialCash float64) *Account {
	return &Account{
		cash:      initialCash,
		positions: make(map[string]*Position),
		equity:    initialCash,
		peak:      initialCash,
	}
}

func (a *Account) Cash() float64   { return a.cash }
func (a *Account) Equity() float64 { return a.equity }

// PeakEquity never decreases.
func (a *Account) PeakEquity() float64 { return a.peak }

// Drawdown is max(0, (peak-equity)/peak), refreshed by MarkToMarket.
func (a *Account) Drawdown() float64 { return a.drawdown }

// Position returns a copy of the open position for symbol.
func (a *Account) Position(symbol string) (Position, bool) {
	p, ok := a.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions, ordered by symbol so
// iteration order never depends on map layout.
func (a *Account) Positions() []Position {
	out := make([]Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OpenPositions reports how many symbols currently have a position.
func (a *Account) OpenPositions() int { return len(a.positions) }

// Apply books a fill: quantity is the signed change (buy positive, sell
// negative) at price, with commission charged to cash. It returns the
// realized profit of any closed quantity, net of this fill's commission.
// Flipping through zero in one fill is not supported; the replay engine
// always closes before reopening.
func (a *Account) Apply(symbol string, quantity, price, commission float64) (realized float64, err error) {
	if quantity == 0 {
		return 0, fmt.Errorf("account: zero-quantity fill for %s", symbol)
	}

	p := a.positions[symbol]
	if p == nil {
		p = &Position{Symbol: symbol, AveragePrice: price, MarkPrice: price}
		a.positions[symbol] = p
	}

	switch {
	case p.Quantity == 0 || sameSign(p.Quantity, quantity):
		// Opening or adding: weighted-average entry.
		total := p.Quantity + quantity
		p.AveragePrice = (p.AveragePrice*p.Quantity + price*quantity) / total
		p.Quantity = total
	default:
		if math.Abs(quantity) > math.Abs(p.Quantity) {
			return 0, fmt.Errorf("account: fill of %g would flip %s through zero (open %g)",
				quantity, symbol, p.Quantity)
		}
		// Reducing or closing: realize against average entry.
		closed := -quantity // signed like the position
		realized = (price - p.AveragePrice) * closed
		p.Quantity += quantity
		if p.Quantity == 0 {
			delete(a.positions, symbol)
		}
	}

	if _, ok := a.positions[symbol]; ok {
		p.MarkPrice = price
	}

	a.cash += -quantity*price - commission
	realized -= commission
	return realized, nil
}

// Mark updates the mark price for symbol ahead of MarkToMarket. Symbols
// with no open position are ignored.
func (a *Account) Mark(symbol string, price float64) {
	if p, ok := a.positions[symbol]; ok {
		p.MarkPrice = price
	}
}

// MarkToMarket recomputes equity from cash plus position values at their
// current marks, then rolls the peak and drawdown forward.
func (a *Account) MarkToMarket() float64 {
	eq := a.cash
	for _, p := range a.positions {
		eq += p.Quantity * p.MarkPrice
	}
	a.equity = eq
	if eq > a.peak {
		a.peak = eq
	}
	a.drawdown = 0
	if a.peak > 0 && eq < a.peak {
		a.drawdown = (a.peak - eq) / a.peak
	}
	return eq
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
