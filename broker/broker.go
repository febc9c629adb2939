// Package broker defines the execution boundary: order and fill types,
// the deterministic fill model shared by backtest and paper modes, and
// the Broker interface an execution adapter implements.
package broker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/macrotrader/market"
)

// OrderKind selects how an order is priced.
type OrderKind string

const (
	Market OrderKind = "MARKET"
	Limit  OrderKind = "LIMIT"
	Stop   OrderKind = "STOP"
)

// Order is an intent to change a position. ClientID is assigned at the
// boundary, not by the core.
type Order struct {
	ClientID   string
	Symbol     string
	Side       market.Side
	Quantity   float64 // always positive; Side carries direction
	Kind       OrderKind
	LimitPrice float64
	StopPrice  float64
}

// Fill is a confirmed execution.
type Fill struct {
	Order      Order
	Price      float64
	Quantity   float64
	Commission float64
	Slippage   float64 // signed price adjustment that was applied
	Time       time.Time
}

// Rejection is the adapter declining an order. It is an error so callers
// can extract it with errors.As, but the account is never rolled back
// over one: nothing was mutated before confirmation.
type Rejection struct {
	Order  Order
	Reason string
	Time   time.Time
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("order %s rejected: %s", r.Order.ClientID, r.Reason)
}

// Broker is the execution adapter capability. A *Rejection error means
// "no position change"; any other error is a transport fault.
type Broker interface {
	Submit(ctx context.Context, o Order) (Fill, error)
}

// FillModel is the deterministic slippage and commission schedule. The
// backtest engine and the paper broker share it so the two modes price
// identically.
type FillModel struct {
	SlippageBPS    float64 // basis points of the reference price
	CommissionRate float64 // fraction of notional
	MinCommission  float64
}

// Fill prices an aggressive order against the reference price: buys pay
// the slippage up, sells give it back. For exits callers pass the
// closing side (the inverse of the position side).
func (m FillModel) Fill(ref float64, side market.Side, qty float64) (price, commission, slip float64) {
	slip = m.SlippageBPS / 10000 * ref * float64(side)
	price = ref + slip
	notional := math.Abs(qty) * price
	commission = m.CommissionRate * notional
	if commission < m.MinCommission {
		commission = m.MinCommission
	}
	return price, commission, slip
}
