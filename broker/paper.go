package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/macrotrader/internal/metrics"
)

// Paper is an in-process execution adapter. It fills market orders
// synchronously against the latest known price using the shared
// FillModel, assigns client order ids, and counts traffic in the metrics
// set. Prices come from SetPrice, normally fed by the replay clock.
type Paper struct {
	mu     sync.Mutex
	prices map[string]pricePoint

	Model   FillModel
	Metrics *metrics.Set
	Log     zerolog.Logger
}

type pricePoint struct {
	price float64
	time  time.Time
}

func NewPaper(model FillModel, m *metrics.Set) *Paper {
	return &Paper{
		prices:  make(map[string]pricePoint),
		Model:   model,
		Metrics: m,
		Log:     zerolog.Nop(),
	}
}

// SetPrice records the latest reference price for a symbol.
func (p *Paper) SetPrice(symbol string, price float64, at time.Time) {
	p.mu.Lock()
	p.prices[symbol] = pricePoint{price: price, time: at}
	p.mu.Unlock()
}

// Submit fills market orders at the latest price plus the model's
// slippage. Limit and stop orders are not simulated here; they come back
// as rejections so the caller keeps its no-position-change semantics.
func (p *Paper) Submit(ctx context.Context, o Order) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}

	if o.ClientID == "" {
		o.ClientID = uuid.NewString()
	}
	p.count(submitted)

	p.mu.Lock()
	pp, ok := p.prices[o.Symbol]
	p.mu.Unlock()

	if o.Kind != Market {
		return p.reject(o, "only market orders are supported in paper mode")
	}
	if o.Quantity <= 0 {
		return p.reject(o, "quantity must be positive")
	}
	if !ok {
		return p.reject(o, "no price for "+o.Symbol)
	}

	price, commission, slip := p.Model.Fill(pp.price, o.Side, o.Quantity)
	fill := Fill{
		Order:      o,
		Price:      price,
		Quantity:   o.Quantity,
		Commission: commission,
		Slippage:   slip,
		Time:       pp.time,
	}

	p.count(filled)
	p.Log.Debug().
		Str("order", o.ClientID).
		Str("symbol", o.Symbol).
		Str("side", o.Side.String()).
		Float64("price", price).
		Float64("qty", o.Quantity).
		Msg("paper fill")
	return fill, nil
}

func (p *Paper) reject(o Order, reason string) (Fill, error) {
	p.count(rejected)
	p.Log.Debug().Str("order", o.ClientID).Str("reason", reason).Msg("paper reject")
	return Fill{}, &Rejection{Order: o, Reason: reason, Time: time.Now().UTC()}
}

type counter int

const (
	submitted counter = iota
	rejected
	filled
)

func (p *Paper) count(c counter) {
	m := p.Metrics
	if m == nil {
		return
	}
	switch c {
	case submitted:
		m.OrdersSubmitted.Inc()
	case rejected:
		m.OrdersRejected.Inc()
	case filled:
		m.FillsTotal.Inc()
	}
}
