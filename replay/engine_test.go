package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/macrotrader/broker"
	"github.com/rustyeddy/macrotrader/internal/metrics"
	"github.com/rustyeddy/macrotrader/market"
	"github.com/rustyeddy/macrotrader/pipeline"
	"github.com/rustyeddy/macrotrader/risk"
	"github.com/rustyeddy/macrotrader/strategies"
)

// scriptFeed replays a fixed event slice.
type scriptFeed struct {
	events []market.Event
	idx    int
}

func (f *scriptFeed) Next() (market.Event, bool, error) {
	if f.idx >= len(f.events) {
		return market.Event{}, false, nil
	}
	ev := f.events[f.idx]
	f.idx++
	return ev, true, nil
}

// scriptStrategy proposes a fixed hypothesis on the named bar times and
// never asks for a discretionary exit.
type scriptStrategy struct {
	enterOn []time.Time
	stop    float64
	target  float64
}

func (s *scriptStrategy) Name() string { return "script" }

func (s *scriptStrategy) Hypotheses(bar market.Bar, _ market.Snapshot) []strategies.Hypothesis {
	for _, at := range s.enterOn {
		if bar.Time.Equal(at) {
			return []strategies.Hypothesis{{
				Symbol:    bar.Symbol,
				Direction: market.Long,
				Stop:      s.stop,
				Target:    s.target,
				Reason:    "scripted entry",
			}}
		}
	}
	return nil
}

func (s *scriptStrategy) ShouldExit(strategies.Open, market.Bar, market.Snapshot) (bool, string) {
	return false, ""
}

func day(n int) time.Time {
	return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func barEvent(n int, open, high, low, close float64) market.Event {
	t := day(n)
	snap := market.NewSnapshot(t)
	snap.Price = close
	return market.Event{
		Bar:  market.Bar{Symbol: "SPY", Time: t, Open: open, High: high, Low: low, Close: close},
		Snap: snap,
	}
}

// regimeOnly skips the gate layers so scripted entries reach the risk
// gate; an empty snapshot classifies NEUTRAL, which blocks nothing.
func regimeOnly() *pipeline.Pipeline { return pipeline.New(nil) }

func TestRunRoundTripAtTarget(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95, target: 110}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 101, 111, 100, 108),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	// Risk 1% of 100k with a 5% stop wants 200 shares, the 10% position
	// cap trims that to 100.
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, market.Long, tr.Side)
	assert.Equal(t, 100.0, tr.Quantity)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 110.0, tr.ExitPrice)
	assert.Equal(t, 1000.0, tr.RealizedPL)
	assert.Equal(t, "target reached", tr.ExitReason)
	assert.Equal(t, "NEUTRAL", tr.RegimeAtEntry)
	assert.NotEmpty(t, tr.ID)

	assert.Equal(t, 101000.0, res.FinalEquity)
	assert.Equal(t, res.FinalEquity, res.Cash, "flat after the round trip")
	assert.Equal(t, []market.EquityPoint{
		{Time: day(0), Equity: 100000},
		{Time: day(1), Equity: 101000},
	}, res.Curve)
	assert.Equal(t, Stats{Bars: 2, Hypotheses: 1, Entries: 1, Exits: 1}, res.Stats)
	assert.Zero(t, res.OpenPositions)
}

func TestRunStopWinsWhenBothLevelsInRange(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95, target: 110}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 100, 112, 94, 111), // stop and target both inside the bar
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "stop hit", res.Trades[0].ExitReason)
	assert.Equal(t, 95.0, res.Trades[0].ExitPrice)
	assert.Equal(t, -500.0, res.Trades[0].RealizedPL)
}

func TestRunGapThroughStopFillsAtOpen(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95, target: 110}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 90, 92, 88, 91), // opens well below the stop
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, 90.0, res.Trades[0].ExitPrice, "untradable stop level fills at the open")
	assert.Equal(t, -1000.0, res.Trades[0].RealizedPL)
}

func TestRunKillSwitchBlocksEntriesWhenHalted(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0), day(2)}, stop: 90}

	sizer := risk.NewSizer()
	sizer.RiskPerTrade = 0.05
	sizer.MaxPositionFrac = 1.0
	exposure := risk.NewExposureManager()
	exposure.Caps.Position = 1.0

	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, sizer, exposure, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100), // enter 500 shares
		barEvent(1, 70, 72, 65, 70),   // gap through the stop: -15k, 15% drawdown
		barEvent(2, 70, 71, 69, 70),   // re-entry attempt must be refused
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, -15000.0, res.Trades[0].RealizedPL)
	assert.Equal(t, 85000.0, res.FinalEquity)
	assert.InDelta(t, 0.15, res.MaxDrawdown, 1e-9)
	assert.Equal(t, risk.Halted, res.Posture)
	assert.Equal(t, 1, res.Stats.Entries)
	assert.Equal(t, 1, res.Stats.Rejected, "entry while HALTED is rejected, not sized down")
	assert.Zero(t, res.OpenPositions)
}

func TestRunExposureCapRejects(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95}
	exposure := risk.NewExposureManager()
	exposure.Caps.Total = 0.05 // below the sizer's 10% position notional

	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, exposure, nil, nil)

	feed := &scriptFeed{events: []market.Event{barEvent(0, 99, 101, 98, 100)}}
	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Stats.Rejected)
	assert.Zero(t, res.Stats.Entries)
	assert.Equal(t, 100000.0, res.FinalEquity, "nothing was mutated by the rejection")
}

func TestRunCloseAtEnd(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 50}
	eng := New(Options{InitialCash: 100000, CloseAtEnd: true}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 101, 106, 100, 105),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "end of replay", tr.ExitReason)
	assert.Equal(t, 105.0, tr.ExitPrice, "closed at the last mark")
	assert.True(t, tr.ExitTime.Equal(day(1)))
	assert.Zero(t, res.OpenPositions)
}

func TestRunHoldsOpenPositionsWithoutCloseAtEnd(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 50}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 101, 106, 100, 105),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.OpenPositions)

	// Quantity: 1% risk with a 50% stop wants 2000 notional, 20 shares.
	// Equity = cash + marked position.
	assert.Equal(t, 100000.0+20*5, res.FinalEquity)
}

func TestRunDeterminism(t *testing.T) {
	t.Parallel()

	events := []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 101, 106, 100, 105),
		barEvent(2, 105, 111, 104, 110),
		barEvent(3, 110, 112, 103, 104),
	}

	run := func() *Result {
		strat := &scriptStrategy{enterOn: []time.Time{day(0), day(2)}, stop: 95, target: 110}
		eng := New(Options{InitialCash: 100000, CloseAtEnd: true}, regimeOnly(), strat, nil, nil, nil, nil)
		res, err := eng.Run(context.Background(), &scriptFeed{events: events})
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()

	assert.Equal(t, a.Curve, b.Curve)
	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, a.FinalEquity, b.FinalEquity)
	assert.Equal(t, a.MaxDrawdown, b.MaxDrawdown)

	// Trade ids are freshly generated each run; everything else must match.
	require.Equal(t, len(a.Trades), len(b.Trades))
	for i := range a.Trades {
		ta, tb := a.Trades[i], b.Trades[i]
		ta.ID, tb.ID = "", ""
		assert.Equal(t, ta, tb)
	}
}

func TestRunGapPolicyHold(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 50}
	eng := New(Options{InitialCash: 100000, GapPolicy: GapHold}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		{Gap: &market.DataGap{Symbol: "SPY", From: day(0), To: day(3), Missing: 2, Kind: "suspicious"}},
		barEvent(3, 101, 106, 100, 105),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Gaps)
	assert.Empty(t, res.Trades, "hold keeps the position through the gap")
	assert.Equal(t, 1, res.OpenPositions)
}

func TestRunGapPolicyFlatten(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 50}
	eng := New(Options{InitialCash: 100000, GapPolicy: GapFlatten}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		{Gap: &market.DataGap{Symbol: "SPY", From: day(0), To: day(3), Missing: 2, Kind: "suspicious"}},
		barEvent(3, 101, 106, 100, 105),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "data gap", res.Trades[0].ExitReason)
	assert.Equal(t, 100.0, res.Trades[0].ExitPrice, "flattened at the last mark")
	assert.Zero(t, res.OpenPositions)
}

func TestRunGapPolicyHalt(t *testing.T) {
	t.Parallel()

	eng := New(Options{InitialCash: 100000, GapPolicy: GapHalt}, regimeOnly(), strategies.Noop{}, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		{Gap: &market.DataGap{Symbol: "SPY", From: day(0), To: day(3), Missing: 2, Kind: "suspicious"}},
		barEvent(3, 101, 106, 100, 105),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.Error(t, err)

	var gap *market.DataGap
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, 2, gap.Missing)
	assert.Equal(t, 1, res.Stats.Bars, "the run stopped at the gap")
}

func TestRunOutOfOrderBarsAbort(t *testing.T) {
	t.Parallel()

	eng := New(Options{InitialCash: 100000}, regimeOnly(), strategies.Noop{}, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(1, 99, 101, 98, 100),
		barEvent(0, 99, 101, 98, 100),
	}}

	_, err := eng.Run(context.Background(), feed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestRunObservesCancellation(t *testing.T) {
	t.Parallel()

	eng := New(Options{InitialCash: 100000}, regimeOnly(), strategies.Noop{}, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Run(ctx, &scriptFeed{events: []market.Event{barEvent(0, 99, 101, 98, 100)}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Stats.Bars, "nothing was consumed after cancellation")
}

func TestRunCommissionAndSlippageFlow(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95, target: 110}
	opts := Options{
		InitialCash: 100000,
		Fill:        broker.FillModel{SlippageBPS: 5, CommissionRate: 0.0005, MinCommission: 1},
	}
	eng := New(opts, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 101, 111, 100, 108),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.InDelta(t, 100.05, tr.EntryPrice, 1e-9, "buys pay the slippage")
	assert.InDelta(t, 110*(1-0.0005), tr.ExitPrice, 1e-9, "sells give it back")
	assert.Less(t, tr.RealizedPL, 1000.0, "frictions eat into the ideal result")
	assert.Greater(t, tr.RealizedPL, 900.0)

	// Realized P&L nets the closing commission; the entry commission was
	// charged to cash when the position opened.
	entryCommission := 0.0005 * 100 * 100.05
	assert.InDelta(t, 100000+tr.RealizedPL-entryCommission, res.FinalEquity, 1e-9)
}

// pricingFeed keeps the paper broker's price book current with each
// bar, the way the paper command's feed loop does.
type pricingFeed struct {
	feed  *scriptFeed
	paper *broker.Paper
}

func (p pricingFeed) Next() (market.Event, bool, error) {
	ev, ok, err := p.feed.Next()
	if ok && err == nil && ev.Gap == nil {
		p.paper.SetPrice(ev.Bar.Symbol, ev.Bar.Close, ev.Bar.Time)
	}
	return ev, ok, err
}

func TestRunExecutesThroughPaperBroker(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95, target: 130}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	m := metrics.New()
	paper := broker.NewPaper(broker.FillModel{}, m)
	eng.SetMetrics(m)
	eng.SetBroker(paper)

	feed := pricingFeed{paper: paper, feed: &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 97, 98, 94, 96), // low touches the stop, closes above it
	}}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	// The adapter fills at its book price, the bar close, not at the
	// engine's stop reference.
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 96.0, tr.ExitPrice)
	assert.Equal(t, "stop hit", tr.ExitReason)
	assert.Equal(t, -400.0, tr.RealizedPL)
	assert.Equal(t, 99600.0, res.FinalEquity)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersSubmitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FillsTotal))
	assert.Zero(t, testutil.ToFloat64(m.OrdersRejected))
}

// flakyBroker accepts the first accept orders at a fixed price and
// rejects the rest.
type flakyBroker struct {
	accept int
	price  float64
	orders []broker.Order
}

func (b *flakyBroker) Submit(_ context.Context, o broker.Order) (broker.Fill, error) {
	b.orders = append(b.orders, o)
	if len(b.orders) > b.accept {
		return broker.Fill{}, &broker.Rejection{Order: o, Reason: "throttled"}
	}
	return broker.Fill{Order: o, Price: b.price, Quantity: o.Quantity}, nil
}

func TestRunBrokerEntryRejectionLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	bk := &flakyBroker{accept: 0}
	eng.SetBroker(bk)

	res, err := eng.Run(context.Background(), &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
	}})
	require.NoError(t, err)

	require.Len(t, bk.orders, 1)
	o := bk.orders[0]
	assert.Equal(t, "SPY", o.Symbol)
	assert.Equal(t, market.Long, o.Side)
	assert.Equal(t, 100.0, o.Quantity)
	assert.Equal(t, broker.Market, o.Kind)

	assert.Empty(t, res.Trades)
	assert.Zero(t, res.Stats.Entries)
	assert.Equal(t, 1, res.Stats.Rejected)
	assert.Equal(t, 100000.0, res.FinalEquity, "a rejected order changes nothing")
}

func TestRunBrokerExitRejectionKeepsPosition(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	bk := &flakyBroker{accept: 1, price: 100}
	eng.SetBroker(bk)

	res, err := eng.Run(context.Background(), &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 97, 98, 94, 96), // stop touched, but the close is refused
	}})
	require.NoError(t, err)

	require.Len(t, bk.orders, 2, "one entry, one refused close")
	assert.Equal(t, market.Short, bk.orders[1].Side, "closing a long sells")

	assert.Empty(t, res.Trades)
	assert.Zero(t, res.Stats.Exits)
	assert.Equal(t, 1, res.OpenPositions, "the position survives the refusal")
}

func TestResultReport(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{enterOn: []time.Time{day(0)}, stop: 95, target: 110}
	eng := New(Options{InitialCash: 100000}, regimeOnly(), strat, nil, nil, nil, nil)

	feed := &scriptFeed{events: []market.Event{
		barEvent(0, 99, 101, 98, 100),
		barEvent(1, 101, 111, 100, 108),
	}}

	res, err := eng.Run(context.Background(), feed)
	require.NoError(t, err)

	rep := res.Report(0, 252)
	assert.Equal(t, 1, rep.Trades)
	assert.Equal(t, 1, rep.LongTrades)
	assert.InDelta(t, 1000.0, rep.NetProfit, 1e-9)
	require.NotNil(t, rep.WinRate)
	assert.Equal(t, 1.0, *rep.WinRate)
	require.NotNil(t, rep.ProfitFactor)
	assert.True(t, rep.ProfitFactor.Infinite, "no losing trades in the sample")
}
