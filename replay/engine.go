// Package replay drives the simulation: it walks a feed in timestamp
// order, runs each hypothesis through the decision pipeline and the risk
// gates, simulates fills, and maintains the account, trade log, and
// equity curve. The engine is the sole writer of account state; one bar
// commits fully before the next is read.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/macrotrader/account"
	"github.com/rustyeddy/macrotrader/broker"
	"github.com/rustyeddy/macrotrader/internal/metrics"
	"github.com/rustyeddy/macrotrader/journal"
	"github.com/rustyeddy/macrotrader/layers"
	"github.com/rustyeddy/macrotrader/market"
	"github.com/rustyeddy/macrotrader/pipeline"
	"github.com/rustyeddy/macrotrader/pkg/id"
	"github.com/rustyeddy/macrotrader/risk"
	"github.com/rustyeddy/macrotrader/strategies"
)

// GapPolicy decides what the engine does at a DataGap marker.
type GapPolicy string

const (
	GapHold    GapPolicy = "hold"    // keep positions, resume after the gap
	GapFlatten GapPolicy = "flatten" // close everything at last marks, then resume
	GapHalt    GapPolicy = "halt"    // stop the run with the gap as the error
)

// Options are the engine's replay parameters. Zero-value fields fall back
// to the defaults noted on each.
type Options struct {
	InitialCash float64          // default 100000
	Fill        broker.FillModel // slippage and commission schedule
	GapPolicy   GapPolicy        // default hold
	CloseAtEnd  bool             // close remaining positions on the last bar
}

// Engine wires the pipeline, risk gates, and strategy over one account.
// Construct with New; the zero value is not usable.
type Engine struct {
	opts     Options
	pipe     *pipeline.Pipeline
	strat    strategies.Strategy
	sizer    *risk.Sizer
	exposure *risk.ExposureManager
	drawdown *risk.DrawdownController
	jrnl     journal.Journal
	log      zerolog.Logger
	metrics  *metrics.Set
	exec     broker.Broker

	acct   *account.Account
	open   map[string]*openTrade
	trades []market.Trade
	curve  []market.EquityPoint

	maxDrawdown float64
	lastBarTime time.Time

	// Realized-trade aggregates feeding the Kelly sizer.
	wins, losses        int
	grossWin, grossLoss float64

	stats Stats
}

type openTrade struct {
	id          string
	symbol      string
	side        market.Side
	quantity    float64
	entryPrice  float64
	entryTime   time.Time
	stop        float64
	target      float64
	regime      string
	entryReason string
}

// Stats counts what the run saw, for the end-of-run summary.
type Stats struct {
	Bars       int
	Gaps       int
	Hypotheses int
	Rejected   int
	Entries    int
	Exits      int
}

// New builds an engine. Nil collaborators get working defaults: the
// standard pipeline, the trend strategy, default risk gates, a Nop
// journal, and a silent logger.
func New(opts Options, pipe *pipeline.Pipeline, strat strategies.Strategy,
	sizer *risk.Sizer, exposure *risk.ExposureManager, dd *risk.DrawdownController,
	jrnl journal.Journal) *Engine {

	if opts.InitialCash <= 0 {
		opts.InitialCash = 100000
	}
	if opts.GapPolicy == "" {
		opts.GapPolicy = GapHold
	}
	if pipe == nil {
		pipe = pipeline.Default()
	}
	if strat == nil {
		strat = strategies.NewTrend()
	}
	if sizer == nil {
		sizer = risk.NewSizer()
	}
	if exposure == nil {
		exposure = risk.NewExposureManager()
	}
	if dd == nil {
		dd = risk.NewDrawdownController()
	}
	if jrnl == nil {
		jrnl = journal.Nop{}
	}

	return &Engine{
		opts:     opts,
		pipe:     pipe,
		strat:    strat,
		sizer:    sizer,
		exposure: exposure,
		drawdown: dd,
		jrnl:     jrnl,
		log:      zerolog.Nop(),
		acct:     account.New(opts.InitialCash),
		open:     make(map[string]*openTrade),
	}
}

// SetLogger replaces the engine's logger (default silent).
func (e *Engine) SetLogger(l zerolog.Logger) { e.log = l }

// SetMetrics attaches a metrics set, used by the paper command.
func (e *Engine) SetMetrics(m *metrics.Set) { e.metrics = m }

// SetBroker routes entry and exit executions through an execution
// adapter instead of the internal fill model. A *broker.Rejection from
// the adapter means no position change; any other Submit error aborts
// the run.
func (e *Engine) SetBroker(b broker.Broker) { e.exec = b }

// Account exposes the account for read-only inspection.
func (e *Engine) Account() *account.Account { return e.acct }

// Posture is the drawdown controller's current state.
func (e *Engine) Posture() risk.Posture { return e.drawdown.Posture() }

// Run consumes the feed to exhaustion. Cancellation is observed between
// bars only, so every processed bar is fully committed. Non-monotonic
// input aborts: reproducibility cannot be guaranteed past it.
func (e *Engine) Run(ctx context.Context, feed market.Feed) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return e.result(), err
		}

		ev, ok, err := feed.Next()
		if err != nil {
			return e.result(), fmt.Errorf("feed: %w", err)
		}
		if !ok {
			break
		}

		if ev.Gap != nil {
			if err := e.handleGap(ctx, ev.Gap); err != nil {
				return e.result(), err
			}
			continue
		}

		if !e.lastBarTime.IsZero() && ev.Bar.Time.Before(e.lastBarTime) {
			return e.result(), fmt.Errorf("bars out of order: %s after %s",
				ev.Bar.Time.Format(time.RFC3339), e.lastBarTime.Format(time.RFC3339))
		}

		if err := e.processBar(ctx, ev.Bar, ev.Snap); err != nil {
			return e.result(), err
		}
		e.lastBarTime = ev.Bar.Time
	}

	if e.opts.CloseAtEnd {
		for _, sym := range openSymbols(e.open) {
			ot := e.open[sym]
			if _, err := e.closeTrade(ctx, ot, ot.markPrice(e.acct), e.lastBarTime, "end of replay"); err != nil {
				return e.result(), err
			}
		}
		e.acct.MarkToMarket()
	}

	return e.result(), nil
}

// processBar is the per-bar state machine: exits, then entries, then the
// account mark, drawdown update, and equity append. Everything in here
// commits before the next bar is read.
func (e *Engine) processBar(ctx context.Context, bar market.Bar, snap market.Snapshot) error {
	e.stats.Bars++
	if e.metrics != nil {
		e.metrics.BarsProcessed.Inc()
	}

	if err := e.checkExits(ctx, bar, snap); err != nil {
		return err
	}
	if err := e.tryEntries(ctx, bar, snap); err != nil {
		return err
	}

	e.acct.Mark(bar.Symbol, bar.Close)
	eq := e.acct.MarkToMarket()
	dd := e.acct.Drawdown()
	if dd > e.maxDrawdown {
		e.maxDrawdown = dd
	}
	posture := e.drawdown.Update(dd)

	pt := market.EquityPoint{Time: bar.Time, Equity: eq}
	e.curve = append(e.curve, pt)
	if err := e.jrnl.RecordEquity(pt); err != nil {
		return fmt.Errorf("journal equity: %w", err)
	}

	if e.metrics != nil {
		e.metrics.Equity.Set(eq)
		e.metrics.Drawdown.Set(dd)
		e.metrics.Posture.Set(float64(posture))
	}

	e.log.Debug().
		Time("bar", bar.Time).
		Str("symbol", bar.Symbol).
		Float64("close", bar.Close).
		Float64("equity", eq).
		Float64("drawdown", dd).
		Stringer("posture", posture).
		Msg("bar committed")
	return nil
}

// checkExits closes the bar symbol's open position when its stop or
// target is inside the bar's range, or when the strategy wants out at the
// close. The stop is checked first: when both levels sit inside one bar
// the pessimistic outcome wins.
func (e *Engine) checkExits(ctx context.Context, bar market.Bar, snap market.Snapshot) error {
	ot, ok := e.open[bar.Symbol]
	if !ok {
		return nil
	}

	if ref, hit := stopRef(ot, bar); hit {
		return e.exit(ctx, ot, ref, bar.Time, "stop hit")
	}
	if ref, hit := targetRef(ot, bar); hit {
		return e.exit(ctx, ot, ref, bar.Time, "target reached")
	}

	pos := strategies.Open{
		Symbol:     ot.symbol,
		Side:       ot.side,
		EntryPrice: ot.entryPrice,
		Stop:       ot.stop,
		Target:     ot.target,
	}
	if exit, reason := e.strat.ShouldExit(pos, bar, snap); exit {
		return e.exit(ctx, ot, bar.Close, bar.Time, reason)
	}
	return nil
}

// exit closes a position for the stats-counted exit reasons. A rejected
// close leaves the position open and is not counted.
func (e *Engine) exit(ctx context.Context, ot *openTrade, ref float64, at time.Time, reason string) error {
	closed, err := e.closeTrade(ctx, ot, ref, at, reason)
	if closed {
		e.stats.Exits++
	}
	return err
}

// stopRef reports whether the bar's range touched the stop and at what
// reference price the exit fills. A bar that gaps through the stop fills
// at its open, not at the untradable stop level.
func stopRef(ot *openTrade, bar market.Bar) (float64, bool) {
	if ot.stop <= 0 {
		return 0, false
	}
	switch ot.side {
	case market.Long:
		if bar.Low <= ot.stop {
			if bar.Open < ot.stop {
				return bar.Open, true
			}
			return ot.stop, true
		}
	case market.Short:
		if bar.High >= ot.stop {
			if bar.Open > ot.stop {
				return bar.Open, true
			}
			return ot.stop, true
		}
	}
	return 0, false
}

func targetRef(ot *openTrade, bar market.Bar) (float64, bool) {
	if ot.target <= 0 {
		return 0, false
	}
	switch ot.side {
	case market.Long:
		if bar.High >= ot.target {
			if bar.Open > ot.target {
				return bar.Open, true
			}
			return ot.target, true
		}
	case market.Short:
		if bar.Low <= ot.target {
			if bar.Open < ot.target {
				return bar.Open, true
			}
			return ot.target, true
		}
	}
	return 0, false
}

// closeTrade fills the closing order, books the realized result, and
// appends the round trip to the trade log and journal. It reports false
// when the execution adapter rejected the close; the position stays as
// it was.
func (e *Engine) closeTrade(ctx context.Context, ot *openTrade, ref float64, at time.Time, reason string) (bool, error) {
	closeSide := market.Side(-ot.side)
	fill, err := e.execute(ctx, ot.symbol, closeSide, ot.quantity, ref, at)
	if err != nil {
		var rej *broker.Rejection
		if errors.As(err, &rej) {
			e.log.Warn().
				Str("symbol", ot.symbol).
				Str("reason", rej.Reason).
				Msg("close order rejected, position kept")
			return false, nil
		}
		return false, fmt.Errorf("close %s: %w", ot.symbol, err)
	}

	realized, err := e.acct.Apply(ot.symbol, -float64(ot.side)*ot.quantity, fill.Price, fill.Commission)
	if err != nil {
		return false, fmt.Errorf("close %s: %w", ot.symbol, err)
	}
	delete(e.open, ot.symbol)

	t := market.Trade{
		ID:            ot.id,
		Symbol:        ot.symbol,
		Side:          ot.side,
		Quantity:      ot.quantity,
		EntryPrice:    ot.entryPrice,
		EntryTime:     ot.entryTime,
		ExitPrice:     fill.Price,
		ExitTime:      at,
		RealizedPL:    realized,
		RegimeAtEntry: ot.regime,
		EntryReason:   ot.entryReason,
		ExitReason:    reason,
	}
	e.trades = append(e.trades, t)
	e.noteRealized(realized)
	if err := e.jrnl.RecordTrade(t); err != nil {
		return false, fmt.Errorf("journal trade: %w", err)
	}
	if e.metrics != nil {
		e.metrics.TradesClosed.Inc()
	}

	e.log.Info().
		Str("trade", t.ID).
		Str("symbol", t.Symbol).
		Stringer("side", t.Side).
		Float64("pl", realized).
		Str("reason", reason).
		Msg("trade closed")
	return true, nil
}

// execute obtains a fill: through the attached execution adapter when
// one is set, otherwise straight from the fill model at the reference
// price. The adapter path lets the paper broker price the order off its
// own book; a *broker.Rejection passes through unwrapped so callers can
// treat it as no-position-change.
func (e *Engine) execute(ctx context.Context, symbol string, side market.Side, qty, ref float64, at time.Time) (broker.Fill, error) {
	if e.exec != nil {
		return e.exec.Submit(ctx, broker.Order{
			Symbol:   symbol,
			Side:     side,
			Quantity: qty,
			Kind:     broker.Market,
		})
	}
	price, commission, slip := e.opts.Fill.Fill(ref, side, qty)
	return broker.Fill{
		Price:      price,
		Quantity:   qty,
		Commission: commission,
		Slippage:   slip,
		Time:       at,
	}, nil
}

// tryEntries runs each of the strategy's hypotheses through the decision
// pipeline, then the risk gate: kill switch, sizing, exposure, cash. Any
// failing gate drops the candidate with its reason on the trace.
func (e *Engine) tryEntries(ctx context.Context, bar market.Bar, snap market.Snapshot) error {
	for _, h := range e.strat.Hypotheses(bar, snap) {
		e.stats.Hypotheses++

		d := e.pipe.Evaluate(h.Symbol, h.Direction, snap)
		if !d.Approved {
			e.rejected(d, h)
			continue
		}

		if !e.drawdown.AllowsEntry() {
			d.Approved = false
			d.Verdicts = append(d.Verdicts, verdict("risk", false, "kill switch: risk posture HALTED"))
			e.rejected(d, h)
			continue
		}

		res, err := e.sizer.Size(risk.Inputs{
			Equity:      e.acct.Equity(),
			EntryPrice:  bar.Close,
			StopPrice:   h.Stop,
			RiskScale:   e.drawdown.SizeScale(),
			Trades:      e.wins + e.losses,
			WinRate:     e.winRate(),
			PayoffRatio: e.payoffRatio(),
		})
		if err != nil {
			d.Approved = false
			d.Verdicts = append(d.Verdicts, verdict("risk", false, err.Error()))
			e.rejected(d, h)
			continue
		}

		if v := e.exposure.CanAdmit(risk.Candidate{Symbol: h.Symbol, Notional: res.Notional}, e.acct); v != nil {
			d.Approved = false
			d.Verdicts = append(d.Verdicts, verdict("risk", false, v.Msg))
			e.rejected(d, h)
			continue
		}

		price, commission, _ := e.opts.Fill.Fill(bar.Close, h.Direction, res.Quantity)
		if cost := res.Quantity*price + commission; cost > e.acct.Cash() {
			d.Approved = false
			d.Verdicts = append(d.Verdicts, verdict("risk", false,
				fmt.Sprintf("insufficient cash: need %.2f, have %.2f", cost, e.acct.Cash())))
			e.rejected(d, h)
			continue
		}

		fill, err := e.execute(ctx, h.Symbol, h.Direction, res.Quantity, bar.Close, bar.Time)
		if err != nil {
			var rej *broker.Rejection
			if errors.As(err, &rej) {
				d.Approved = false
				d.Verdicts = append(d.Verdicts, verdict("risk", false, "order rejected: "+rej.Reason))
				e.rejected(d, h)
				continue
			}
			return fmt.Errorf("submit %s: %w", h.Symbol, err)
		}

		if _, err := e.acct.Apply(h.Symbol, float64(h.Direction)*fill.Quantity, fill.Price, fill.Commission); err != nil {
			return fmt.Errorf("open %s: %w", h.Symbol, err)
		}

		e.open[h.Symbol] = &openTrade{
			id:          id.New(),
			symbol:      h.Symbol,
			side:        h.Direction,
			quantity:    fill.Quantity,
			entryPrice:  fill.Price,
			entryTime:   bar.Time,
			stop:        h.Stop,
			target:      h.Target,
			regime:      string(d.Regime.Label),
			entryReason: h.Reason,
		}
		e.stats.Entries++

		e.log.Info().
			Str("symbol", h.Symbol).
			Stringer("side", h.Direction).
			Float64("qty", fill.Quantity).
			Float64("price", fill.Price).
			Str("regime", string(d.Regime.Label)).
			Str("reason", h.Reason).
			Msg("trade opened")
	}
	return nil
}

// handleGap applies the configured gap policy. Hold keeps everything as
// it stands; flatten closes every open position at its last mark; halt
// stops the run with the gap as the error.
func (e *Engine) handleGap(ctx context.Context, gap *market.DataGap) error {
	e.stats.Gaps++
	e.log.Warn().
		Str("symbol", gap.Symbol).
		Int("missing", gap.Missing).
		Str("kind", gap.Kind).
		Msg("data gap")

	switch e.opts.GapPolicy {
	case GapHold:
		return nil
	case GapFlatten:
		for _, sym := range openSymbols(e.open) {
			ot := e.open[sym]
			if _, err := e.closeTrade(ctx, ot, ot.markPrice(e.acct), gap.From, "data gap"); err != nil {
				return err
			}
		}
		e.acct.MarkToMarket()
		return nil
	case GapHalt:
		return fmt.Errorf("replay halted: %w", gap)
	}
	return fmt.Errorf("unknown gap policy %q", e.opts.GapPolicy)
}

func (e *Engine) rejected(d pipeline.Decision, h strategies.Hypothesis) {
	e.stats.Rejected++
	v, _ := d.RejectedBy()
	e.log.Debug().
		Str("symbol", h.Symbol).
		Stringer("side", h.Direction).
		Str("layer", v.Layer).
		Str("reason", v.Reason).
		Msg("hypothesis rejected")
}

func (e *Engine) noteRealized(pl float64) {
	switch {
	case pl > 0:
		e.wins++
		e.grossWin += pl
	case pl < 0:
		e.losses++
		e.grossLoss += -pl
	}
}

func (e *Engine) winRate() float64 {
	n := e.wins + e.losses
	if n == 0 {
		return 0
	}
	return float64(e.wins) / float64(n)
}

func (e *Engine) payoffRatio() float64 {
	if e.wins == 0 || e.losses == 0 || e.grossLoss == 0 {
		return 0
	}
	return (e.grossWin / float64(e.wins)) / (e.grossLoss / float64(e.losses))
}

// markPrice is the position's last marked price, falling back to entry
// when the account no longer tracks it.
func (ot *openTrade) markPrice(acct *account.Account) float64 {
	if p, ok := acct.Position(ot.symbol); ok {
		return p.MarkPrice
	}
	return ot.entryPrice
}

func verdict(layer string, passed bool, reason string) layers.Verdict {
	return layers.Verdict{Layer: layer, Passed: passed, Reason: reason}
}

// openSymbols returns the open symbols sorted, so flattening order never
// depends on map layout.
func openSymbols(open map[string]*openTrade) []string {
	syms := make([]string, 0, len(open))
	for s := range open {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}
