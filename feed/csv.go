// Package feed loads bar and macro-indicator series from disk into
// materialized event streams. The replay core consumes the market.Feed
// interface; this package is the concrete ingestion boundary behind it.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/macrotrader/indicators"
	"github.com/rustyeddy/macrotrader/market"
)

// Config controls CSV ingestion.
type Config struct {
	Symbol   string        // symbol for files without a symbol column
	Interval time.Duration // bar cadence; 24h when zero
}

// BarFeed is a fully materialized market.Feed with gap markers already
// interleaved in chronological position. Next never touches I/O.
type BarFeed struct {
	events []market.Event
	gaps   []*market.DataGap
	idx    int

	// Ingest counters, for reporting before a run starts.
	BadLines   int
	Duplicates int
}

func (f *BarFeed) Next() (market.Event, bool, error) {
	if f.idx >= len(f.events) {
		return market.Event{}, false, nil
	}
	ev := f.events[f.idx]
	f.idx++
	return ev, true, nil
}

// Reset rewinds the feed so the same data can be replayed again.
func (f *BarFeed) Reset() { f.idx = 0 }

// Bars returns the number of bar events (gap markers excluded).
func (f *BarFeed) Bars() int { return len(f.events) - len(f.gaps) }

// Gaps returns the gap markers found during ingestion.
func (f *BarFeed) Gaps() []*market.DataGap { return f.gaps }

// Stats summarizes the loaded feed's coverage.
func (f *BarFeed) Stats() GapStats { return statsFor(f.Bars(), f.gaps) }

// LoadCSV reads a bar file from disk. See Read for the expected layout.
func LoadCSV(path string, cfg Config) (*BarFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	bf, err := Read(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return bf, nil
}

// Read parses a header-driven CSV of bars with optional macro columns.
//
// Required columns: time, open, high, low, close. Optional: symbol, volume,
// vix, dxy, yield10y, gold, fear_greed, put_call, news_sentiment,
// policy_rate, cpi_yoy, gdp_qoq, unemployment, next_release. Unknown
// columns are ignored; empty macro cells are recorded as unknown values.
//
// Rows must be sorted by time. Timestamp regressions are fatal (replay
// correctness cannot be guaranteed past one); duplicate symbol/time rows
// keep the first occurrence.
func Read(r io.Reader, cfg Config) (*BarFeed, error) {
	interval := cfg.Interval
	if interval == 0 {
		interval = 24 * time.Hour
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, req := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("missing required column %q", req)
		}
	}

	bf := &BarFeed{}
	states := make(map[string]*symbolState)
	macro := newMacroState()
	var lastTime time.Time

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		ts, err := parseTime(get("time"))
		if err != nil {
			bf.BadLines++
			continue
		}

		sym := get("symbol")
		if sym == "" {
			sym = cfg.Symbol
		}
		if sym == "" {
			return nil, fmt.Errorf("line %d: no symbol column and no default symbol configured", line)
		}

		o, e1 := strconv.ParseFloat(get("open"), 64)
		h, e2 := strconv.ParseFloat(get("high"), 64)
		l, e3 := strconv.ParseFloat(get("low"), 64)
		c, e4 := strconv.ParseFloat(get("close"), 64)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			bf.BadLines++
			continue
		}
		vol := optional(get("volume"))
		if !market.Known(vol) {
			vol = 0
		}

		st := states[sym]
		if st == nil {
			st = newSymbolState()
			states[sym] = st
		}

		if !st.prevTime.IsZero() && !ts.After(st.prevTime) {
			if ts.Equal(st.prevTime) {
				// keep-first policy (ignore later duplicates)
				bf.Duplicates++
				continue
			}
			return nil, fmt.Errorf("line %d: %s bars out of order: %s after %s",
				line, sym, ts.Format(time.RFC3339), st.prevTime.Format(time.RFC3339))
		}
		if !lastTime.IsZero() && ts.Before(lastTime) {
			return nil, fmt.Errorf("line %d: timestamps regress across symbols at %s",
				line, ts.Format(time.RFC3339))
		}

		if gap := gapBetween(sym, st.prevTime, ts, interval); gap != nil {
			bf.gaps = append(bf.gaps, gap)
			bf.events = append(bf.events, market.Event{Gap: gap})
		}

		bar := market.Bar{Symbol: sym, Time: ts, Open: o, High: h, Low: l, Close: c, Volume: vol}

		snap := market.NewSnapshot(ts)
		snap.Price = c
		snap.VIX = optional(get("vix"))
		snap.Yield10Y = optional(get("yield10y"))
		snap.FearGreed = optional(get("fear_greed"))
		snap.PutCallRatio = optional(get("put_call"))
		snap.NewsSentiment = optional(get("news_sentiment"))
		snap.PolicyRate = optional(get("policy_rate"))
		snap.CPIYoY = optional(get("cpi_yoy"))
		snap.GDPQoQ = optional(get("gdp_qoq"))
		snap.UnemploymentRate = optional(get("unemployment"))
		if rel := get("next_release"); rel != "" {
			if relTime, err := parseTime(rel); err == nil {
				snap.NextHighImpactRelease = relTime
			}
		}

		dxy := optional(get("dxy"))
		gold := optional(get("gold"))

		snap.VIXChangePct = pctChange(macro.vix, snap.VIX)
		snap.DXYChangePct = pctChange(macro.dxy, dxy)
		snap.GoldChangePct = pctChange(macro.gold, gold)
		snap.Yield10YChange = absChange(macro.yield, snap.Yield10Y)
		snap.PolicyRateChange = absChange(macro.policy, snap.PolicyRate)
		if st.count > 0 && st.prevClose != 0 {
			snap.EquityChangePct = (c - st.prevClose) / st.prevClose
		}

		// Technical values as of this bar's close.
		st.ema50.Update(bar)
		st.ema200.Update(bar)
		st.rsi.Update(bar)
		st.atr.Update(bar)
		st.count++
		if st.ema50.Ready() {
			snap.EMA50 = st.ema50.Value()
		}
		if st.ema200.Ready() {
			snap.EMA200 = st.ema200.Value()
		}
		if st.rsi.Ready() {
			snap.RSI14 = st.rsi.Value()
		}
		if st.atr.Ready() {
			snap.ATR14 = st.atr.Value()
		}
		snap.BarCount = st.count

		macro.remember(snap.VIX, dxy, snap.Yield10Y, gold, snap.PolicyRate)
		st.prevClose = c
		st.prevTime = ts
		lastTime = ts

		bf.events = append(bf.events, market.Event{Bar: bar, Snap: snap})
	}

	if bf.Bars() == 0 {
		return nil, fmt.Errorf("no valid bars found")
	}
	return bf, nil
}

// symbolState carries the per-symbol streaming indicators and previous-bar
// context used to derive snapshot values.
type symbolState struct {
	ema50, ema200 *indicators.ExponentialMA
	rsi           *indicators.RSI
	atr           *indicators.ATR
	prevClose     float64
	prevTime      time.Time
	count         int
}

func newSymbolState() *symbolState {
	return &symbolState{
		ema50:  indicators.NewEMA(50),
		ema200: indicators.NewEMA(200),
		rsi:    indicators.NewRSI(14),
		atr:    indicators.NewATR(14),
	}
}

// macroState keeps the last known macro values so day-over-day changes can
// be derived even across missing cells.
type macroState struct {
	vix, dxy, yield, gold, policy float64
}

func newMacroState() *macroState {
	n := math.NaN()
	return &macroState{vix: n, dxy: n, yield: n, gold: n, policy: n}
}

func (m *macroState) remember(vix, dxy, yield, gold, policy float64) {
	if market.Known(vix) {
		m.vix = vix
	}
	if market.Known(dxy) {
		m.dxy = dxy
	}
	if market.Known(yield) {
		m.yield = yield
	}
	if market.Known(gold) {
		m.gold = gold
	}
	if market.Known(policy) {
		m.policy = policy
	}
}

func pctChange(prev, cur float64) float64 {
	if !market.Known(prev) || !market.Known(cur) || prev == 0 {
		return math.NaN()
	}
	return (cur - prev) / prev
}

func absChange(prev, cur float64) float64 {
	if !market.Known(prev) || !market.Known(cur) {
		return math.NaN()
	}
	return cur - prev
}

func optional(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// column aliases, canonical name first
var columnAliases = map[string]string{
	"time": "time", "date": "time", "timestamp": "time",
	"symbol": "symbol", "ticker": "symbol",
	"open": "open", "high": "high", "low": "low", "close": "close",
	"volume": "volume", "vol": "volume",
	"vix": "vix",
	"dxy": "dxy", "usd_index": "dxy",
	"yield10y": "yield10y", "yield_10y": "yield10y", "us10y": "yield10y",
	"gold":       "gold",
	"fear_greed": "fear_greed", "fng": "fear_greed",
	"put_call": "put_call", "put_call_ratio": "put_call",
	"news_sentiment": "news_sentiment", "sentiment": "news_sentiment",
	"policy_rate": "policy_rate", "fed_funds": "policy_rate",
	"cpi_yoy": "cpi_yoy", "gdp_qoq": "gdp_qoq",
	"unemployment": "unemployment", "unemployment_rate": "unemployment",
	"next_release": "next_release", "next_high_impact": "next_release",
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		canon, ok := columnAliases[key]
		if !ok {
			continue
		}
		if _, dup := cols[canon]; dup {
			continue
		}
		cols[canon] = i
	}
	return cols
}
