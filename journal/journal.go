// Package journal persists the replay's outputs: closed trades and the
// equity curve. Two implementations exist, CSV files and SQLite; the
// engine only sees the Journal interface.
package journal

import "github.com/rustyeddy/macrotrader/market"

type Journal interface {
	RecordTrade(market.Trade) error
	RecordEquity(market.EquityPoint) error
	Close() error
}

// Nop discards everything. Useful for tests and dry runs.
type Nop struct{}

func (Nop) RecordTrade(market.Trade) error        { return nil }
func (Nop) RecordEquity(market.EquityPoint) error { return nil }
func (Nop) Close() error                          { return nil }
