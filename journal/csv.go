package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/macrotrader/market"
)

type CSV struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write([]string{
		"trade_id", "symbol", "side", "quantity", "entry_price", "entry_time",
		"exit_price", "exit_time", "realized_pl", "regime_at_entry",
		"entry_reason", "exit_reason",
	}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "equity"}); err != nil {
		return nil, err
	}
	tw.Flush()
	ew.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSV{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func (j *CSV) RecordTrade(t market.Trade) error {
	if err := j.trades.Write([]string{
		t.ID,
		t.Symbol,
		t.Side.String(),
		f(t.Quantity),
		f(t.EntryPrice),
		t.EntryTime.UTC().Format(time.RFC3339),
		f(t.ExitPrice),
		t.ExitTime.UTC().Format(time.RFC3339),
		f(t.RealizedPL),
		t.RegimeAtEntry,
		t.EntryReason,
		t.ExitReason,
	}); err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(p market.EquityPoint) error {
	if err := j.equity.Write([]string{
		p.Time.UTC().Format(time.RFC3339),
		f(p.Equity),
	}); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
