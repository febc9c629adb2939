package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/macrotrader/market"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t market.Trade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, side, quantity, entry_price, entry_time,
		 exit_price, exit_time, realized_pl, regime_at_entry, entry_reason, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.Side.String(), t.Quantity, t.EntryPrice, t.EntryTime.UTC(),
		t.ExitPrice, t.ExitTime.UTC(), t.RealizedPL, t.RegimeAtEntry, t.EntryReason, t.ExitReason,
	)
	return err
}

func (j *SQLite) RecordEquity(p market.EquityPoint) error {
	_, err := j.db.Exec(`INSERT INTO equity (time, equity) VALUES (?, ?)`,
		p.Time.UTC(), p.Equity)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// ListTrades returns all recorded trades ordered by exit time.
func (j *SQLite) ListTrades() ([]market.Trade, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, quantity, entry_price, entry_time,
		       exit_price, exit_time, realized_pl, regime_at_entry, entry_reason, exit_reason
		FROM trades
		ORDER BY exit_time ASC, trade_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Trade
	for rows.Next() {
		var t market.Trade
		var side string
		if err := rows.Scan(
			&t.ID, &t.Symbol, &side, &t.Quantity, &t.EntryPrice, &t.EntryTime,
			&t.ExitPrice, &t.ExitTime, &t.RealizedPL, &t.RegimeAtEntry,
			&t.EntryReason, &t.ExitReason,
		); err != nil {
			return nil, err
		}
		t.Side = parseSide(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns the recorded equity curve in time order.
func (j *SQLite) ListEquity() ([]market.EquityPoint, error) {
	rows, err := j.db.Query(`SELECT time, equity FROM equity ORDER BY time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.EquityPoint
	for rows.Next() {
		var p market.EquityPoint
		if err := rows.Scan(&p.Time, &p.Equity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TradesClosedBetween returns trades with exit_time in [start, end).
func (j *SQLite) TradesClosedBetween(start, end time.Time) ([]market.Trade, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, quantity, entry_price, entry_time,
		       exit_price, exit_time, realized_pl, regime_at_entry, entry_reason, exit_reason
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC, trade_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Trade
	for rows.Next() {
		var t market.Trade
		var side string
		if err := rows.Scan(
			&t.ID, &t.Symbol, &side, &t.Quantity, &t.EntryPrice, &t.EntryTime,
			&t.ExitPrice, &t.ExitTime, &t.RealizedPL, &t.RegimeAtEntry,
			&t.EntryReason, &t.ExitReason,
		); err != nil {
			return nil, err
		}
		t.Side = parseSide(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func parseSide(s string) market.Side {
	switch s {
	case "LONG":
		return market.Long
	case "SHORT":
		return market.Short
	}
	return 0
}
