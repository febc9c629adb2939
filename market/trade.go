package market

import "time"

// Trade is a closed round trip. Immutable once appended to a trade log.
type Trade struct {
	ID            string
	Symbol        string
	Side          Side
	Quantity      float64
	EntryPrice    float64
	EntryTime     time.Time
	ExitPrice     float64
	ExitTime      time.Time
	RealizedPL    float64 // net of commissions
	RegimeAtEntry string
	EntryReason   string
	ExitReason    string
}

// EquityPoint is one point of the account equity curve, appended once per
// processed bar.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}
