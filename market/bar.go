// Package market defines the shared vocabulary of the replay core: bars,
// indicator snapshots, trade directions, and the feed boundary that supplies
// them in chronological order.
package market

import "time"

// Side: +1 long, -1 short. The zero value means no direction.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	}
	return "NONE"
}

// Bar represents one OHLCV candlestick for a symbol. Bars are immutable once
// produced and ordered by Time; no two bars for the same symbol share a Time.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
