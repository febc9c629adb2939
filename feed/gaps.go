package feed

import (
	"time"

	"github.com/rustyeddy/macrotrader/market"
)

// gapBetween reports the gap between two consecutive bars of one symbol,
// or nil when the spacing is the expected cadence. For daily bars weekends
// are cadence, not gaps: only missed weekdays count.
func gapBetween(symbol string, prev, next time.Time, interval time.Duration) *market.DataGap {
	if prev.IsZero() || interval <= 0 {
		return nil
	}

	steps := int(next.Sub(prev)/interval) - 1
	if steps <= 0 {
		return nil
	}

	if interval == 24*time.Hour {
		missed := missedWeekdays(prev, next)
		if missed == 0 {
			return nil
		}
		kind := "holiday"
		if missed > 1 {
			kind = "suspicious"
		}
		return &market.DataGap{Symbol: symbol, From: prev, To: next, Missing: missed, Kind: kind}
	}

	// Intraday: a day-plus gap starting around the weekend is the market
	// being closed, anything else is worth flagging.
	kind := "suspicious"
	if next.Sub(prev) >= 24*time.Hour {
		switch prev.Weekday() {
		case time.Friday, time.Saturday, time.Sunday:
			kind = "weekend"
		}
	}
	return &market.DataGap{Symbol: symbol, From: prev, To: next, Missing: steps, Kind: kind}
}

func missedWeekdays(prev, next time.Time) int {
	missed := 0
	for d := prev.Add(24 * time.Hour); d.Before(next); d = d.Add(24 * time.Hour) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			missed++
		}
	}
	return missed
}

// GapStats summarizes the gaps found in a loaded feed.
type GapStats struct {
	Bars           int
	GapCount       int
	MissingBars    int
	WeekendGaps    int
	HolidayGaps    int
	SuspiciousGaps int
	LongestGap     int
	LongestKind    string
}

func statsFor(bars int, gaps []*market.DataGap) GapStats {
	s := GapStats{Bars: bars}
	for _, g := range gaps {
		s.GapCount++
		s.MissingBars += g.Missing
		if g.Missing > s.LongestGap {
			s.LongestGap = g.Missing
			s.LongestKind = g.Kind
		}
		switch g.Kind {
		case "weekend":
			s.WeekendGaps++
		case "holiday":
			s.HolidayGaps++
		case "suspicious":
			s.SuspiciousGaps++
		}
	}
	return s
}
