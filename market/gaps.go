package market

import (
	"fmt"
	"time"
)

// DataGap marks bars missing from a feed. The feed emits it as an explicit
// event so the replay can hold, flatten, or halt; it is never skipped
// silently. It doubles as the error returned when the replay is configured
// to halt on gaps.
type DataGap struct {
	Symbol  string
	From    time.Time // last bar seen before the gap
	To      time.Time // first bar seen after the gap
	Missing int       // expected bars absent between From and To
	Kind    string    // "weekend", "holiday" or "suspicious"
}

func (g *DataGap) Error() string {
	return fmt.Sprintf("data gap: %s missing %d bars between %s and %s (%s)",
		g.Symbol, g.Missing, g.From.Format(time.RFC3339), g.To.Format(time.RFC3339), g.Kind)
}
