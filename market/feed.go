package market

// Event is one element of a replay stream: a bar with its aligned indicator
// snapshot, or an explicit gap marker (Gap non-nil, Bar and Snap zero).
type Event struct {
	Bar  Bar
	Snap Snapshot
	Gap  *DataGap
}

// Feed supplies events in chronological order. Implementations must have
// all data materialized before the replay starts; Next never blocks on I/O.
type Feed interface {
	// Next returns the next event. ok is false once the feed is exhausted.
	Next() (ev Event, ok bool, err error)
}
