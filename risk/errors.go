// Package risk holds the account-facing gates of the replay core: the
// position sizer, the exposure manager, and the drawdown controller. All
// three are consulted by the replay engine after the decision pipeline
// approves a hypothesis; none of them place orders themselves.
package risk

import "fmt"

// InvalidSizingError reports a candidate that cannot be sized: a
// degenerate stop distance or a resulting quantity of zero. The candidate
// is dropped, not retried.
type InvalidSizingError struct {
	Reason string
}

func (e *InvalidSizingError) Error() string {
	return "invalid sizing: " + e.Reason
}

// Violation is one failed gate check with a machine code and a
// human-readable reason for the decision trace.
type Violation struct {
	Code string
	Msg  string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Msg)
}
