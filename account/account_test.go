package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAccounting(t *testing.T) {
	t.Parallel()

	acct := New(100000)

	// Enter 44 shares at 450.
	realized, err := acct.Apply("SPY", 44, 450, 0)
	require.NoError(t, err)
	assert.Zero(t, realized)
	assert.InDelta(t, 100000-44*450.0, acct.Cash(), 1e-9)

	pos, ok := acct.Position("SPY")
	require.True(t, ok)
	assert.InDelta(t, 44, pos.Quantity, 1e-12)
	assert.InDelta(t, 450, pos.AveragePrice, 1e-12)

	// Exit at 460: realized = (460-450)*44 = 440.
	realized, err = acct.Apply("SPY", -44, 460, 0)
	require.NoError(t, err)
	assert.InDelta(t, 440, realized, 1e-9)

	_, ok = acct.Position("SPY")
	assert.False(t, ok, "no residual position after a full close")

	acct.MarkToMarket()
	assert.InDelta(t, 100440, acct.Equity(), 1e-9)
	assert.InDelta(t, 100440, acct.Cash(), 1e-9)
}

func TestCommissionsReduceRealized(t *testing.T) {
	t.Parallel()

	acct := New(10000)
	_, err := acct.Apply("SPY", 10, 100, 1)
	require.NoError(t, err)

	realized, err := acct.Apply("SPY", -10, 110, 1)
	require.NoError(t, err)
	assert.InDelta(t, 99, realized, 1e-9) // 100 gross minus exit commission

	acct.MarkToMarket()
	assert.InDelta(t, 10098, acct.Equity(), 1e-9) // both commissions out of cash
}

func TestShortRoundTrip(t *testing.T) {
	t.Parallel()

	acct := New(10000)
	_, err := acct.Apply("SPY", -10, 100, 0)
	require.NoError(t, err)
	assert.InDelta(t, 11000, acct.Cash(), 1e-9) // short sale proceeds

	realized, err := acct.Apply("SPY", 10, 90, 0)
	require.NoError(t, err)
	assert.InDelta(t, 100, realized, 1e-9)

	acct.MarkToMarket()
	assert.InDelta(t, 10100, acct.Equity(), 1e-9)
}

func TestDrawdownInvariant(t *testing.T) {
	t.Parallel()

	acct := New(100000)
	_, err := acct.Apply("SPY", 100, 100, 0)
	require.NoError(t, err)

	// Price falls: drawdown = (peak-equity)/peak, peak holds.
	acct.Mark("SPY", 80)
	acct.MarkToMarket()
	assert.InDelta(t, 98000, acct.Equity(), 1e-9)
	assert.InDelta(t, 100000, acct.PeakEquity(), 1e-9)
	assert.InDelta(t, 0.02, acct.Drawdown(), 1e-12)

	// Recovery above the old peak moves the peak, drawdown to zero.
	acct.Mark("SPY", 130)
	acct.MarkToMarket()
	assert.InDelta(t, 103000, acct.Equity(), 1e-9)
	assert.InDelta(t, 103000, acct.PeakEquity(), 1e-9)
	assert.Zero(t, acct.Drawdown())

	// Peak never decreases.
	acct.Mark("SPY", 100)
	acct.MarkToMarket()
	assert.InDelta(t, 103000, acct.PeakEquity(), 1e-9)
	assert.InDelta(t, (103000.0-100000.0)/103000.0, acct.Drawdown(), 1e-12)
}

func TestAveragingAdds(t *testing.T) {
	t.Parallel()

	acct := New(100000)
	_, err := acct.Apply("SPY", 10, 100, 0)
	require.NoError(t, err)
	_, err = acct.Apply("SPY", 10, 110, 0)
	require.NoError(t, err)

	pos, ok := acct.Position("SPY")
	require.True(t, ok)
	assert.InDelta(t, 20, pos.Quantity, 1e-12)
	assert.InDelta(t, 105, pos.AveragePrice, 1e-12)
}

func TestFlipThroughZeroRejected(t *testing.T) {
	t.Parallel()

	acct := New(100000)
	_, err := acct.Apply("SPY", 10, 100, 0)
	require.NoError(t, err)

	_, err = acct.Apply("SPY", -20, 100, 0)
	assert.Error(t, err)
}

func TestZeroQuantityRejected(t *testing.T) {
	t.Parallel()

	acct := New(100000)
	_, err := acct.Apply("SPY", 0, 100, 0)
	assert.Error(t, err)
}

func TestPositionsSorted(t *testing.T) {
	t.Parallel()

	acct := New(100000)
	for _, sym := range []string{"MSFT", "AAPL", "XOM"} {
		_, err := acct.Apply(sym, 1, 10, 0)
		require.NoError(t, err)
	}

	var got []string
	for _, p := range acct.Positions() {
		got = append(got, p.Symbol)
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, got)
}
