package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeFixedFractional(t *testing.T) {
	t.Parallel()

	// The worked scenario: 100k equity, 1% risk, 5% stop distance gives a
	// 20k notional, capped to the 10% position limit, so 10k / 450.
	s := NewSizer()
	got, err := s.Size(Inputs{
		Equity:     100000,
		EntryPrice: 450,
		StopPrice:  427.5,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.05, got.StopFraction, 1e-12)
	assert.InDelta(t, 1000, got.RiskAmount, 1e-9)
	assert.InDelta(t, 22, got.Quantity, 1e-12)

	// Without the position cap the formula floors (1000/0.05)/450.
	s.MaxPositionFrac = 1.0
	got, err = s.Size(Inputs{
		Equity:     100000,
		EntryPrice: 450,
		StopPrice:  427.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 44, got.Quantity, 1e-12)
	assert.InDelta(t, 1.0, got.KellyApplied, 1e-12)
}

func TestSizeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Inputs
	}{
		{"zero stop distance", Inputs{Equity: 100000, EntryPrice: 450, StopPrice: 450}},
		{"zero entry", Inputs{Equity: 100000, EntryPrice: 0, StopPrice: 10}},
		{"quantity floors to zero", Inputs{Equity: 100, EntryPrice: 450, StopPrice: 427.5}},
	}

	s := NewSizer()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := s.Size(tt.in)
			var sizing *InvalidSizingError
			assert.True(t, errors.As(err, &sizing), "want InvalidSizingError, got %v", err)
		})
	}
}

func TestSizeReducedScale(t *testing.T) {
	t.Parallel()

	s := NewSizer()
	s.MaxPositionFrac = 1.0

	full, err := s.Size(Inputs{Equity: 100000, EntryPrice: 450, StopPrice: 427.5, RiskScale: 1})
	require.NoError(t, err)
	half, err := s.Size(Inputs{Equity: 100000, EntryPrice: 450, StopPrice: 427.5, RiskScale: 0.5})
	require.NoError(t, err)

	assert.InDelta(t, 44, full.Quantity, 1e-12)
	assert.InDelta(t, 22, half.Quantity, 1e-12)
}

func TestSizeKellyBlend(t *testing.T) {
	t.Parallel()

	s := NewSizer()
	s.Strategy = KellyBlend
	s.MaxPositionFrac = 1.0
	s.WinRate = 0.6
	s.PayoffRatio = 2.0 // kelly = 0.6 - 0.4/2 = 0.4, clamped to 0.25

	got, err := s.Size(Inputs{Equity: 100000, EntryPrice: 450, StopPrice: 427.5})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, got.KellyApplied, 1e-12)
	// 20000 * 0.25 / 450, floored.
	assert.InDelta(t, 11, got.Quantity, 1e-12)
}

func TestSizeKellyUsesHistoryOnceAvailable(t *testing.T) {
	t.Parallel()

	s := NewSizer()
	s.Strategy = KellyBlend
	s.MaxPositionFrac = 1.0
	s.WinRate = 0.9 // optimistic seed
	s.PayoffRatio = 3.0
	s.MinKellyTrades = 10

	// History says the edge is negative: kelly clamps to zero and sizing
	// fails rather than opening a position with no edge.
	_, err := s.Size(Inputs{
		Equity: 100000, EntryPrice: 450, StopPrice: 427.5,
		Trades: 20, WinRate: 0.2, PayoffRatio: 1.0,
	})
	var sizing *InvalidSizingError
	assert.True(t, errors.As(err, &sizing))
}

func TestKellyNeverNegative(t *testing.T) {
	t.Parallel()

	s := NewSizer()
	s.Strategy = KellyBlend
	s.WinRate = 0.1
	s.PayoffRatio = 0.5

	f := s.kellyFraction(Inputs{})
	assert.Equal(t, 0.0, f)
}
