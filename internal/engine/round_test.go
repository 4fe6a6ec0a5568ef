package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRound(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRound(7, now, DefaultDurations())

	assert.Equal(t, int64(7), r.Number)
	assert.Equal(t, PhaseBetting, r.Status)
	assert.Equal(t, now, r.BettingStart)
	assert.Equal(t, now.Add(30*time.Second), r.BettingEnd)
	_, ok := r.Outcome()
	assert.False(t, ok)
	assert.False(t, r.Settled())
}

func TestRoundAdvanceForwardOnly(t *testing.T) {
	t.Parallel()

	r := NewRound(1, time.Now(), DefaultDurations())
	require.NoError(t, r.Advance(PhaseSpinPreparation))
	require.NoError(t, r.Advance(PhaseSpinning))

	assert.Error(t, r.Advance(PhaseBetting))
	assert.Error(t, r.Advance(PhaseTransition))
	require.NoError(t, r.Advance(PhaseResult))
}

func TestSetOutcome(t *testing.T) {
	t.Parallel()

	r := NewRound(1, time.Now(), DefaultDurations())

	// Not during BETTING
	assert.Error(t, r.SetOutcome(3))

	require.NoError(t, r.Advance(PhaseSpinPreparation))
	assert.Error(t, r.SetOutcome(-1))
	assert.Error(t, r.SetOutcome(10))
	require.NoError(t, r.SetOutcome(7))

	o, ok := r.Outcome()
	require.True(t, ok)
	assert.Equal(t, 7, o)

	p, ok := r.Parity()
	require.True(t, ok)
	assert.Equal(t, ParityOdd, p)

	// Immutable once set
	assert.Error(t, r.SetOutcome(2))
	o, _ = r.Outcome()
	assert.Equal(t, 7, o)
}

func TestBettingOpen(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRound(1, start, DefaultDurations())

	assert.True(t, r.BettingOpen(start, 0))
	assert.True(t, r.BettingOpen(start.Add(29*time.Second+500*time.Millisecond), 0))
	assert.False(t, r.BettingOpen(start.Add(30*time.Second), 0), "deadline itself is closed")
	assert.False(t, r.BettingOpen(start.Add(31*time.Second), 0))

	// Grace shrinks the window from the end
	assert.False(t, r.BettingOpen(start.Add(29*time.Second+500*time.Millisecond), time.Second))
	assert.True(t, r.BettingOpen(start.Add(28*time.Second), time.Second))

	require.NoError(t, r.Advance(PhaseSpinPreparation))
	assert.False(t, r.BettingOpen(start, 0), "only BETTING accepts wagers")
}

func TestParityOf(t *testing.T) {
	t.Parallel()

	for o := 0; o < NumOutcomes; o++ {
		want := ParityEven
		if o%2 == 1 {
			want = ParityOdd
		}
		assert.Equal(t, want, ParityOf(o), "outcome %d", o)
		assert.True(t, want.Matches(o))
	}
}
