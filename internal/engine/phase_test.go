package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrder(t *testing.T) {
	t.Parallel()

	order := []Phase{PhaseBetting, PhaseSpinPreparation, PhaseSpinning, PhaseResult, PhaseTransition}
	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Next()
		require.True(t, ok, "%s should have a next phase", order[i])
		assert.Equal(t, order[i+1], next)
	}

	_, ok := PhaseTransition.Next()
	assert.False(t, ok, "TRANSITION ends the round, a new round follows")
	_, ok = PhaseCancelled.Next()
	assert.False(t, ok)
}

func TestCanAdvanceTo(t *testing.T) {
	t.Parallel()

	assert.True(t, PhaseBetting.CanAdvanceTo(PhaseSpinPreparation))
	assert.True(t, PhaseSpinning.CanAdvanceTo(PhaseResult))

	// No skipping and no going back
	assert.False(t, PhaseBetting.CanAdvanceTo(PhaseSpinning))
	assert.False(t, PhaseResult.CanAdvanceTo(PhaseBetting))
	assert.False(t, PhaseSpinning.CanAdvanceTo(PhaseSpinning))

	// CANCELLED is reachable from any non-terminal phase and is terminal
	for _, p := range []Phase{PhaseBetting, PhaseSpinPreparation, PhaseSpinning, PhaseResult, PhaseTransition} {
		assert.True(t, p.CanAdvanceTo(PhaseCancelled), "%s should cancel", p)
	}
	assert.False(t, PhaseCancelled.CanAdvanceTo(PhaseCancelled))
	assert.False(t, PhaseCancelled.CanAdvanceTo(PhaseBetting))
}

func TestParsePhaseRoundTrip(t *testing.T) {
	t.Parallel()

	for p := PhaseBetting; p <= PhaseCancelled; p++ {
		parsed, ok := ParsePhase(p.String())
		require.True(t, ok)
		assert.Equal(t, p, parsed)
	}
	_, ok := ParsePhase("LIMBO")
	assert.False(t, ok)
}

func TestDefaultDurations(t *testing.T) {
	t.Parallel()

	d := DefaultDurations()
	assert.Equal(t, 30*time.Second, d.Betting)
	assert.Equal(t, 10*time.Second, d.SpinPreparation)
	assert.Equal(t, 11*time.Second, d.Spinning)
	assert.Equal(t, 9*time.Second, d.Result)
	assert.Equal(t, 3*time.Second, d.Transition)

	assert.Equal(t, d.Spinning, d.For(PhaseSpinning))
	assert.Equal(t, time.Duration(0), d.For(PhaseCancelled))
}
