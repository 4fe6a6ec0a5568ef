package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lox/luckywheel/internal/randutil"
)

func TestUniformStrategyRange(t *testing.T) {
	t.Parallel()

	rng := randutil.New(42)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		o := UniformStrategy{}.Select(ExposureSnapshot{}, rng)
		assert.GreaterOrEqual(t, o, 0)
		assert.Less(t, o, NumOutcomes)
		seen[o] = true
	}
	assert.Len(t, seen, NumOutcomes, "all outcomes should be reachable")
}

func TestExposureAwareAvoidsCappedOutcomes(t *testing.T) {
	t.Parallel()

	var snap ExposureSnapshot
	for o := range snap.Liability {
		snap.Liability[o] = decimal.NewFromInt(10)
	}
	// Outcomes 3 and 7 breach the cap
	snap.Liability[3] = decimal.NewFromInt(5000)
	snap.Liability[7] = decimal.NewFromInt(9000)

	s := ExposureAwareStrategy{MaxExposure: decimal.NewFromInt(100)}
	rng := randutil.New(7)
	for i := 0; i < 500; i++ {
		o := s.Select(snap, rng)
		assert.NotEqual(t, 3, o)
		assert.NotEqual(t, 7, o)
	}
}

func TestExposureAwareFallbackMinLiability(t *testing.T) {
	t.Parallel()

	var snap ExposureSnapshot
	for o := range snap.Liability {
		snap.Liability[o] = decimal.NewFromInt(int64(1000 + o*100))
	}
	snap.Liability[6] = decimal.NewFromInt(500)

	// Every outcome breaches the cap, so the draw degrades to the
	// minimum-liability outcome deterministically.
	s := ExposureAwareStrategy{MaxExposure: decimal.NewFromInt(1)}
	rng := randutil.New(1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 6, s.Select(snap, rng))
	}
}

func TestExposureAwareFallbackTieBreaksLow(t *testing.T) {
	t.Parallel()

	var snap ExposureSnapshot
	for o := range snap.Liability {
		snap.Liability[o] = decimal.NewFromInt(700)
	}

	s := ExposureAwareStrategy{MaxExposure: decimal.NewFromInt(1)}
	assert.Equal(t, 0, s.Select(snap, randutil.New(3)))
}
