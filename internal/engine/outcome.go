package engine

import (
	rand "math/rand/v2"

	"github.com/shopspring/decimal"
)

// SelectionStrategy chooses the winning outcome for a round. The decision
// is made exactly once, during SPIN_PREPARATION, and never revisited;
// implementations must be pure functions of the snapshot and the supplied
// RNG so a seeded run is reproducible and auditable.
type SelectionStrategy interface {
	Select(snap ExposureSnapshot, rng *rand.Rand) int
	Name() string
}

// UniformStrategy draws uniformly over 0-9 regardless of exposure.
type UniformStrategy struct{}

func (UniformStrategy) Select(_ ExposureSnapshot, rng *rand.Rand) int {
	return rng.IntN(NumOutcomes)
}

func (UniformStrategy) Name() string { return "uniform" }

// ExposureAwareStrategy restricts the draw to outcomes whose liability does
// not exceed MaxExposure. If every outcome breaches the cap it falls back
// to the globally minimum-liability outcome, ties broken by the lowest
// number so the fallback stays deterministic.
type ExposureAwareStrategy struct {
	MaxExposure decimal.Decimal
}

func (s ExposureAwareStrategy) Select(snap ExposureSnapshot, rng *rand.Rand) int {
	candidates := make([]int, 0, NumOutcomes)
	for o := 0; o < NumOutcomes; o++ {
		if snap.Liability[o].LessThanOrEqual(s.MaxExposure) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return minLiabilityOutcome(snap)
	}
	return candidates[rng.IntN(len(candidates))]
}

func (ExposureAwareStrategy) Name() string { return "exposure_aware" }

func minLiabilityOutcome(snap ExposureSnapshot) int {
	best := 0
	for o := 1; o < NumOutcomes; o++ {
		if snap.Liability[o].LessThan(snap.Liability[best]) {
			best = o
		}
	}
	return best
}
