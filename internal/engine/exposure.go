package engine

import (
	"sync"

	"github.com/shopspring/decimal"
)

// OutcomeStat is the per-outcome slice of the betting distribution.
type OutcomeStat struct {
	Count  int
	Amount decimal.Decimal
}

// ExposureSnapshot is a transient, per-round view of what the house would
// owe for each possible outcome, plus the display distribution. Parity
// wagers are fanned out across their covered outcomes here; the ledger
// itself never materialises that expansion.
type ExposureSnapshot struct {
	Liability    [NumOutcomes]decimal.Decimal
	Distribution [NumOutcomes]OutcomeStat
	TotalWagers  int
	TotalAmount  decimal.Decimal
}

// MaxLiability returns the largest per-outcome liability in the snapshot.
func (s ExposureSnapshot) MaxLiability() decimal.Decimal {
	max := decimal.Zero
	for _, l := range s.Liability {
		if l.GreaterThan(max) {
			max = l
		}
	}
	return max
}

// ExposureTracker maintains running per-outcome liability for one round.
// It is purely additive: wagers cannot be cancelled once placed, so
// liability is never decremented. Single writer per round, many readers.
type ExposureTracker struct {
	mu   sync.RWMutex
	snap ExposureSnapshot
}

// NewExposureTracker returns an empty tracker for a fresh round.
func NewExposureTracker() *ExposureTracker {
	t := &ExposureTracker{}
	t.Reset()
	return t
}

// Reset discards all recorded liability. Called when a new round begins.
func (t *ExposureTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var snap ExposureSnapshot
	for i := range snap.Liability {
		snap.Liability[i] = decimal.Zero
		snap.Distribution[i] = OutcomeStat{Amount: decimal.Zero}
	}
	snap.TotalAmount = decimal.Zero
	t.snap = snap
}

// Record adds a wager's contribution: amount*multiplier of liability to
// every covered outcome, and the raw amount to the display distribution of
// those outcomes.
func (t *ExposureTracker) Record(covered []int, amount, multiplier decimal.Decimal) {
	liability := amount.Mul(multiplier)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range covered {
		t.snap.Liability[o] = t.snap.Liability[o].Add(liability)
		t.snap.Distribution[o].Count++
		t.snap.Distribution[o].Amount = t.snap.Distribution[o].Amount.Add(amount)
	}
	t.snap.TotalWagers++
	t.snap.TotalAmount = t.snap.TotalAmount.Add(amount)
}

// LiabilityIfOutcome returns the total payout owed if the given outcome
// wins.
func (t *ExposureTracker) LiabilityIfOutcome(outcome int) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Liability[outcome]
}

// Snapshot returns a copy of the current exposure state.
func (t *ExposureTracker) Snapshot() ExposureSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
