package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NumOutcomes is the size of the wheel's outcome space (numbers 0-9).
const NumOutcomes = 10

// Parity classifies an outcome as odd or even.
type Parity int

const (
	ParityEven Parity = iota
	ParityOdd
)

// ParityOf returns the parity of a wheel outcome.
func ParityOf(outcome int) Parity {
	if outcome%2 == 1 {
		return ParityOdd
	}
	return ParityEven
}

// String returns the wire representation of the parity.
func (p Parity) String() string {
	if p == ParityOdd {
		return "ODD"
	}
	return "EVEN"
}

// ParseParity converts a wire parity string back to a Parity.
func ParseParity(s string) (Parity, bool) {
	switch s {
	case "ODD":
		return ParityOdd, true
	case "EVEN":
		return ParityEven, true
	default:
		return 0, false
	}
}

// Matches reports whether the given outcome has this parity.
func (p Parity) Matches(outcome int) bool {
	return ParityOf(outcome) == p
}

// Round is one complete cycle of betting, outcome determination and
// settlement. Its status only moves forward along the phase order (or to
// CANCELLED), and the winning outcome is set exactly once.
type Round struct {
	ID     string
	Number int64
	Status Phase

	BettingStart time.Time
	BettingEnd   time.Time
	SpinStart    time.Time
	ResultTime   time.Time

	winningOutcome *int

	TotalWagered    decimal.Decimal
	TotalPayout     decimal.Decimal
	HouseProfitLoss decimal.Decimal

	SettledAt *time.Time
}

// NewRound creates a round in BETTING with boundaries derived from the
// configured durations.
func NewRound(number int64, now time.Time, d Durations) *Round {
	return &Round{
		ID:           uuid.New().String(),
		Number:       number,
		Status:       PhaseBetting,
		BettingStart: now,
		BettingEnd:   now.Add(d.Betting),
		TotalWagered: decimal.Zero,
		TotalPayout:  decimal.Zero,
	}
}

// Advance moves the round to the next phase. It enforces the forward-only
// transition rule.
func (r *Round) Advance(next Phase) error {
	if !r.Status.CanAdvanceTo(next) {
		return fmt.Errorf("illegal round transition %s -> %s", r.Status, next)
	}
	r.Status = next
	return nil
}

// SetOutcome records the winning outcome. It may be called exactly once,
// during SPIN_PREPARATION.
func (r *Round) SetOutcome(outcome int) error {
	if r.winningOutcome != nil {
		return fmt.Errorf("round %d: winning outcome already set to %d", r.Number, *r.winningOutcome)
	}
	if outcome < 0 || outcome >= NumOutcomes {
		return fmt.Errorf("round %d: outcome %d out of range", r.Number, outcome)
	}
	if r.Status != PhaseSpinPreparation {
		return fmt.Errorf("round %d: outcome may only be set during SPIN_PREPARATION, not %s", r.Number, r.Status)
	}
	o := outcome
	r.winningOutcome = &o
	return nil
}

// Outcome returns the winning outcome, or false if it has not been fixed.
func (r *Round) Outcome() (int, bool) {
	if r.winningOutcome == nil {
		return 0, false
	}
	return *r.winningOutcome, true
}

// RestoreOutcome rehydrates the outcome without the SPIN_PREPARATION
// guard. Only for reloading persisted rounds; live play uses SetOutcome.
func (r *Round) RestoreOutcome(outcome int) {
	o := outcome
	r.winningOutcome = &o
}

// Parity returns the parity of the winning outcome, or false if the
// outcome is not yet fixed.
func (r *Round) Parity() (Parity, bool) {
	o, ok := r.Outcome()
	if !ok {
		return 0, false
	}
	return ParityOf(o), true
}

// BettingOpen reports whether a wager arriving at the given server time is
// inside the betting window. grace shrinks the window from the end.
func (r *Round) BettingOpen(now time.Time, grace time.Duration) bool {
	if r.Status != PhaseBetting {
		return false
	}
	if now.Before(r.BettingStart) {
		return false
	}
	return now.Before(r.BettingEnd.Add(-grace))
}

// Settled reports whether settlement has completed for this round.
func (r *Round) Settled() bool {
	return r.SettledAt != nil
}
