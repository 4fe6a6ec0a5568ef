package engine

import "time"

// Phase represents one stage of a round's lifecycle.
type Phase int

const (
	PhaseBetting Phase = iota
	PhaseSpinPreparation
	PhaseSpinning
	PhaseResult
	PhaseTransition
	PhaseCancelled
)

// String returns the wire representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseBetting:
		return "BETTING"
	case PhaseSpinPreparation:
		return "SPIN_PREPARATION"
	case PhaseSpinning:
		return "SPINNING"
	case PhaseResult:
		return "RESULT"
	case PhaseTransition:
		return "TRANSITION"
	case PhaseCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ParsePhase converts a wire phase string back to a Phase.
func ParsePhase(s string) (Phase, bool) {
	for p := PhaseBetting; p <= PhaseCancelled; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

// Next returns the phase that follows p in the natural order. The second
// return is false for TRANSITION (a new round begins) and terminal phases.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseBetting, PhaseSpinPreparation, PhaseSpinning, PhaseResult:
		return p + 1, true
	default:
		return 0, false
	}
}

// Terminal reports whether no further transition can leave this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCancelled
}

// CanAdvanceTo reports whether a transition from p to next is legal:
// strictly forward along the natural order, or to CANCELLED from any
// non-terminal phase.
func (p Phase) CanAdvanceTo(next Phase) bool {
	if next == PhaseCancelled {
		return !p.Terminal()
	}
	n, ok := p.Next()
	return ok && n == next
}

// Durations holds the length of each timed phase.
type Durations struct {
	Betting         time.Duration
	SpinPreparation time.Duration
	Spinning        time.Duration
	Result          time.Duration
	Transition      time.Duration
}

// DefaultDurations returns the standard phase timings.
func DefaultDurations() Durations {
	return Durations{
		Betting:         30 * time.Second,
		SpinPreparation: 10 * time.Second,
		Spinning:        11 * time.Second,
		Result:          9 * time.Second,
		Transition:      3 * time.Second,
	}
}

// For returns the duration of the given phase. Terminal phases have no
// duration.
func (d Durations) For(p Phase) time.Duration {
	switch p {
	case PhaseBetting:
		return d.Betting
	case PhaseSpinPreparation:
		return d.SpinPreparation
	case PhaseSpinning:
		return d.Spinning
	case PhaseResult:
		return d.Result
	case PhaseTransition:
		return d.Transition
	default:
		return 0
	}
}
