package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// TransitionReason says why a phase transition is happening. Natural
// transitions come from the phase timer; the rest are admin overrides
// pushed through the same command queue so ordering against the timer is
// always well-defined.
type TransitionReason string

const (
	ReasonNatural       TransitionReason = "natural"
	ReasonEmergencyStop TransitionReason = "EMERGENCY_STOP"
	ReasonManualSpin    TransitionReason = "MANUAL_SPIN"
	ReasonExtendBetting TransitionReason = "EXTEND_BETTING"
	ReasonResume        TransitionReason = "RESUME"
)

// AdvanceFunc executes one transition and returns the phase to schedule
// next with its deadline. Returning ok=false parks the scheduler (engine
// suspended or halted); a later forced command can wake it again.
type AdvanceFunc func(reason TransitionReason) (next Phase, deadline time.Time, ok bool)

// TickFunc receives the per-second countdown for the current phase.
type TickFunc func(phase Phase, secondsRemaining int)

// PhaseScheduler drives the round lifecycle timing. All transitions,
// natural and forced, execute on the single Run goroutine: only one
// transition is ever in flight.
type PhaseScheduler struct {
	clock   quartz.Clock
	logger  *log.Logger
	advance AdvanceFunc
	tick    TickFunc
	cmds    chan TransitionReason

	mu       sync.Mutex
	phase    Phase
	deadline time.Time
	idle     bool
}

// NewPhaseScheduler creates a scheduler. advance is required; tick may be
// nil if countdown events are not wanted.
func NewPhaseScheduler(clock quartz.Clock, logger *log.Logger, advance AdvanceFunc, tick TickFunc) *PhaseScheduler {
	return &PhaseScheduler{
		clock:   clock,
		logger:  logger.WithPrefix("scheduler"),
		advance: advance,
		tick:    tick,
		cmds:    make(chan TransitionReason, 8),
		idle:    true,
	}
}

// Force enqueues an admin override. It is serialized against natural timer
// transitions by the Run loop.
func (s *PhaseScheduler) Force(reason TransitionReason) error {
	select {
	case s.cmds <- reason:
		return nil
	default:
		return fmt.Errorf("scheduler command queue full, %s dropped", reason)
	}
}

// CurrentPhase returns the phase being timed and the whole seconds
// remaining until its deadline.
func (s *PhaseScheduler) CurrentPhase() (Phase, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idle {
		return s.phase, 0
	}
	return s.phase, s.secondsRemainingLocked()
}

func (s *PhaseScheduler) secondsRemainingLocked() int {
	remaining := s.deadline.Sub(s.clock.Now())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// Run times phases starting at the given phase/deadline until ctx is
// cancelled. On process restart the caller derives phase and deadline from
// persisted phase boundaries, so the remaining time is reconstructed
// rather than reset to the full duration.
func (s *PhaseScheduler) Run(ctx context.Context, phase Phase, deadline time.Time) error {
	s.mu.Lock()
	s.phase = phase
	s.deadline = deadline
	s.idle = false
	s.mu.Unlock()

	wait := deadline.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	timer := s.clock.NewTimer(wait)
	defer timer.Stop()
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	s.logger.Info("scheduler running", "phase", phase, "deadline", deadline)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			s.mu.Lock()
			idle := s.idle
			p := s.phase
			remaining := s.secondsRemainingLocked()
			s.mu.Unlock()
			if !idle && s.tick != nil {
				s.tick(p, remaining)
			}

		case <-timer.C:
			s.mu.Lock()
			idle := s.idle
			s.mu.Unlock()
			if idle {
				continue
			}
			s.runTransition(ReasonNatural, timer)

		case reason := <-s.cmds:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			s.runTransition(reason, timer)
		}
	}
}

// runTransition executes one transition on the Run goroutine and re-arms
// the phase timer from the advance result.
func (s *PhaseScheduler) runTransition(reason TransitionReason, timer *quartz.Timer) {
	next, deadline, ok := s.advance(reason)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.idle = true
		s.logger.Warn("scheduler parked", "reason", reason)
		return
	}
	s.phase = next
	s.deadline = deadline
	s.idle = false

	wait := deadline.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
	s.logger.Debug("phase scheduled", "phase", next, "deadline", deadline, "reason", reason)
}
