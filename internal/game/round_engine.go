// Package game wires the round lifecycle together: the phase scheduler,
// the bet ledger, outcome selection and settlement, with every state
// change funnelled through a single engine mutex so wager placement and
// phase transitions never interleave.
package game

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/ledger"
	"github.com/lox/luckywheel/internal/randutil"
	"github.com/lox/luckywheel/internal/storage"
)

// Config holds the tunable parts of the round engine.
type Config struct {
	Durations engine.Durations
	Ledger    ledger.Config
	Strategy  engine.SelectionStrategy

	// Seed fixes the outcome RNG for reproducible runs. Zero seeds from
	// the clock.
	Seed int64

	// ExtendBettingBy is added to the betting deadline by the
	// EXTEND_BETTING override.
	ExtendBettingBy time.Duration
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Durations:       engine.DefaultDurations(),
		Ledger:          ledger.DefaultConfig(),
		Strategy:        engine.UniformStrategy{},
		ExtendBettingBy: 15 * time.Second,
	}
}

// RoundEngine runs the continuous round loop. All transitions execute on
// the scheduler goroutine and all placements on caller goroutines, but
// both paths hold the engine mutex, so the betting-window check a wager
// passes can never be invalidated by a concurrent phase change.
type RoundEngine struct {
	cfg      Config
	clock    quartz.Clock
	logger   *log.Logger
	store    storage.Store
	wallets  *ledger.WalletStore
	ledger   *ledger.BetLedger
	settler  *ledger.SettlementEngine
	exposure *engine.ExposureTracker
	rng      *rand.Rand
	pub      engine.Publisher
	sched    *engine.PhaseScheduler

	mu        sync.Mutex
	round     *engine.Round
	wagers    []*engine.Wager
	deadline  time.Time
	suspended bool
}

// NewRoundEngine assembles an engine over the given store and publisher.
func NewRoundEngine(cfg Config, clock quartz.Clock, store storage.Store, pub engine.Publisher, logger *log.Logger) *RoundEngine {
	if cfg.Strategy == nil {
		cfg.Strategy = engine.UniformStrategy{}
	}
	if pub == nil {
		pub = engine.NopPublisher{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}

	wallets := ledger.NewWalletStore(store)
	e := &RoundEngine{
		cfg:      cfg,
		clock:    clock,
		logger:   logger.WithPrefix("engine"),
		store:    store,
		wallets:  wallets,
		ledger:   ledger.NewBetLedger(cfg.Ledger, store, wallets, logger),
		settler:  ledger.NewSettlementEngine(cfg.Ledger, store, wallets, logger),
		exposure: engine.NewExposureTracker(),
		rng:      randutil.New(seed),
		pub:      pub,
	}
	e.sched = engine.NewPhaseScheduler(clock, logger, e.advance, e.tick)
	return e
}

// Run warms the wallet store, recovers the round state from storage and
// drives the phase loop until ctx is cancelled.
func (e *RoundEngine) Run(ctx context.Context) error {
	if err := e.wallets.Load(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	phase, deadline, err := e.recover(ctx)
	if err != nil {
		return fmt.Errorf("engine: recover: %w", err)
	}
	return e.sched.Run(ctx, phase, deadline)
}

// recover reconstructs the position in the round lifecycle from the last
// persisted round. A round interrupted mid-settlement is settled before
// play continues; a round whose outcome was never fixed cannot be
// settled fairly after downtime and is cancelled with full refunds.
func (e *RoundEngine) recover(ctx context.Context) (engine.Phase, time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.LatestRound(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return e.startRound(ctx, 1)
	}
	if err != nil {
		return 0, time.Time{}, err
	}

	round, err := roundFromRecord(rec)
	if err != nil {
		return 0, time.Time{}, err
	}
	now := e.clock.Now()
	d := e.cfg.Durations

	switch round.Status {
	case engine.PhaseCancelled:
		return e.startRound(ctx, round.Number+1)

	case engine.PhaseBetting:
		if now.Before(round.BettingEnd) {
			if err := e.resumeBetting(ctx, round); err != nil {
				return 0, time.Time{}, err
			}
			return engine.PhaseBetting, round.BettingEnd, nil
		}
		if err := e.cancelStale(ctx, round); err != nil {
			return 0, time.Time{}, err
		}
		return e.startRound(ctx, round.Number+1)

	case engine.PhaseSpinPreparation, engine.PhaseSpinning:
		if _, ok := round.Outcome(); !ok {
			if err := e.cancelStale(ctx, round); err != nil {
				return 0, time.Time{}, err
			}
			return e.startRound(ctx, round.Number+1)
		}
		e.round = round
		if err := e.resumeSettlement(ctx, now); err != nil {
			return 0, time.Time{}, err
		}
		return engine.PhaseResult, e.deadline, nil

	case engine.PhaseResult:
		e.round = round
		if !round.Settled() {
			if err := e.resumeSettlement(ctx, now); err != nil {
				return 0, time.Time{}, err
			}
			return engine.PhaseResult, e.deadline, nil
		}
		e.deadline = laterOf(round.ResultTime.Add(d.Result), now)
		return engine.PhaseResult, e.deadline, nil

	case engine.PhaseTransition:
		e.round = round
		e.deadline = laterOf(round.ResultTime.Add(d.Result).Add(d.Transition), now)
		return engine.PhaseTransition, e.deadline, nil

	default:
		return 0, time.Time{}, fmt.Errorf("round %d in unexpected phase %s", round.Number, round.Status)
	}
}

// resumeBetting rehydrates the in-flight wager list and exposure view
// for a betting round that survived a restart.
func (e *RoundEngine) resumeBetting(ctx context.Context, round *engine.Round) error {
	wagers, err := e.settler.PendingWagers(ctx, round.ID)
	if err != nil {
		return err
	}
	e.round = round
	e.wagers = wagers
	e.exposure.Reset()
	for _, w := range wagers {
		e.exposure.Record(w.CoveredOutcomes(), w.Amount, e.cfg.Ledger.PayoutMultiplier)
	}
	e.deadline = round.BettingEnd
	e.logger.Info("resuming betting round", "round", round.Number, "wagers", len(wagers))
	return nil
}

// resumeSettlement finishes an interrupted settlement and positions the
// engine at the start of RESULT. The PENDING guard in storage makes the
// re-run safe.
func (e *RoundEngine) resumeSettlement(ctx context.Context, now time.Time) error {
	wagers, err := e.settler.PendingWagers(ctx, e.round.ID)
	if err != nil {
		return err
	}
	e.wagers = wagers
	e.logger.Info("resuming settlement", "round", e.round.Number, "pending", len(wagers))

	summary, err := e.settler.Settle(ctx, e.round, e.wagers, now)
	if err != nil {
		return err
	}
	for e.round.Status != engine.PhaseResult {
		next, _ := e.round.Status.Next()
		if err := e.round.Advance(next); err != nil {
			return err
		}
	}
	if err := e.saveRound(ctx); err != nil {
		return err
	}
	e.publishSettled(summary, now)
	e.deadline = now.Add(e.cfg.Durations.Result)
	return nil
}

// cancelStale voids a round that cannot continue after downtime.
func (e *RoundEngine) cancelStale(ctx context.Context, round *engine.Round) error {
	wagers, err := e.settler.PendingWagers(ctx, round.ID)
	if err != nil {
		return err
	}
	if _, err := e.settler.Cancel(ctx, round, wagers); err != nil {
		return err
	}
	if err := round.Advance(engine.PhaseCancelled); err != nil {
		return err
	}
	if err := e.store.SaveRound(ctx, roundRecord(round)); err != nil {
		return err
	}
	e.logger.Warn("stale round cancelled on recovery", "round", round.Number, "refunded", len(wagers))
	return nil
}

// advance is the scheduler callback. It executes exactly one transition
// under the engine mutex and reports the next phase deadline.
func (e *RoundEngine) advance(reason engine.TransitionReason) (engine.Phase, time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := context.Background()
	now := e.clock.Now()

	switch reason {
	case engine.ReasonEmergencyStop:
		return e.emergencyStop(ctx, now)
	case engine.ReasonResume:
		return e.resume(ctx, now)
	case engine.ReasonExtendBetting:
		return e.extendBetting(ctx, now)
	case engine.ReasonManualSpin:
		if e.round == nil {
			return 0, time.Time{}, false
		}
		if e.round.Status != engine.PhaseBetting {
			e.logger.Warn("manual spin ignored outside betting phase")
			return e.current()
		}
		// Falls into the natural BETTING transition below.
	}

	if e.suspended || e.round == nil {
		return 0, time.Time{}, false
	}

	switch e.round.Status {
	case engine.PhaseBetting:
		return e.enterSpinPreparation(ctx, now)
	case engine.PhaseSpinPreparation:
		return e.enterSpinning(ctx, now)
	case engine.PhaseSpinning:
		return e.enterResult(ctx, now)
	case engine.PhaseResult:
		return e.enterTransition(ctx, now)
	case engine.PhaseTransition:
		phase, deadline, err := e.startRound(ctx, e.round.Number+1)
		if err != nil {
			e.systemError(ctx, err, now)
			return 0, time.Time{}, false
		}
		return phase, deadline, true
	default:
		return 0, time.Time{}, false
	}
}

func (e *RoundEngine) current() (engine.Phase, time.Time, bool) {
	return e.round.Status, e.deadline, true
}

// enterSpinPreparation closes betting and fixes the winning outcome. The
// outcome is decided here, once, and never revisited.
func (e *RoundEngine) enterSpinPreparation(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	if err := e.round.Advance(engine.PhaseSpinPreparation); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.round.SpinStart = now.Add(e.cfg.Durations.SpinPreparation)

	outcome := e.cfg.Strategy.Select(e.exposure.Snapshot(), e.rng)
	if err := e.round.SetOutcome(outcome); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.logger.Debug("outcome fixed",
		"round", e.round.Number,
		"strategy", e.cfg.Strategy.Name(),
		"liability", e.exposure.LiabilityIfOutcome(outcome))

	if err := e.saveRound(ctx); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	e.deadline = e.round.SpinStart
	return engine.PhaseSpinPreparation, e.deadline, true
}

func (e *RoundEngine) enterSpinning(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	if err := e.round.Advance(engine.PhaseSpinning); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.round.ResultTime = now.Add(e.cfg.Durations.Spinning)
	if err := e.saveRound(ctx); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	e.deadline = e.round.ResultTime
	return engine.PhaseSpinning, e.deadline, true
}

// enterResult settles the round. The winner broadcast only goes out
// after the settlement commit; on failure the round stays in SPINNING
// and the engine suspends until an operator resumes it.
func (e *RoundEngine) enterResult(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	summary, err := e.settler.Settle(ctx, e.round, e.wagers, now)
	if err != nil {
		e.logger.Error("settlement failed, engine suspended", "round", e.round.Number, "error", err)
		e.pub.Publish(engine.NewErrorEvent(engine.ErrorCode(err), "settlement failed", now))
		e.suspended = true
		return 0, time.Time{}, false
	}

	if err := e.round.Advance(engine.PhaseResult); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	if err := e.saveRound(ctx); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.publishSettled(summary, now)
	e.deadline = now.Add(e.cfg.Durations.Result)
	return engine.PhaseResult, e.deadline, true
}

func (e *RoundEngine) enterTransition(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	if err := e.round.Advance(engine.PhaseTransition); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	if err := e.saveRound(ctx); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	e.deadline = now.Add(e.cfg.Durations.Transition)
	return engine.PhaseTransition, e.deadline, true
}

// startRound opens a fresh betting round. Caller holds the mutex.
func (e *RoundEngine) startRound(ctx context.Context, number int64) (engine.Phase, time.Time, error) {
	now := e.clock.Now()
	e.round = engine.NewRound(number, now, e.cfg.Durations)
	e.wagers = nil
	e.exposure.Reset()
	e.deadline = e.round.BettingEnd

	if err := e.saveRound(ctx); err != nil {
		return 0, time.Time{}, err
	}
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	e.logger.Info("round started", "round", number, "betting_ends", e.round.BettingEnd)
	return engine.PhaseBetting, e.round.BettingEnd, nil
}

// emergencyStop cancels the current round with full refunds and parks
// the engine. Play resumes only on an explicit RESUME.
func (e *RoundEngine) emergencyStop(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	e.suspended = true
	if e.round == nil || e.round.Status.Terminal() {
		return 0, time.Time{}, false
	}

	balances, err := e.settler.Cancel(ctx, e.round, e.wagers)
	if err != nil {
		e.logger.Error("refund pass failed during emergency stop", "round", e.round.Number, "error", err)
		e.pub.Publish(engine.NewErrorEvent(engine.ErrorCode(err), "refund failed during emergency stop", now))
		return 0, time.Time{}, false
	}
	if err := e.round.Advance(engine.PhaseCancelled); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	if err := e.saveRound(ctx); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	for userID, w := range balances {
		e.pub.Publish(engine.NewBalanceUpdateEvent(userID, w.Primary, w.Secondary, now))
	}
	e.logger.Warn("emergency stop: round cancelled", "round", e.round.Number, "refunded", len(balances))
	return 0, time.Time{}, false
}

// resume wakes a suspended engine. An interrupted settlement is retried
// first; otherwise a fresh round begins.
func (e *RoundEngine) resume(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	if !e.suspended {
		return e.current()
	}
	e.suspended = false

	if e.round != nil && e.round.Status == engine.PhaseSpinning && !e.round.Settled() {
		e.logger.Info("resume: retrying settlement", "round", e.round.Number)
		return e.enterResult(ctx, now)
	}

	number := int64(1)
	if e.round != nil {
		number = e.round.Number + 1
	}
	phase, deadline, err := e.startRound(ctx, number)
	if err != nil {
		e.systemError(ctx, err, now)
		e.suspended = true
		return 0, time.Time{}, false
	}
	e.logger.Info("engine resumed", "round", number)
	return phase, deadline, true
}

// extendBetting pushes the betting deadline out. Ignored outside
// BETTING.
func (e *RoundEngine) extendBetting(ctx context.Context, now time.Time) (engine.Phase, time.Time, bool) {
	if e.suspended || e.round == nil || e.round.Status != engine.PhaseBetting {
		e.logger.Warn("extend betting ignored outside betting phase")
		if e.round == nil || e.suspended {
			return 0, time.Time{}, false
		}
		return e.current()
	}
	e.round.BettingEnd = e.round.BettingEnd.Add(e.cfg.ExtendBettingBy)
	if err := e.saveRound(ctx); err != nil {
		e.systemError(ctx, err, now)
		return 0, time.Time{}, false
	}
	e.deadline = e.round.BettingEnd
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	e.logger.Info("betting extended", "round", e.round.Number, "betting_ends", e.round.BettingEnd)
	return engine.PhaseBetting, e.deadline, true
}

// tick relays the per-second countdown as a broadcast event.
func (e *RoundEngine) tick(phase engine.Phase, secondsRemaining int) {
	e.mu.Lock()
	var number int64
	if e.round != nil {
		number = e.round.Number
	}
	e.mu.Unlock()
	e.pub.Publish(engine.NewPhaseUpdateEvent(phase, secondsRemaining, number, e.clock.Now()))
}

func (e *RoundEngine) publishSettled(summary *ledger.SettlementSummary, now time.Time) {
	e.pub.Publish(engine.NewRoundUpdateEvent(e.round, now))
	e.pub.Publish(engine.NewRoundWinnerEvent(e.round, summary.Outcome, now))
	for userID, w := range summary.Balances {
		e.pub.Publish(engine.NewBalanceUpdateEvent(userID, w.Primary, w.Secondary, now))
	}
}

// systemError logs and broadcasts a non-recoverable transition error and
// leaves the engine parked.
func (e *RoundEngine) systemError(_ context.Context, err error, now time.Time) {
	e.logger.Error("engine halted on transition error", "error", err)
	e.pub.Publish(engine.NewErrorEvent(engine.ErrorCode(err), err.Error(), now))
	e.suspended = true
}

// PlaceWager places a bet on the current round. The betting-window check
// and the wallet debit happen under the engine mutex, so a wager
// accepted here is always settled by the round it was checked against.
func (e *RoundEngine) PlaceWager(ctx context.Context, req ledger.PlacementRequest) (*engine.Wager, ledger.Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.suspended {
		return nil, ledger.Wallet{}, engine.ErrGameSuspended
	}
	if e.round == nil {
		return nil, ledger.Wallet{}, engine.ErrRoundNotFound
	}

	now := e.clock.Now()
	w, balance, err := e.ledger.PlaceWager(ctx, e.round, req, now)
	if err != nil {
		return nil, ledger.Wallet{}, err
	}
	e.wagers = append(e.wagers, w)
	e.exposure.Record(w.CoveredOutcomes(), w.Amount, e.cfg.Ledger.PayoutMultiplier)

	e.pub.Publish(engine.NewBetDistributionEvent(e.round.ID, e.exposure.Snapshot(), now))
	e.pub.Publish(engine.NewBalanceUpdateEvent(w.UserID, balance.Primary, balance.Secondary, now))
	return w, balance, nil
}

// Deposit credits a user's primary wallet outside the wager path.
func (e *RoundEngine) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (ledger.Wallet, error) {
	balance, err := e.wallets.Deposit(ctx, userID, amount)
	if err != nil {
		return ledger.Wallet{}, err
	}
	e.pub.Publish(engine.NewBalanceUpdateEvent(userID, balance.Primary, balance.Secondary, e.clock.Now()))
	return balance, nil
}

// Balance returns a user's current wallet.
func (e *RoundEngine) Balance(userID string) ledger.Wallet {
	return e.wallets.Balance(userID)
}

// EmergencyStop cancels the current round, refunds all pending wagers
// and suspends play.
func (e *RoundEngine) EmergencyStop() error { return e.sched.Force(engine.ReasonEmergencyStop) }

// ManualSpin ends the betting phase immediately.
func (e *RoundEngine) ManualSpin() error { return e.sched.Force(engine.ReasonManualSpin) }

// ExtendBetting pushes the current betting deadline out.
func (e *RoundEngine) ExtendBetting() error { return e.sched.Force(engine.ReasonExtendBetting) }

// Resume restarts play after a suspension.
func (e *RoundEngine) Resume() error { return e.sched.Force(engine.ReasonResume) }

// SnapshotEvents returns the catch-up events a new subscriber receives:
// the current round state, the phase countdown as it stands right now
// (so the client does not wait for the next tick), and the betting
// distribution so far.
func (e *RoundEngine) SnapshotEvents() []engine.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return nil
	}
	now := e.clock.Now()
	phase, remaining := e.sched.CurrentPhase()
	return []engine.Event{
		engine.NewRoundUpdateEvent(e.round, now),
		engine.NewPhaseUpdateEvent(phase, remaining, e.round.Number, now),
		engine.NewBetDistributionEvent(e.round.ID, e.exposure.Snapshot(), now),
	}
}

// RoundSnapshot is a read-only view of the current round for status
// queries. The winning outcome is only present once settlement has
// committed.
type RoundSnapshot struct {
	RoundID          string
	RoundNumber      int64
	Status           engine.Phase
	SecondsRemaining int
	BettingStart     time.Time
	BettingEnd       time.Time
	SpinStart        time.Time
	ResultTime       time.Time
	Outcome          *int
	TotalWagered     decimal.Decimal
	TotalPayout      decimal.Decimal
	HouseProfitLoss  decimal.Decimal
	Distribution     engine.ExposureSnapshot
	Suspended        bool
}

// Snapshot returns the current round state, or false if no round exists
// yet.
func (e *RoundEngine) Snapshot() (RoundSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return RoundSnapshot{}, false
	}
	_, remaining := e.sched.CurrentPhase()
	snap := RoundSnapshot{
		RoundID:          e.round.ID,
		RoundNumber:      e.round.Number,
		Status:           e.round.Status,
		SecondsRemaining: remaining,
		BettingStart:     e.round.BettingStart,
		BettingEnd:       e.round.BettingEnd,
		SpinStart:        e.round.SpinStart,
		ResultTime:       e.round.ResultTime,
		TotalWagered:     e.round.TotalWagered,
		TotalPayout:      e.round.TotalPayout,
		HouseProfitLoss:  e.round.HouseProfitLoss,
		Distribution:     e.exposure.Snapshot(),
		Suspended:        e.suspended,
	}
	if o, ok := e.round.Outcome(); ok && e.round.Settled() {
		v := o
		snap.Outcome = &v
	}
	return snap, true
}

// roundRecord converts a round to its persisted shape.
func roundRecord(r *engine.Round) *storage.RoundRecord {
	rec := &storage.RoundRecord{
		ID:              r.ID,
		Number:          r.Number,
		Status:          r.Status.String(),
		BettingStart:    r.BettingStart,
		BettingEnd:      r.BettingEnd,
		SpinStart:       r.SpinStart,
		ResultTime:      r.ResultTime,
		TotalWagered:    r.TotalWagered,
		TotalPayout:     r.TotalPayout,
		HouseProfitLoss: r.HouseProfitLoss,
		SettledAt:       r.SettledAt,
	}
	if o, ok := r.Outcome(); ok {
		v := o
		rec.WinningOutcome = &v
	}
	return rec
}

// roundFromRecord rebuilds a round from its persisted shape.
func roundFromRecord(rec *storage.RoundRecord) (*engine.Round, error) {
	status, ok := engine.ParsePhase(rec.Status)
	if !ok {
		return nil, fmt.Errorf("round %d: unknown status %q", rec.Number, rec.Status)
	}
	r := &engine.Round{
		ID:              rec.ID,
		Number:          rec.Number,
		Status:          status,
		BettingStart:    rec.BettingStart,
		BettingEnd:      rec.BettingEnd,
		SpinStart:       rec.SpinStart,
		ResultTime:      rec.ResultTime,
		TotalWagered:    rec.TotalWagered,
		TotalPayout:     rec.TotalPayout,
		HouseProfitLoss: rec.HouseProfitLoss,
		SettledAt:       rec.SettledAt,
	}
	if rec.WinningOutcome != nil {
		r.RestoreOutcome(*rec.WinningOutcome)
	}
	return r, nil
}

func (e *RoundEngine) saveRound(ctx context.Context) error {
	return e.store.SaveRound(ctx, roundRecord(e.round))
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
