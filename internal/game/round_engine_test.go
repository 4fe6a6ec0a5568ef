package game

import (
	"context"
	"io"
	rand "math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/hub"
	"github.com/lox/luckywheel/internal/ledger"
	"github.com/lox/luckywheel/internal/storage"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// fixedStrategy always picks the same outcome so tests can script wins
// and losses.
type fixedStrategy struct{ outcome int }

func (s fixedStrategy) Select(engine.ExposureSnapshot, *rand.Rand) int { return s.outcome }
func (fixedStrategy) Name() string                                    { return "fixed" }

type capturePublisher struct {
	mu     sync.Mutex
	events []engine.Event
}

func (p *capturePublisher) Publish(ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) ofType(et engine.EventType) []engine.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []engine.Event
	for _, ev := range p.events {
		if ev.EventType() == et {
			out = append(out, ev)
		}
	}
	return out
}

type engineFixture struct {
	t     *testing.T
	clock *quartz.Mock
	store *storage.MemoryStore
	pub   *capturePublisher
	eng   *RoundEngine
}

func newEngineFixture(t *testing.T, outcome int) *engineFixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Strategy = fixedStrategy{outcome: outcome}
	cfg.Seed = 1

	clock := quartz.NewMock(t)
	store := storage.NewMemoryStore()
	pub := &capturePublisher{}
	eng := NewRoundEngine(cfg, clock, store, pub, testLogger())
	return &engineFixture{t: t, clock: clock, store: store, pub: pub, eng: eng}
}

func (f *engineFixture) boot() (engine.Phase, time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.eng.wallets.Load(context.Background()))
	phase, deadline, err := f.eng.recover(context.Background())
	require.NoError(f.t, err)
	return phase, deadline
}

func (f *engineFixture) fund(userID string, amount int64) {
	f.t.Helper()
	_, err := f.eng.Deposit(context.Background(), userID, decimal.NewFromInt(amount))
	require.NoError(f.t, err)
}

func (f *engineFixture) place(userID string, number int, amount int64) *engine.Wager {
	f.t.Helper()
	w, _, err := f.eng.PlaceWager(context.Background(), ledger.PlacementRequest{
		UserID: userID,
		Kind:   engine.KindSingleNumber,
		Number: number,
		Amount: decimal.NewFromInt(amount),
		Source: engine.SourcePrimary,
	})
	require.NoError(f.t, err)
	return w
}

func (f *engineFixture) step(reason engine.TransitionReason) (engine.Phase, bool) {
	f.t.Helper()
	phase, _, ok := f.eng.advance(reason)
	return phase, ok
}

func TestRoundLifecycle(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 7)
	phase, deadline := f.boot()
	assert.Equal(t, engine.PhaseBetting, phase)
	assert.Equal(t, f.clock.Now().Add(30*time.Second), deadline)

	f.fund("alice", 100)
	f.fund("bob", 100)
	f.place("alice", 7, 20)
	f.place("bob", 3, 10)

	// BETTING -> SPIN_PREPARATION fixes the outcome.
	phase, ok := f.step(engine.ReasonNatural)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseSpinPreparation, phase)
	rec, err := f.store.LatestRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec.WinningOutcome, "outcome persists as soon as it is fixed")
	assert.Equal(t, 7, *rec.WinningOutcome)
	assert.Empty(t, f.pub.ofType(engine.EventTypeRoundWinner), "outcome stays secret until settlement")

	// SPIN_PREPARATION -> SPINNING
	phase, ok = f.step(engine.ReasonNatural)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseSpinning, phase)
	assert.Empty(t, f.pub.ofType(engine.EventTypeRoundWinner))

	// SPINNING -> RESULT settles and reveals.
	phase, ok = f.step(engine.ReasonNatural)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseResult, phase)

	winners := f.pub.ofType(engine.EventTypeRoundWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, 7, winners[0].(engine.RoundWinnerEvent).Outcome)

	assert.True(t, f.eng.Balance("alice").Primary.Equal(decimal.NewFromInt(180)))
	assert.True(t, f.eng.Balance("bob").Primary.Equal(decimal.NewFromInt(90)))

	rec, err = f.store.LatestRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec.SettledAt)
	assert.True(t, rec.TotalWagered.Equal(decimal.NewFromInt(30)))
	assert.True(t, rec.TotalPayout.Equal(decimal.NewFromInt(100)))
	assert.True(t, rec.HouseProfitLoss.Equal(decimal.NewFromInt(-70)))

	// RESULT -> TRANSITION -> next round
	phase, ok = f.step(engine.ReasonNatural)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseTransition, phase)

	phase, ok = f.step(engine.ReasonNatural)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseBetting, phase)
	snap, found := f.eng.Snapshot()
	require.True(t, found)
	assert.Equal(t, int64(2), snap.RoundNumber)
	assert.Equal(t, 0, snap.Distribution.TotalWagers, "exposure resets per round")
}

func TestWagerRejectedOutsideBetting(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()
	f.fund("alice", 100)

	_, ok := f.step(engine.ReasonNatural)
	require.True(t, ok)

	_, _, err := f.eng.PlaceWager(context.Background(), ledger.PlacementRequest{
		UserID: "alice",
		Kind:   engine.KindSingleNumber,
		Number: 1,
		Amount: decimal.NewFromInt(10),
		Source: engine.SourcePrimary,
	})
	assert.ErrorIs(t, err, engine.ErrBettingClosed)
}

func TestManualSpinEndsBettingEarly(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()

	phase, ok := f.step(engine.ReasonManualSpin)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseSpinPreparation, phase)

	// Outside BETTING the override is a no-op, not a skipped phase.
	phase, ok = f.step(engine.ReasonManualSpin)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseSpinPreparation, phase)
}

func TestExtendBetting(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	_, deadline := f.boot()

	phase, newDeadline, ok := f.eng.advance(engine.ReasonExtendBetting)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseBetting, phase)
	assert.Equal(t, deadline.Add(15*time.Second), newDeadline)
}

func TestEmergencyStopRefundsAndSuspends(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()
	f.fund("alice", 100)
	f.place("alice", 4, 30)
	require.True(t, f.eng.Balance("alice").Primary.Equal(decimal.NewFromInt(70)))

	_, ok := f.step(engine.ReasonEmergencyStop)
	assert.False(t, ok, "engine parks after an emergency stop")

	// Full refund of the pending wager.
	assert.True(t, f.eng.Balance("alice").Primary.Equal(decimal.NewFromInt(100)))

	rec, err := f.store.LatestRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", rec.Status)
	rows, err := f.store.WagersForRound(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "VOID", rows[0].Status)

	_, _, err = f.eng.PlaceWager(context.Background(), ledger.PlacementRequest{
		UserID: "alice",
		Kind:   engine.KindSingleNumber,
		Number: 1,
		Amount: decimal.NewFromInt(10),
		Source: engine.SourcePrimary,
	})
	assert.ErrorIs(t, err, engine.ErrGameSuspended)

	// RESUME starts a fresh round.
	phase, ok := f.step(engine.ReasonResume)
	require.True(t, ok)
	assert.Equal(t, engine.PhaseBetting, phase)
	snap, found := f.eng.Snapshot()
	require.True(t, found)
	assert.Equal(t, int64(2), snap.RoundNumber)
	assert.False(t, snap.Suspended)
}

func TestRecoverResumesBettingWindow(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()
	f.fund("alice", 100)
	f.place("alice", 4, 30)

	// A second engine over the same store picks up mid-window.
	cfg := DefaultConfig()
	cfg.Strategy = fixedStrategy{outcome: 0}
	cfg.Seed = 1
	eng2 := NewRoundEngine(cfg, f.clock, f.store, &capturePublisher{}, testLogger())
	require.NoError(t, eng2.wallets.Load(context.Background()))

	phase, deadline, err := eng2.recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseBetting, phase)

	snap, found := eng2.Snapshot()
	require.True(t, found)
	assert.Equal(t, int64(1), snap.RoundNumber, "same round, not a new one")
	assert.Equal(t, 1, snap.Distribution.TotalWagers, "exposure rebuilt from storage")
	assert.Equal(t, snap.BettingEnd, deadline)
}

func TestRecoverCancelsStaleBettingRound(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()
	f.fund("alice", 100)
	f.place("alice", 4, 30)

	// Downtime past the betting deadline.
	f.clock.Advance(time.Minute)

	cfg := DefaultConfig()
	cfg.Strategy = fixedStrategy{outcome: 0}
	cfg.Seed = 1
	eng2 := NewRoundEngine(cfg, f.clock, f.store, &capturePublisher{}, testLogger())
	require.NoError(t, eng2.wallets.Load(context.Background()))

	phase, _, err := eng2.recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseBetting, phase)

	snap, found := eng2.Snapshot()
	require.True(t, found)
	assert.Equal(t, int64(2), snap.RoundNumber, "stale round cancelled, fresh one started")
	assert.True(t, eng2.Balance("alice").Primary.Equal(decimal.NewFromInt(100)), "stale wager refunded")
}

func TestRecoverResumesInterruptedSettlement(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 4)
	f.boot()
	f.fund("alice", 100)
	f.place("alice", 4, 20)

	// Crash after the outcome was fixed but before settlement.
	_, ok := f.step(engine.ReasonNatural)
	require.True(t, ok)
	_, ok = f.step(engine.ReasonNatural)
	require.True(t, ok)

	cfg := DefaultConfig()
	cfg.Strategy = fixedStrategy{outcome: 4}
	cfg.Seed = 1
	pub2 := &capturePublisher{}
	eng2 := NewRoundEngine(cfg, f.clock, f.store, pub2, testLogger())
	require.NoError(t, eng2.wallets.Load(context.Background()))

	phase, _, err := eng2.recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseResult, phase)

	assert.True(t, eng2.Balance("alice").Primary.Equal(decimal.NewFromInt(180)), "settlement completed on recovery")
	require.Len(t, pub2.ofType(engine.EventTypeRoundWinner), 1)

	rec, err := f.store.LatestRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec.SettledAt)
}

func TestSnapshotEventsCarryCountdown(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()
	f.fund("alice", 100)
	f.place("alice", 4, 10)

	events := f.eng.SnapshotEvents()
	require.Len(t, events, 3)
	assert.Equal(t, engine.EventTypeRoundUpdate, events[0].EventType())
	assert.Equal(t, engine.EventTypePhaseUpdate, events[1].EventType(), "new subscribers see the countdown without waiting for a tick")
	assert.Equal(t, engine.EventTypeBetDistribution, events[2].EventType())

	phase := events[1].(engine.PhaseUpdateEvent)
	assert.Equal(t, int64(1), phase.RoundNumber)

	dist := events[2].(engine.BetDistributionEvent)
	assert.Equal(t, 1, dist.TotalWagers)
}

func TestSubscribeDuringPlacementDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Strategy = fixedStrategy{}
	cfg.Seed = 1
	h := hub.New(testLogger(), 4)
	eng := NewRoundEngine(cfg, quartz.NewMock(t), storage.NewMemoryStore(), h, testLogger())
	h.SetSnapshot(eng.SnapshotEvents)

	ctx := context.Background()
	require.NoError(t, eng.wallets.Load(ctx))
	_, _, err := eng.recover(ctx)
	require.NoError(t, err)
	_, err = eng.Deposit(ctx, "alice", decimal.NewFromInt(100000))
	require.NoError(t, err)

	// Placement publishes while holding the engine lock; Subscribe runs
	// the engine snapshot. Interleaving the two must never wedge.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _, err := eng.PlaceWager(ctx, ledger.PlacementRequest{
					UserID: "alice",
					Kind:   engine.KindSingleNumber,
					Number: i % engine.NumOutcomes,
					Amount: decimal.NewFromInt(1),
					Source: engine.SourcePrimary,
				})
				if err != nil {
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Subscribe("alice").Close()
			}
		}()
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("wager placement deadlocked against a subscribing connection")
	}
}

func TestSettlementFailureSuspendsBeforeReveal(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 0)
	f.boot()

	// Sabotage the round so settlement cannot find an outcome.
	f.eng.mu.Lock()
	require.NoError(t, f.eng.round.Advance(engine.PhaseSpinPreparation))
	require.NoError(t, f.eng.round.Advance(engine.PhaseSpinning))
	f.eng.mu.Unlock()

	_, ok := f.step(engine.ReasonNatural)
	assert.False(t, ok, "engine parks on settlement failure")
	assert.Empty(t, f.pub.ofType(engine.EventTypeRoundWinner), "no reveal without a settlement commit")

	errs := f.pub.ofType(engine.EventTypeError)
	require.NotEmpty(t, errs)
	assert.Equal(t, "SETTLEMENT_FAILURE", errs[0].(engine.ErrorEvent).Code)
}
