package hub

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/luckywheel/internal/engine"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func phaseEvent(remaining int) engine.PhaseUpdateEvent {
	return engine.NewPhaseUpdateEvent(engine.PhaseBetting, remaining, 1, time.Now())
}

func balanceEvent(userID string) engine.BalanceUpdateEvent {
	return engine.NewBalanceUpdateEvent(userID, decimal.NewFromInt(10), decimal.Zero, time.Now())
}

func drain(sub *Subscription) []engine.Event {
	var out []engine.Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 0)
	a := h.Subscribe("alice")
	b := h.Subscribe("bob")
	defer a.Close()
	defer b.Close()

	h.Publish(phaseEvent(5))

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
	assert.Equal(t, 2, h.Subscribers())
}

func TestTopicFilter(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 0)
	sub := h.Subscribe("alice", engine.EventTypeRoundWinner)
	defer sub.Close()

	h.Publish(phaseEvent(5))
	h.Publish(engine.NewRoundWinnerEvent(engine.NewRound(1, time.Now(), engine.DefaultDurations()), 7, time.Now()))

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, engine.EventTypeRoundWinner, got[0].EventType())
}

func TestBalanceEventsAreUserScoped(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 0)
	alice := h.Subscribe("alice")
	bob := h.Subscribe("bob")
	anon := h.Subscribe("")
	defer alice.Close()
	defer bob.Close()
	defer anon.Close()

	h.Publish(balanceEvent("alice"))

	require.Len(t, drain(alice), 1)
	assert.Empty(t, drain(bob), "balance updates never reach other users")
	assert.Empty(t, drain(anon), "unauthenticated subscribers see no balances")
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 2)
	slow := h.Subscribe("alice")
	healthy := h.Subscribe("bob")
	defer healthy.Close()

	for i := 0; i < 3; i++ {
		h.Publish(phaseEvent(i))
	}

	assert.Equal(t, 1, h.Subscribers())
	require.Len(t, drain(healthy), 3, "other subscribers are unaffected")

	// The dropped subscriber's channel is closed after the queued events.
	got := drain(slow)
	assert.Len(t, got, 2)
	_, ok := <-slow.Events()
	assert.False(t, ok)
}

func TestSnapshotDeliveredOnSubscribe(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 0)
	round := engine.NewRound(3, time.Now(), engine.DefaultDurations())
	h.SetSnapshot(func() []engine.Event {
		return []engine.Event{
			engine.NewRoundUpdateEvent(round, time.Now()),
			engine.NewPhaseUpdateEvent(engine.PhaseBetting, 17, round.Number, time.Now()),
		}
	})

	sub := h.Subscribe("alice")
	defer sub.Close()
	h.Publish(phaseEvent(5))

	got := drain(sub)
	require.Len(t, got, 3)
	assert.Equal(t, engine.EventTypeRoundUpdate, got[0].EventType(), "snapshot precedes live traffic")
	assert.Equal(t, engine.EventTypePhaseUpdate, got[1].EventType(), "countdown arrives without waiting for the next tick")
	assert.Equal(t, 17, got[1].(engine.PhaseUpdateEvent).SecondsRemaining)
	assert.Equal(t, engine.EventTypePhaseUpdate, got[2].EventType())
	assert.Equal(t, 5, got[2].(engine.PhaseUpdateEvent).SecondsRemaining)
}

func TestSubscribeRunsSnapshotWithoutHubLock(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 0)
	// Snapshot producers hold their own locks and publish to this hub
	// under them. Publishing from inside the snapshot callback stands in
	// for that: it deadlocks if Subscribe still holds the hub lock here.
	h.SetSnapshot(func() []engine.Event {
		h.Publish(phaseEvent(9))
		return []engine.Event{phaseEvent(5)}
	})

	done := make(chan *Subscription, 1)
	go func() { done <- h.Subscribe("alice") }()

	select {
	case sub := <-done:
		defer sub.Close()
		got := drain(sub)
		require.Len(t, got, 1, "the publish predates registration; only the snapshot is queued")
		assert.Equal(t, 5, got[0].(engine.PhaseUpdateEvent).SecondsRemaining)
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe deadlocked against a publishing snapshot producer")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	h := New(testLogger(), 0)
	sub := h.Subscribe("alice")
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, h.Subscribers())
	h.Publish(phaseEvent(5))

	_, ok := <-sub.Events()
	assert.False(t, ok)
}
