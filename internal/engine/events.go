package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies a broadcast topic.
type EventType string

const (
	EventTypeRoundUpdate     EventType = "round_update"
	EventTypePhaseUpdate     EventType = "phase_update"
	EventTypeBetDistribution EventType = "bet_distribution"
	EventTypeRoundWinner     EventType = "round_winner"
	EventTypeBalanceUpdate   EventType = "user_balance_update"
	EventTypeError           EventType = "error"
)

// String returns the topic name of the event type.
func (et EventType) String() string { return string(et) }

// Event is anything the engine publishes to the broadcast layer. Events
// describe already-committed state; publishing them must never block the
// ledger or settlement write path.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
}

// RoundUpdateEvent is published whenever a round's status or boundaries
// change.
type RoundUpdateEvent struct {
	RoundID      string
	RoundNumber  int64
	Status       Phase
	BettingStart time.Time
	BettingEnd   time.Time
	SpinStart    time.Time
	ResultTime   time.Time
	timestamp    time.Time
}

func (e RoundUpdateEvent) EventType() EventType { return EventTypeRoundUpdate }
func (e RoundUpdateEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundUpdateEvent captures the round's current lifecycle state.
func NewRoundUpdateEvent(r *Round, now time.Time) RoundUpdateEvent {
	return RoundUpdateEvent{
		RoundID:      r.ID,
		RoundNumber:  r.Number,
		Status:       r.Status,
		BettingStart: r.BettingStart,
		BettingEnd:   r.BettingEnd,
		SpinStart:    r.SpinStart,
		ResultTime:   r.ResultTime,
		timestamp:    now,
	}
}

// PhaseUpdateEvent is the per-second countdown tick for the current phase.
type PhaseUpdateEvent struct {
	Phase            Phase
	SecondsRemaining int
	RoundNumber      int64
	timestamp        time.Time
}

func (e PhaseUpdateEvent) EventType() EventType { return EventTypePhaseUpdate }
func (e PhaseUpdateEvent) Timestamp() time.Time { return e.timestamp }

// NewPhaseUpdateEvent creates a countdown tick event.
func NewPhaseUpdateEvent(phase Phase, secondsRemaining int, roundNumber int64, now time.Time) PhaseUpdateEvent {
	return PhaseUpdateEvent{
		Phase:            phase,
		SecondsRemaining: secondsRemaining,
		RoundNumber:      roundNumber,
		timestamp:        now,
	}
}

// BetDistributionEvent carries the per-outcome count and amount view of
// the round's wagers, with parity wagers fanned out across their covered
// outcomes.
type BetDistributionEvent struct {
	RoundID      string
	Distribution [NumOutcomes]OutcomeStat
	TotalWagers  int
	TotalAmount  decimal.Decimal
	timestamp    time.Time
}

func (e BetDistributionEvent) EventType() EventType { return EventTypeBetDistribution }
func (e BetDistributionEvent) Timestamp() time.Time { return e.timestamp }

// NewBetDistributionEvent creates a distribution update from an exposure
// snapshot.
func NewBetDistributionEvent(roundID string, snap ExposureSnapshot, now time.Time) BetDistributionEvent {
	return BetDistributionEvent{
		RoundID:      roundID,
		Distribution: snap.Distribution,
		TotalWagers:  snap.TotalWagers,
		TotalAmount:  snap.TotalAmount,
		timestamp:    now,
	}
}

// RoundWinnerEvent reveals the winning outcome. It is published only after
// settlement has committed.
type RoundWinnerEvent struct {
	RoundID     string
	RoundNumber int64
	Outcome     int
	Parity      Parity
	timestamp   time.Time
}

func (e RoundWinnerEvent) EventType() EventType { return EventTypeRoundWinner }
func (e RoundWinnerEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundWinnerEvent creates the outcome-reveal event.
func NewRoundWinnerEvent(r *Round, outcome int, now time.Time) RoundWinnerEvent {
	return RoundWinnerEvent{
		RoundID:     r.ID,
		RoundNumber: r.Number,
		Outcome:     outcome,
		Parity:      ParityOf(outcome),
		timestamp:   now,
	}
}

// BalanceUpdateEvent notifies a single user of their new wallet balances.
type BalanceUpdateEvent struct {
	UserID           string
	PrimaryBalance   decimal.Decimal
	SecondaryBalance decimal.Decimal
	timestamp        time.Time
}

func (e BalanceUpdateEvent) EventType() EventType { return EventTypeBalanceUpdate }
func (e BalanceUpdateEvent) Timestamp() time.Time { return e.timestamp }

// NewBalanceUpdateEvent creates a per-user balance notification.
func NewBalanceUpdateEvent(userID string, primary, secondary decimal.Decimal, now time.Time) BalanceUpdateEvent {
	return BalanceUpdateEvent{
		UserID:           userID,
		PrimaryBalance:   primary,
		SecondaryBalance: secondary,
		timestamp:        now,
	}
}

// ErrorEvent is a round-level systemic error surfaced to operators and
// clients. Validation errors never become ErrorEvents.
type ErrorEvent struct {
	Code      string
	Message   string
	timestamp time.Time
}

func (e ErrorEvent) EventType() EventType { return EventTypeError }
func (e ErrorEvent) Timestamp() time.Time { return e.timestamp }

// NewErrorEvent creates a systemic error event.
func NewErrorEvent(code, message string, now time.Time) ErrorEvent {
	return ErrorEvent{Code: code, Message: message, timestamp: now}
}

// Publisher fans events out to the broadcast layer. Implementations must
// not block the caller.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(event Event)

func (f PublisherFunc) Publish(event Event) { f(event) }

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
