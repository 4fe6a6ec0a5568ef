package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/game"
	"github.com/lox/luckywheel/internal/ledger"
)

// MessageType identifies a WebSocket message.
type MessageType string

const (
	// Client → Server
	MessageTypeAuth       MessageType = "auth"
	MessageTypePlaceWager MessageType = "place_wager"
	MessageTypeGetBalance MessageType = "get_balance"

	// Server → Client
	MessageTypeAuthResponse  MessageType = "auth_response"
	MessageTypeWagerAccepted MessageType = "wager_accepted"
	MessageTypeError         MessageType = "error"

	// Broadcast events share their topic names with the engine.
	MessageTypeRoundUpdate     = MessageType(engine.EventTypeRoundUpdate)
	MessageTypePhaseUpdate     = MessageType(engine.EventTypePhaseUpdate)
	MessageTypeBetDistribution = MessageType(engine.EventTypeBetDistribution)
	MessageTypeRoundWinner     = MessageType(engine.EventTypeRoundWinner)
	MessageTypeBalanceUpdate   = MessageType(engine.EventTypeBalanceUpdate)
)

func (t MessageType) String() string { return string(t) }

// Message is the base WebSocket envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a message with the given payload and timestamp.
func NewMessage(messageType MessageType, data interface{}, now time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: now,
	}, nil
}

// Client → Server payloads

type AuthData struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

type PlaceWagerData struct {
	Kind   string `json:"kind"`   // SINGLE_NUMBER or PARITY
	Value  string `json:"value"`  // "0".."9" or "ODD"/"EVEN"
	Amount string `json:"amount"` // decimal string
	Source string `json:"source"` // PRIMARY or SECONDARY
}

// Server → Client payloads

type AuthResponseData struct {
	Success          bool   `json:"success"`
	UserID           string `json:"userId,omitempty"`
	PrimaryBalance   string `json:"primaryBalance,omitempty"`
	SecondaryBalance string `json:"secondaryBalance,omitempty"`
	Error            string `json:"error,omitempty"`
}

type WagerAcceptedData struct {
	WagerID          string `json:"wagerId"`
	RoundID          string `json:"roundId"`
	Kind             string `json:"kind"`
	Value            string `json:"value"`
	Amount           string `json:"amount"`
	Source           string `json:"source"`
	PrimaryBalance   string `json:"primaryBalance"`
	SecondaryBalance string `json:"secondaryBalance"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoundUpdateData struct {
	RoundID      string    `json:"roundId"`
	RoundNumber  int64     `json:"roundNumber"`
	Status       string    `json:"status"`
	BettingStart time.Time `json:"bettingStart"`
	BettingEnd   time.Time `json:"bettingEnd"`
	SpinStart    time.Time `json:"spinStart,omitempty"`
	ResultTime   time.Time `json:"resultTime,omitempty"`
}

type PhaseUpdateData struct {
	Phase            string `json:"phase"`
	SecondsRemaining int    `json:"secondsRemaining"`
	RoundNumber      int64  `json:"roundNumber"`
}

type OutcomeStatData struct {
	Outcome int    `json:"outcome"`
	Count   int    `json:"count"`
	Amount  string `json:"amount"`
}

type BetDistributionData struct {
	RoundID      string            `json:"roundId"`
	Distribution []OutcomeStatData `json:"distribution"`
	TotalWagers  int               `json:"totalWagers"`
	TotalAmount  string            `json:"totalAmount"`
}

type RoundWinnerData struct {
	RoundID     string `json:"roundId"`
	RoundNumber int64  `json:"roundNumber"`
	Outcome     int    `json:"outcome"`
	Parity      string `json:"parity"`
}

type BalanceUpdateData struct {
	UserID           string `json:"userId"`
	PrimaryBalance   string `json:"primaryBalance"`
	SecondaryBalance string `json:"secondaryBalance"`
}

// RoundStatusData is the REST view of the current round.
type RoundStatusData struct {
	RoundID          string    `json:"roundId"`
	RoundNumber      int64     `json:"roundNumber"`
	Status           string    `json:"status"`
	SecondsRemaining int       `json:"secondsRemaining"`
	BettingStart     time.Time `json:"bettingStart"`
	BettingEnd       time.Time `json:"bettingEnd"`
	Outcome          *int      `json:"outcome,omitempty"`
	TotalWagered     string    `json:"totalWagered"`
	TotalPayout      string    `json:"totalPayout"`
	HouseProfitLoss  string    `json:"houseProfitLoss"`
	TotalWagers      int       `json:"totalWagers"`
	Suspended        bool      `json:"suspended"`
}

// EventMessage converts an engine event to its wire message.
func EventMessage(ev engine.Event) (*Message, error) {
	switch e := ev.(type) {
	case engine.RoundUpdateEvent:
		return NewMessage(MessageTypeRoundUpdate, RoundUpdateData{
			RoundID:      e.RoundID,
			RoundNumber:  e.RoundNumber,
			Status:       e.Status.String(),
			BettingStart: e.BettingStart,
			BettingEnd:   e.BettingEnd,
			SpinStart:    e.SpinStart,
			ResultTime:   e.ResultTime,
		}, e.Timestamp())

	case engine.PhaseUpdateEvent:
		return NewMessage(MessageTypePhaseUpdate, PhaseUpdateData{
			Phase:            e.Phase.String(),
			SecondsRemaining: e.SecondsRemaining,
			RoundNumber:      e.RoundNumber,
		}, e.Timestamp())

	case engine.BetDistributionEvent:
		dist := make([]OutcomeStatData, engine.NumOutcomes)
		for o, stat := range e.Distribution {
			dist[o] = OutcomeStatData{Outcome: o, Count: stat.Count, Amount: stat.Amount.String()}
		}
		return NewMessage(MessageTypeBetDistribution, BetDistributionData{
			RoundID:      e.RoundID,
			Distribution: dist,
			TotalWagers:  e.TotalWagers,
			TotalAmount:  e.TotalAmount.String(),
		}, e.Timestamp())

	case engine.RoundWinnerEvent:
		return NewMessage(MessageTypeRoundWinner, RoundWinnerData{
			RoundID:     e.RoundID,
			RoundNumber: e.RoundNumber,
			Outcome:     e.Outcome,
			Parity:      e.Parity.String(),
		}, e.Timestamp())

	case engine.BalanceUpdateEvent:
		return NewMessage(MessageTypeBalanceUpdate, BalanceUpdateData{
			UserID:           e.UserID,
			PrimaryBalance:   e.PrimaryBalance.String(),
			SecondaryBalance: e.SecondaryBalance.String(),
		}, e.Timestamp())

	case engine.ErrorEvent:
		return NewMessage(MessageTypeError, ErrorData{
			Code:    e.Code,
			Message: e.Message,
		}, e.Timestamp())

	default:
		return nil, fmt.Errorf("unknown event type %s", ev.EventType())
	}
}

// RoundStatusFromSnapshot converts an engine snapshot to the REST view.
func RoundStatusFromSnapshot(snap game.RoundSnapshot) RoundStatusData {
	return RoundStatusData{
		RoundID:          snap.RoundID,
		RoundNumber:      snap.RoundNumber,
		Status:           snap.Status.String(),
		SecondsRemaining: snap.SecondsRemaining,
		BettingStart:     snap.BettingStart,
		BettingEnd:       snap.BettingEnd,
		Outcome:          snap.Outcome,
		TotalWagered:     snap.TotalWagered.String(),
		TotalPayout:      snap.TotalPayout.String(),
		HouseProfitLoss:  snap.HouseProfitLoss.String(),
		TotalWagers:      snap.Distribution.TotalWagers,
		Suspended:        snap.Suspended,
	}
}

// ParsePlacementRequest validates a place_wager payload into a ledger
// request.
func ParsePlacementRequest(userID string, data PlaceWagerData) (ledger.PlacementRequest, error) {
	amount, err := decimal.NewFromString(data.Amount)
	if err != nil {
		return ledger.PlacementRequest{}, fmt.Errorf("bad amount %q", data.Amount)
	}
	source, ok := engine.ParseWalletSource(data.Source)
	if !ok {
		return ledger.PlacementRequest{}, fmt.Errorf("bad wallet source %q", data.Source)
	}
	kind, ok := engine.ParseWagerKind(data.Kind)
	if !ok {
		return ledger.PlacementRequest{}, fmt.Errorf("bad wager kind %q", data.Kind)
	}

	req := ledger.PlacementRequest{UserID: userID, Kind: kind, Amount: amount, Source: source}
	switch kind {
	case engine.KindSingleNumber:
		n := -1
		if len(data.Value) == 1 && data.Value[0] >= '0' && data.Value[0] <= '9' {
			n = int(data.Value[0] - '0')
		}
		if n < 0 {
			return ledger.PlacementRequest{}, fmt.Errorf("bad number value %q", data.Value)
		}
		req.Number = n
	case engine.KindParity:
		p, ok := engine.ParseParity(data.Value)
		if !ok {
			return ledger.PlacementRequest{}, fmt.Errorf("bad parity value %q", data.Value)
		}
		req.Parity = p
	}
	return req, nil
}
