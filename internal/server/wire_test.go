package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/luckywheel/internal/engine"
)

func TestParsePlacementRequest(t *testing.T) {
	t.Parallel()

	req, err := ParsePlacementRequest("alice", PlaceWagerData{
		Kind: "SINGLE_NUMBER", Value: "7", Amount: "25", Source: "PRIMARY",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", req.UserID)
	assert.Equal(t, engine.KindSingleNumber, req.Kind)
	assert.Equal(t, 7, req.Number)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, engine.SourcePrimary, req.Source)

	req, err = ParsePlacementRequest("alice", PlaceWagerData{
		Kind: "PARITY", Value: "ODD", Amount: "10.50", Source: "SECONDARY",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.KindParity, req.Kind)
	assert.Equal(t, engine.ParityOdd, req.Parity)
	assert.Equal(t, engine.SourceSecondary, req.Source)

	for name, data := range map[string]PlaceWagerData{
		"bad amount":      {Kind: "SINGLE_NUMBER", Value: "7", Amount: "all in", Source: "PRIMARY"},
		"bad kind":        {Kind: "LOTTERY", Value: "7", Amount: "10", Source: "PRIMARY"},
		"bad source":      {Kind: "SINGLE_NUMBER", Value: "7", Amount: "10", Source: "SAVINGS"},
		"number too big":  {Kind: "SINGLE_NUMBER", Value: "10", Amount: "10", Source: "PRIMARY"},
		"negative number": {Kind: "SINGLE_NUMBER", Value: "-1", Amount: "10", Source: "PRIMARY"},
		"bad parity":      {Kind: "PARITY", Value: "PRIME", Amount: "10", Source: "PRIMARY"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlacementRequest("alice", data)
			assert.Error(t, err)
		})
	}
}

func TestEventMessageRoundWinner(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	round := engine.NewRound(5, now, engine.DefaultDurations())

	msg, err := EventMessage(engine.NewRoundWinnerEvent(round, 7, now))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRoundWinner, msg.Type)
	assert.Equal(t, now, msg.Timestamp)

	var data RoundWinnerData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, int64(5), data.RoundNumber)
	assert.Equal(t, 7, data.Outcome)
	assert.Equal(t, "ODD", data.Parity)
}

func TestEventMessageBalanceUpdate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	msg, err := EventMessage(engine.NewBalanceUpdateEvent("alice", decimal.RequireFromString("10.50"), decimal.Zero, now))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeBalanceUpdate, msg.Type)

	var data BalanceUpdateData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "alice", data.UserID)
	assert.Equal(t, "10.5", data.PrimaryBalance)
}

func TestEventMessageDistributionCoversAllOutcomes(t *testing.T) {
	t.Parallel()

	tracker := engine.NewExposureTracker()
	tracker.Record([]int{7}, decimal.NewFromInt(20), decimal.NewFromInt(5))
	tracker.Record([]int{1, 3, 5, 7, 9}, decimal.NewFromInt(10), decimal.NewFromInt(5))

	msg, err := EventMessage(engine.NewBetDistributionEvent("r1", tracker.Snapshot(), time.Now()))
	require.NoError(t, err)

	var data BetDistributionData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	require.Len(t, data.Distribution, engine.NumOutcomes)
	assert.Equal(t, 2, data.TotalWagers)
	assert.Equal(t, "30", data.TotalAmount)
	assert.Equal(t, 2, data.Distribution[7].Count)
	assert.Equal(t, "30", data.Distribution[7].Amount)
	assert.Equal(t, 0, data.Distribution[0].Count)
}
