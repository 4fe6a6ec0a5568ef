// Package storage is the persistence collaborator for the round engine.
// It provides per-record atomicity and read-your-writes within a single
// settlement pass; wager records are append-only and a round's winning
// outcome is immutable once set.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// RoundRecord is the persisted shape of a round.
type RoundRecord struct {
	ID              string
	Number          int64
	Status          string
	BettingStart    time.Time
	BettingEnd      time.Time
	SpinStart       time.Time
	ResultTime      time.Time
	WinningOutcome  *int
	TotalWagered    decimal.Decimal
	TotalPayout     decimal.Decimal
	HouseProfitLoss decimal.Decimal
	SettledAt       *time.Time
}

// WagerRecord is the persisted shape of a wager. Value is "0".."9" or
// "ODD"/"EVEN" depending on Kind.
type WagerRecord struct {
	ID             string
	UserID         string
	RoundID        string
	Kind           string
	Value          string
	Amount         decimal.Decimal
	Source         string
	Status         string
	Payout         decimal.Decimal
	PlacedAt       time.Time
	DebitPrimary   decimal.Decimal
	DebitSecondary decimal.Decimal
}

// WalletRecord is the persisted wallet pair for one user.
type WalletRecord struct {
	UserID           string
	PrimaryBalance   decimal.Decimal
	SecondaryBalance decimal.Decimal
}

// Store is the storage boundary the engine writes through.
//
// AppendWager and SettleWager are the two transactional entry points: a
// wager row never exists without its debit having been applied to the
// wallet row, and a settlement credit is never applied twice because the
// status flip is guarded on the previous PENDING state.
type Store interface {
	// SaveRound inserts or updates the full round row. The winning
	// outcome, once non-nil, is never overwritten with a different value.
	SaveRound(ctx context.Context, r *RoundRecord) error

	// LatestRound returns the round with the highest number, or
	// ErrNotFound.
	LatestRound(ctx context.Context) (*RoundRecord, error)

	// AppendWager atomically inserts the wager row, stores the debited
	// wallet balances and updates the round's running total.
	AppendWager(ctx context.Context, w *WagerRecord, wallet *WalletRecord, totalWagered decimal.Decimal) error

	// SettleWager atomically flips a PENDING wager to its final status,
	// records the payout and stores the credited wallet balances. It
	// returns false (and no error) if the wager was not PENDING, which
	// lets an interrupted settlement pass resume without double-paying.
	SettleWager(ctx context.Context, wagerID, status string, payout decimal.Decimal, wallet *WalletRecord) (bool, error)

	// CompleteRound stores the settlement aggregates and marks the round
	// settled.
	CompleteRound(ctx context.Context, roundID string, totalPayout, houseProfitLoss decimal.Decimal, settledAt time.Time) error

	// PendingWagers returns the round's wagers still awaiting settlement.
	PendingWagers(ctx context.Context, roundID string) ([]WagerRecord, error)

	// WagersForRound returns every wager of the round.
	WagersForRound(ctx context.Context, roundID string) ([]WagerRecord, error)

	// Wallet returns one user's wallet, or ErrNotFound.
	Wallet(ctx context.Context, userID string) (*WalletRecord, error)

	// SaveWallet upserts wallet balances outside the wager path
	// (deposits, withdrawals, admin adjustments).
	SaveWallet(ctx context.Context, w *WalletRecord) error

	// Wallets returns all wallets, used to warm the in-process store at
	// boot.
	Wallets(ctx context.Context) ([]WalletRecord, error)

	Close() error
}
