package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WagerKind distinguishes a bet on one number from a bet on a parity.
type WagerKind int

const (
	KindSingleNumber WagerKind = iota
	KindParity
)

func (k WagerKind) String() string {
	if k == KindParity {
		return "PARITY"
	}
	return "SINGLE_NUMBER"
}

// ParseWagerKind converts a wire kind string back to a WagerKind.
func ParseWagerKind(s string) (WagerKind, bool) {
	switch s {
	case "SINGLE_NUMBER":
		return KindSingleNumber, true
	case "PARITY":
		return KindParity, true
	default:
		return 0, false
	}
}

// WalletSource names the wallet a wager draws from. SECONDARY means
// combined mode: the debit drains primary first and the remainder comes
// from the secondary balance.
type WalletSource int

const (
	SourcePrimary WalletSource = iota
	SourceSecondary
)

func (s WalletSource) String() string {
	if s == SourceSecondary {
		return "SECONDARY"
	}
	return "PRIMARY"
}

// ParseWalletSource converts a wire wallet source string.
func ParseWalletSource(s string) (WalletSource, bool) {
	switch s {
	case "PRIMARY":
		return SourcePrimary, true
	case "SECONDARY":
		return SourceSecondary, true
	default:
		return 0, false
	}
}

// WagerStatus is the settlement state of a wager. PENDING transitions to
// exactly one of WON, LOST or VOID, only during settlement (or
// cancellation) of its round.
type WagerStatus int

const (
	WagerPending WagerStatus = iota
	WagerWon
	WagerLost
	WagerVoid
)

func (s WagerStatus) String() string {
	switch s {
	case WagerWon:
		return "WON"
	case WagerLost:
		return "LOST"
	case WagerVoid:
		return "VOID"
	default:
		return "PENDING"
	}
}

// ParseWagerStatus converts a stored status string.
func ParseWagerStatus(s string) (WagerStatus, bool) {
	switch s {
	case "PENDING":
		return WagerPending, true
	case "WON":
		return WagerWon, true
	case "LOST":
		return WagerLost, true
	case "VOID":
		return WagerVoid, true
	default:
		return 0, false
	}
}

// Wager is a single user bet on a number or parity for a given round. A
// PARITY wager is one ledger row; its fan-out over five numbers is a
// computed view (CoveredOutcomes), never materialised as extra rows, so
// the ledger's row count always equals the number of user actions.
type Wager struct {
	ID       string
	UserID   string
	RoundID  string
	Kind     WagerKind
	Number   int    // SINGLE_NUMBER only
	Parity   Parity // PARITY only
	Amount   decimal.Decimal
	Source   WalletSource
	Status   WagerStatus
	Payout   decimal.Decimal
	PlacedAt time.Time

	// How the debit split across the wallet pair at placement time.
	// Combined-mode wagers drain primary first; cancellation refunds
	// exactly this split.
	DebitPrimary   decimal.Decimal
	DebitSecondary decimal.Decimal
}

// NewSingleNumberWager creates a PENDING wager on one number.
func NewSingleNumberWager(userID, roundID string, number int, amount decimal.Decimal, source WalletSource, now time.Time) (*Wager, error) {
	if number < 0 || number >= NumOutcomes {
		return nil, fmt.Errorf("wager number %d out of range", number)
	}
	return &Wager{
		ID:       uuid.New().String(),
		UserID:   userID,
		RoundID:  roundID,
		Kind:     KindSingleNumber,
		Number:   number,
		Amount:   amount,
		Source:   source,
		Status:   WagerPending,
		Payout:   decimal.Zero,
		PlacedAt: now,
	}, nil
}

// NewParityWager creates a PENDING wager on ODD or EVEN.
func NewParityWager(userID, roundID string, parity Parity, amount decimal.Decimal, source WalletSource, now time.Time) *Wager {
	return &Wager{
		ID:       uuid.New().String(),
		UserID:   userID,
		RoundID:  roundID,
		Kind:     KindParity,
		Parity:   parity,
		Amount:   amount,
		Source:   source,
		Status:   WagerPending,
		Payout:   decimal.Zero,
		PlacedAt: now,
	}
}

// CoveredOutcomes returns the outcomes this wager pays on: one number for
// SINGLE_NUMBER, the five numbers sharing the parity for PARITY.
func (w *Wager) CoveredOutcomes() []int {
	if w.Kind == KindSingleNumber {
		return []int{w.Number}
	}
	covered := make([]int, 0, NumOutcomes/2)
	for o := 0; o < NumOutcomes; o++ {
		if w.Parity.Matches(o) {
			covered = append(covered, o)
		}
	}
	return covered
}

// Matches reports whether the wager wins against the given outcome.
func (w *Wager) Matches(outcome int) bool {
	if w.Kind == KindSingleNumber {
		return w.Number == outcome
	}
	return w.Parity.Matches(outcome)
}

// Value returns the wire representation of the wagered value: "0".."9"
// or "ODD"/"EVEN".
func (w *Wager) Value() string {
	if w.Kind == KindSingleNumber {
		return strconv.Itoa(w.Number)
	}
	return w.Parity.String()
}
