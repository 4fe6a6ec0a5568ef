package engine

import "errors"

// Placement and lifecycle errors. Validation errors are returned
// synchronously to the caller and never broadcast; systemic errors are
// broadcast as a round-level error event.
var (
	ErrBettingClosed          = errors.New("betting window closed for this round")
	ErrInvalidBetAmount       = errors.New("bet amount outside configured limits")
	ErrInvalidWalletSelection = errors.New("secondary wallet not usable at current primary balance")
	ErrInsufficientBalance    = errors.New("insufficient balance for bet")
	ErrGameSuspended          = errors.New("game suspended by operator")
	ErrSettlementFailure      = errors.New("settlement failed")
	ErrRoundNotFound          = errors.New("round not found")
)

// ErrorCode returns the wire error code for a placement or lifecycle
// error, or "INTERNAL" for anything outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrBettingClosed):
		return "BETTING_CLOSED"
	case errors.Is(err, ErrInvalidBetAmount):
		return "INVALID_BET_AMOUNT"
	case errors.Is(err, ErrInvalidWalletSelection):
		return "INVALID_WALLET_SELECTION"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrGameSuspended):
		return "GAME_SUSPENDED"
	case errors.Is(err, ErrSettlementFailure):
		return "SETTLEMENT_FAILURE"
	case errors.Is(err, ErrRoundNotFound):
		return "ROUND_NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
