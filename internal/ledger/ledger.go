package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/storage"
)

// Config carries the money rules of the game.
type Config struct {
	// MinBet and MaxBet bound a single wager amount, inclusive.
	MinBet decimal.Decimal
	MaxBet decimal.Decimal

	// SecondaryThreshold is the highest primary balance at which the
	// secondary wallet may still be selected.
	SecondaryThreshold decimal.Decimal

	// PayoutMultiplier is applied to a winning wager's amount.
	PayoutMultiplier decimal.Decimal

	// CashbackPercent of a losing combined-wallet wager is credited back
	// to the secondary wallet.
	CashbackPercent decimal.Decimal

	// CloseGrace shrinks the betting window from its end: wagers arriving
	// within CloseGrace of the betting deadline are rejected.
	CloseGrace time.Duration
}

// DefaultConfig returns the standard game rules.
func DefaultConfig() Config {
	return Config{
		MinBet:             decimal.NewFromInt(1),
		MaxBet:             decimal.NewFromInt(1000),
		SecondaryThreshold: decimal.NewFromInt(10),
		PayoutMultiplier:   decimal.NewFromInt(5),
		CashbackPercent:    decimal.NewFromFloat(0.10),
		CloseGrace:         0,
	}
}

// PlacementRequest is a user's ask to put money on the current round.
type PlacementRequest struct {
	UserID string
	Kind   engine.WagerKind
	Number int           // KindSingleNumber only
	Parity engine.Parity // KindParity only
	Amount decimal.Decimal
	Source engine.WalletSource
}

// BetLedger validates and records wagers for the round in progress. Each
// accepted wager is exactly one row; nothing in the placement path ever
// expands a parity wager into per-number rows.
type BetLedger struct {
	cfg     Config
	store   storage.Store
	wallets *WalletStore
	logger  *log.Logger
}

// NewBetLedger creates a ledger over the given wallet store and
// persistence layer.
func NewBetLedger(cfg Config, store storage.Store, wallets *WalletStore, logger *log.Logger) *BetLedger {
	return &BetLedger{
		cfg:     cfg,
		store:   store,
		wallets: wallets,
		logger:  logger.WithPrefix("ledger"),
	}
}

// Config returns the money rules the ledger was built with.
func (l *BetLedger) Config() Config { return l.cfg }

// PlaceWager validates the request in order (betting window, amount
// limits, wallet selection, balance), debits the wallet, persists the
// wager row and updates the round's running total. Two identical
// requests from the same user are two independent wagers.
//
// The caller serializes placements against phase transitions for the
// round; PlaceWager itself only takes the per-user wallet lock.
func (l *BetLedger) PlaceWager(ctx context.Context, round *engine.Round, req PlacementRequest, now time.Time) (*engine.Wager, Wallet, error) {
	if !round.BettingOpen(now, l.cfg.CloseGrace) {
		return nil, Wallet{}, engine.ErrBettingClosed
	}
	if req.Amount.LessThan(l.cfg.MinBet) || req.Amount.GreaterThan(l.cfg.MaxBet) {
		return nil, Wallet{}, fmt.Errorf("%w: %s not in [%s, %s]",
			engine.ErrInvalidBetAmount, req.Amount, l.cfg.MinBet, l.cfg.MaxBet)
	}

	var wager *engine.Wager
	var err error
	switch req.Kind {
	case engine.KindSingleNumber:
		wager, err = engine.NewSingleNumberWager(req.UserID, round.ID, req.Number, req.Amount, req.Source, now)
		if err != nil {
			return nil, Wallet{}, fmt.Errorf("%w: %s", engine.ErrInvalidBetAmount, err)
		}
	case engine.KindParity:
		wager = engine.NewParityWager(req.UserID, round.ID, req.Parity, req.Amount, req.Source, now)
	default:
		return nil, Wallet{}, fmt.Errorf("unknown wager kind %d", req.Kind)
	}

	total := round.TotalWagered.Add(req.Amount)
	balance, err := l.wallets.Update(req.UserID, func(w Wallet) (Wallet, error) {
		next, err := l.debit(w, wager)
		if err != nil {
			return Wallet{}, err
		}
		if err := l.store.AppendWager(ctx, wagerRecord(wager), next.Record(req.UserID), total); err != nil {
			return Wallet{}, fmt.Errorf("persist wager: %w", err)
		}
		return next, nil
	})
	if err != nil {
		return nil, Wallet{}, err
	}

	round.TotalWagered = total
	l.logger.Debug("wager placed",
		"wager", wager.ID,
		"user", req.UserID,
		"round", round.Number,
		"kind", wager.Kind,
		"value", wager.Value(),
		"amount", req.Amount,
		"source", wager.Source)
	return wager, balance, nil
}

// debit validates wallet selection and balance against the locked wallet
// state and applies the debit, recording the split on the wager.
func (l *BetLedger) debit(w Wallet, wager *engine.Wager) (Wallet, error) {
	switch wager.Source {
	case engine.SourcePrimary:
		if w.Primary.LessThan(wager.Amount) {
			return Wallet{}, fmt.Errorf("%w: primary balance %s < %s",
				engine.ErrInsufficientBalance, w.Primary, wager.Amount)
		}
		wager.DebitPrimary = wager.Amount
		wager.DebitSecondary = decimal.Zero
		return Wallet{Primary: w.Primary.Sub(wager.Amount), Secondary: w.Secondary}, nil

	case engine.SourceSecondary:
		// Combined mode is only reachable once the primary balance has
		// drained to the threshold.
		if w.Primary.GreaterThan(l.cfg.SecondaryThreshold) {
			return Wallet{}, fmt.Errorf("%w: primary balance %s above threshold %s",
				engine.ErrInvalidWalletSelection, w.Primary, l.cfg.SecondaryThreshold)
		}
		if w.Combined().LessThan(wager.Amount) {
			return Wallet{}, fmt.Errorf("%w: combined balance %s < %s",
				engine.ErrInsufficientBalance, w.Combined(), wager.Amount)
		}
		fromPrimary := decimal.Min(w.Primary, wager.Amount)
		wager.DebitPrimary = fromPrimary
		wager.DebitSecondary = wager.Amount.Sub(fromPrimary)
		return Wallet{
			Primary:   w.Primary.Sub(wager.DebitPrimary),
			Secondary: w.Secondary.Sub(wager.DebitSecondary),
		}, nil

	default:
		return Wallet{}, fmt.Errorf("unknown wallet source %d", wager.Source)
	}
}

// wagerRecord converts a wager to its persisted shape.
func wagerRecord(w *engine.Wager) *storage.WagerRecord {
	return &storage.WagerRecord{
		ID:             w.ID,
		UserID:         w.UserID,
		RoundID:        w.RoundID,
		Kind:           w.Kind.String(),
		Value:          w.Value(),
		Amount:         w.Amount,
		Source:         w.Source.String(),
		Status:         w.Status.String(),
		Payout:         w.Payout,
		PlacedAt:       w.PlacedAt,
		DebitPrimary:   w.DebitPrimary,
		DebitSecondary: w.DebitSecondary,
	}
}

// WagerFromRecord rebuilds a wager from its persisted shape. Used when a
// restart resumes an interrupted settlement.
func WagerFromRecord(r storage.WagerRecord) (*engine.Wager, error) {
	kind, ok := engine.ParseWagerKind(r.Kind)
	if !ok {
		return nil, fmt.Errorf("wager %s: unknown kind %q", r.ID, r.Kind)
	}
	source, ok := engine.ParseWalletSource(r.Source)
	if !ok {
		return nil, fmt.Errorf("wager %s: unknown source %q", r.ID, r.Source)
	}
	status, ok := engine.ParseWagerStatus(r.Status)
	if !ok {
		return nil, fmt.Errorf("wager %s: unknown status %q", r.ID, r.Status)
	}

	w := &engine.Wager{
		ID:             r.ID,
		UserID:         r.UserID,
		RoundID:        r.RoundID,
		Kind:           kind,
		Amount:         r.Amount,
		Source:         source,
		Status:         status,
		Payout:         r.Payout,
		PlacedAt:       r.PlacedAt,
		DebitPrimary:   r.DebitPrimary,
		DebitSecondary: r.DebitSecondary,
	}
	switch kind {
	case engine.KindSingleNumber:
		n, err := strconv.Atoi(r.Value)
		if err != nil || n < 0 || n >= engine.NumOutcomes {
			return nil, fmt.Errorf("wager %s: bad number value %q", r.ID, r.Value)
		}
		w.Number = n
	case engine.KindParity:
		p, ok := engine.ParseParity(r.Value)
		if !ok {
			return nil, fmt.Errorf("wager %s: bad parity value %q", r.ID, r.Value)
		}
		w.Parity = p
	}
	return w, nil
}
