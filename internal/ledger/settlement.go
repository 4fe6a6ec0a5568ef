package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/storage"
)

// SettlementSummary reports the result of settling one round.
type SettlementSummary struct {
	RoundID         string
	RoundNumber     int64
	Outcome         int
	TotalWagered    decimal.Decimal
	TotalPayout     decimal.Decimal
	HouseProfitLoss decimal.Decimal

	// Settled counts the wagers flipped by this pass. On a clean run it
	// equals the wager count; after resuming an interrupted pass it only
	// counts the remainder.
	Settled int

	// Balances holds the post-settlement wallets of every user whose
	// balance changed, keyed by user ID.
	Balances map[string]Wallet
}

// SettlementEngine resolves a round's wagers against its fixed outcome.
//
// Each wager's status flip and wallet credit commit together in storage
// before the in-memory wallet moves, and the flip is guarded on the
// wager still being PENDING. A settlement pass interrupted by a crash
// can therefore be re-run from the top: already-settled wagers are
// skipped, never paid twice.
type SettlementEngine struct {
	cfg     Config
	store   storage.Store
	wallets *WalletStore
	logger  *log.Logger
}

// NewSettlementEngine creates a settlement engine sharing the ledger's
// rules and wallet store.
func NewSettlementEngine(cfg Config, store storage.Store, wallets *WalletStore, logger *log.Logger) *SettlementEngine {
	return &SettlementEngine{
		cfg:     cfg,
		store:   store,
		wallets: wallets,
		logger:  logger.WithPrefix("settlement"),
	}
}

// Settle resolves every pending wager of the round against its winning
// outcome, then records the round aggregates. The round must have its
// outcome fixed. On success the round is marked settled as of now.
func (s *SettlementEngine) Settle(ctx context.Context, round *engine.Round, wagers []*engine.Wager, now time.Time) (*SettlementSummary, error) {
	outcome, ok := round.Outcome()
	if !ok {
		return nil, fmt.Errorf("%w: round %d has no outcome", engine.ErrSettlementFailure, round.Number)
	}

	summary := &SettlementSummary{
		RoundID:      round.ID,
		RoundNumber:  round.Number,
		Outcome:      outcome,
		TotalWagered: round.TotalWagered,
		Balances:     make(map[string]Wallet),
	}

	for _, w := range wagers {
		if w.Status != engine.WagerPending {
			continue
		}
		applied, err := s.settleOne(ctx, w, outcome, summary)
		if err != nil {
			return nil, fmt.Errorf("%w: wager %s: %v", engine.ErrSettlementFailure, w.ID, err)
		}
		if applied {
			summary.Settled++
		}
	}

	// Aggregate from storage so a resumed pass counts wagers settled
	// before the interruption.
	settled, err := s.store.WagersForRound(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load settled wagers: %v", engine.ErrSettlementFailure, err)
	}
	totalPayout := decimal.Zero
	for _, r := range settled {
		if r.Status == engine.WagerWon.String() {
			totalPayout = totalPayout.Add(r.Payout)
		}
	}
	houseProfitLoss := round.TotalWagered.Sub(totalPayout)

	if err := s.store.CompleteRound(ctx, round.ID, totalPayout, houseProfitLoss, now); err != nil {
		return nil, fmt.Errorf("%w: complete round: %v", engine.ErrSettlementFailure, err)
	}

	round.TotalPayout = totalPayout
	round.HouseProfitLoss = houseProfitLoss
	t := now
	round.SettledAt = &t

	summary.TotalPayout = totalPayout
	summary.HouseProfitLoss = houseProfitLoss
	s.logger.Info("round settled",
		"round", round.Number,
		"outcome", outcome,
		"wagers", summary.Settled,
		"wagered", round.TotalWagered,
		"payout", totalPayout,
		"house", houseProfitLoss)
	return summary, nil
}

// settleOne resolves a single wager: the win credit or loss cashback is
// computed against the locked wallet state and committed durably in the
// same transaction as the status flip.
func (s *SettlementEngine) settleOne(ctx context.Context, w *engine.Wager, outcome int, summary *SettlementSummary) (bool, error) {
	if w.Matches(outcome) {
		payout := w.Amount.Mul(s.cfg.PayoutMultiplier)
		applied := false
		balance, err := s.wallets.Update(w.UserID, func(cur Wallet) (Wallet, error) {
			next := Wallet{Primary: cur.Primary.Add(payout), Secondary: cur.Secondary}
			if w.Source == engine.SourceSecondary {
				// A combined-wallet win clears the bonus balance.
				next.Secondary = decimal.Zero
			}
			ok, err := s.store.SettleWager(ctx, w.ID, engine.WagerWon.String(), payout, next.Record(w.UserID))
			if err != nil {
				return Wallet{}, err
			}
			if !ok {
				return cur, nil
			}
			applied = true
			return next, nil
		})
		if err != nil {
			return false, err
		}
		if !applied {
			w.Status = engine.WagerWon
			w.Payout = payout
			return false, nil
		}
		w.Status = engine.WagerWon
		w.Payout = payout
		summary.Balances[w.UserID] = balance
		return true, nil
	}

	// Losses on the primary wallet need no wallet change, only the
	// durable status flip.
	if w.Source == engine.SourcePrimary {
		ok, err := s.store.SettleWager(ctx, w.ID, engine.WagerLost.String(), decimal.Zero, nil)
		if err != nil {
			return false, err
		}
		w.Status = engine.WagerLost
		return ok, nil
	}

	cashback := w.Amount.Mul(s.cfg.CashbackPercent)
	applied := false
	balance, err := s.wallets.Update(w.UserID, func(cur Wallet) (Wallet, error) {
		next := Wallet{Primary: cur.Primary, Secondary: cur.Secondary.Add(cashback)}
		ok, err := s.store.SettleWager(ctx, w.ID, engine.WagerLost.String(), decimal.Zero, next.Record(w.UserID))
		if err != nil {
			return Wallet{}, err
		}
		if !ok {
			return cur, nil
		}
		applied = true
		return next, nil
	})
	if err != nil {
		return false, err
	}
	w.Status = engine.WagerLost
	if !applied {
		return false, nil
	}
	summary.Balances[w.UserID] = balance
	return true, nil
}

// Cancel voids every pending wager of a cancelled round, refunding the
// exact debit split recorded at placement. It returns the post-refund
// wallets of affected users.
func (s *SettlementEngine) Cancel(ctx context.Context, round *engine.Round, wagers []*engine.Wager) (map[string]Wallet, error) {
	balances := make(map[string]Wallet)
	for _, w := range wagers {
		if w.Status != engine.WagerPending {
			continue
		}
		applied := false
		balance, err := s.wallets.Update(w.UserID, func(cur Wallet) (Wallet, error) {
			next := Wallet{
				Primary:   cur.Primary.Add(w.DebitPrimary),
				Secondary: cur.Secondary.Add(w.DebitSecondary),
			}
			ok, err := s.store.SettleWager(ctx, w.ID, engine.WagerVoid.String(), decimal.Zero, next.Record(w.UserID))
			if err != nil {
				return Wallet{}, err
			}
			if !ok {
				return cur, nil
			}
			applied = true
			return next, nil
		})
		if err != nil {
			return nil, fmt.Errorf("void wager %s: %w", w.ID, err)
		}
		w.Status = engine.WagerVoid
		if applied {
			balances[w.UserID] = balance
			s.logger.Info("wager voided",
				"wager", w.ID,
				"user", w.UserID,
				"round", round.Number,
				"refund_primary", w.DebitPrimary,
				"refund_secondary", w.DebitSecondary)
		}
	}
	return balances, nil
}

// PendingWagers loads and rebuilds the round's unsettled wagers from
// storage. Used when a restart resumes an interrupted settlement or
// cancels a stale round.
func (s *SettlementEngine) PendingWagers(ctx context.Context, roundID string) ([]*engine.Wager, error) {
	records, err := s.store.PendingWagers(ctx, roundID)
	if err != nil {
		return nil, err
	}
	wagers := make([]*engine.Wager, 0, len(records))
	for _, r := range records {
		w, err := WagerFromRecord(r)
		if err != nil {
			return nil, err
		}
		wagers = append(wagers, w)
	}
	return wagers, nil
}
