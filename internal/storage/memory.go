package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store used by tests and engine-only runs.
// It mirrors the transactional semantics of the SQLite implementation,
// including the PENDING guard on settlement.
type MemoryStore struct {
	mu      sync.Mutex
	rounds  map[string]*RoundRecord
	wagers  map[string]*WagerRecord
	wallets map[string]*WalletRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds:  make(map[string]*RoundRecord),
		wagers:  make(map[string]*WagerRecord),
		wallets: make(map[string]*WalletRecord),
	}
}

func (s *MemoryStore) SaveRound(_ context.Context, r *RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if existing, ok := s.rounds[r.ID]; ok {
		if existing.WinningOutcome != nil {
			cp.WinningOutcome = existing.WinningOutcome
		}
		if existing.SettledAt != nil {
			cp.SettledAt = existing.SettledAt
		}
	}
	s.rounds[r.ID] = &cp
	return nil
}

func (s *MemoryStore) LatestRound(_ context.Context) (*RoundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *RoundRecord
	for _, r := range s.rounds {
		if latest == nil || r.Number > latest.Number {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) AppendWager(_ context.Context, w *WagerRecord, wallet *WalletRecord, totalWagered decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wagers[w.ID]; ok {
		return fmt.Errorf("storage: wager %s already exists", w.ID)
	}
	cp := *w
	s.wagers[w.ID] = &cp
	wcp := *wallet
	s.wallets[wallet.UserID] = &wcp
	if r, ok := s.rounds[w.RoundID]; ok {
		r.TotalWagered = totalWagered
	}
	return nil
}

func (s *MemoryStore) SettleWager(_ context.Context, wagerID, status string, payout decimal.Decimal, wallet *WalletRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wagers[wagerID]
	if !ok {
		return false, fmt.Errorf("storage: wager %s not found", wagerID)
	}
	if w.Status != "PENDING" {
		return false, nil
	}
	w.Status = status
	w.Payout = payout
	if wallet != nil {
		wcp := *wallet
		s.wallets[wallet.UserID] = &wcp
	}
	return true, nil
}

func (s *MemoryStore) CompleteRound(_ context.Context, roundID string, totalPayout, houseProfitLoss decimal.Decimal, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return fmt.Errorf("storage: round %s not found", roundID)
	}
	if r.SettledAt != nil {
		return nil
	}
	r.TotalPayout = totalPayout
	r.HouseProfitLoss = houseProfitLoss
	t := settledAt
	r.SettledAt = &t
	return nil
}

func (s *MemoryStore) PendingWagers(_ context.Context, roundID string) ([]WagerRecord, error) {
	return s.wagersWhere(roundID, true), nil
}

func (s *MemoryStore) WagersForRound(_ context.Context, roundID string) ([]WagerRecord, error) {
	return s.wagersWhere(roundID, false), nil
}

func (s *MemoryStore) Wallet(_ context.Context, userID string) (*WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) SaveWallet(_ context.Context, w *WalletRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.wallets[w.UserID] = &cp
	return nil
}

func (s *MemoryStore) Wallets(_ context.Context) ([]WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WalletRecord, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) wagersWhere(roundID string, pendingOnly bool) []WagerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WagerRecord
	for _, w := range s.wagers {
		if w.RoundID != roundID {
			continue
		}
		if pendingOnly && w.Status != "PENDING" {
			continue
		}
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out
}
