// Package ledger owns the money side of the game: the dual-wallet
// balances, wager placement and round settlement. All wallet mutations
// funnel through WalletStore.Update so a balance check and the debit it
// authorises always happen under the same lock.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/storage"
)

// Wallet is one user's balance pair. Primary is the main balance;
// Secondary is the bonus balance fed by loss cashback.
type Wallet struct {
	Primary   decimal.Decimal
	Secondary decimal.Decimal
}

// Combined returns the total spendable balance across both wallets.
func (w Wallet) Combined() decimal.Decimal {
	return w.Primary.Add(w.Secondary)
}

// Record converts the wallet to its persisted shape.
func (w Wallet) Record(userID string) *storage.WalletRecord {
	return &storage.WalletRecord{
		UserID:           userID,
		PrimaryBalance:   w.Primary,
		SecondaryBalance: w.Secondary,
	}
}

type walletEntry struct {
	mu     sync.Mutex
	wallet Wallet
}

// WalletStore is the in-process view of all user wallets, warmed from
// storage at boot. Each user has an independent lock, so wallet
// operations for different users never contend.
type WalletStore struct {
	store storage.Store

	mu      sync.Mutex
	entries map[string]*walletEntry
}

// NewWalletStore creates an empty wallet store backed by the given
// persistence layer.
func NewWalletStore(store storage.Store) *WalletStore {
	return &WalletStore{
		store:   store,
		entries: make(map[string]*walletEntry),
	}
}

// Load warms the store from persisted wallet rows.
func (s *WalletStore) Load(ctx context.Context) error {
	records, err := s.store.Wallets(ctx)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.entries[r.UserID] = &walletEntry{wallet: Wallet{
			Primary:   r.PrimaryBalance,
			Secondary: r.SecondaryBalance,
		}}
	}
	return nil
}

func (s *WalletStore) entry(userID string) *walletEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &walletEntry{wallet: Wallet{Primary: decimal.Zero, Secondary: decimal.Zero}}
		s.entries[userID] = e
	}
	return e
}

// Balance returns the user's current wallet. Unknown users have a zero
// wallet.
func (s *WalletStore) Balance(userID string) Wallet {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wallet
}

// Update applies fn to the user's wallet under its lock. fn receives the
// current wallet and returns the replacement; any durable write that
// depends on the balances it read must happen inside fn, so the
// in-memory commit only lands after persistence succeeded. If fn returns
// an error the wallet is left unchanged.
func (s *WalletStore) Update(userID string, fn func(Wallet) (Wallet, error)) (Wallet, error) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.wallet)
	if err != nil {
		return e.wallet, err
	}
	if next.Primary.IsNegative() || next.Secondary.IsNegative() {
		return e.wallet, fmt.Errorf("wallet update for %s would go negative (primary=%s secondary=%s)",
			userID, next.Primary, next.Secondary)
	}
	e.wallet = next
	return next, nil
}

// Deposit credits the user's primary wallet and persists the new
// balances. It is the entry point for funding outside the wager path.
func (s *WalletStore) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, fmt.Errorf("deposit amount must be positive, got %s", amount)
	}
	return s.Update(userID, func(w Wallet) (Wallet, error) {
		next := Wallet{Primary: w.Primary.Add(amount), Secondary: w.Secondary}
		if err := s.store.SaveWallet(ctx, next.Record(userID)); err != nil {
			return Wallet{}, fmt.Errorf("persist deposit for %s: %w", userID, err)
		}
		return next, nil
	})
}
