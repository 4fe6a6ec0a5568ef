package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
    id              TEXT PRIMARY KEY,
    number          INTEGER NOT NULL UNIQUE,
    status          TEXT    NOT NULL,
    betting_start   INTEGER NOT NULL,
    betting_end     INTEGER NOT NULL,
    spin_start      INTEGER NOT NULL DEFAULT 0,
    result_time     INTEGER NOT NULL DEFAULT 0,
    winning_outcome INTEGER,
    total_wagered   TEXT    NOT NULL DEFAULT '0',
    total_payout    TEXT    NOT NULL DEFAULT '0',
    house_pnl       TEXT    NOT NULL DEFAULT '0',
    settled_at      INTEGER
);

CREATE TABLE IF NOT EXISTS wagers (
    id        TEXT PRIMARY KEY,
    user_id   TEXT    NOT NULL,
    round_id  TEXT    NOT NULL,
    kind      TEXT    NOT NULL,
    value     TEXT    NOT NULL,
    amount    TEXT    NOT NULL,
    source    TEXT    NOT NULL,
    status    TEXT    NOT NULL DEFAULT 'PENDING',
    payout    TEXT    NOT NULL DEFAULT '0',
    placed_at INTEGER NOT NULL,
    debit_primary   TEXT NOT NULL DEFAULT '0',
    debit_secondary TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS wallets (
    user_id           TEXT PRIMARY KEY,
    primary_balance   TEXT    NOT NULL DEFAULT '0',
    secondary_balance TEXT    NOT NULL DEFAULT '0',
    updated_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_number  ON rounds(number DESC);
CREATE INDEX IF NOT EXISTS idx_wagers_round   ON wagers(round_id);
CREATE INDEX IF NOT EXISTS idx_wagers_pending ON wagers(round_id, status);
`

// SQLiteStore implements Store on SQLite (pure Go driver, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveRound(ctx context.Context, r *RoundRecord) error {
	var outcome any
	if r.WinningOutcome != nil {
		outcome = *r.WinningOutcome
	}
	var settledAt any
	if r.SettledAt != nil {
		settledAt = r.SettledAt.UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds
			(id, number, status, betting_start, betting_end, spin_start, result_time,
			 winning_outcome, total_wagered, total_payout, house_pnl, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status          = excluded.status,
			betting_start   = excluded.betting_start,
			betting_end     = excluded.betting_end,
			spin_start      = excluded.spin_start,
			result_time     = excluded.result_time,
			winning_outcome = COALESCE(rounds.winning_outcome, excluded.winning_outcome),
			total_wagered   = excluded.total_wagered,
			total_payout    = excluded.total_payout,
			house_pnl       = excluded.house_pnl,
			settled_at      = COALESCE(rounds.settled_at, excluded.settled_at)
	`,
		r.ID, r.Number, r.Status,
		r.BettingStart.UnixMilli(), r.BettingEnd.UnixMilli(),
		msOrZero(r.SpinStart), msOrZero(r.ResultTime),
		outcome, r.TotalWagered.String(), r.TotalPayout.String(),
		r.HouseProfitLoss.String(), settledAt,
	)
	if err != nil {
		return fmt.Errorf("storage: save round %d: %w", r.Number, err)
	}
	return nil
}

func (s *SQLiteStore) LatestRound(ctx context.Context) (*RoundRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, status, betting_start, betting_end, spin_start, result_time,
		       winning_outcome, total_wagered, total_payout, house_pnl, settled_at
		FROM rounds ORDER BY number DESC LIMIT 1
	`)
	r, err := scanRound(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: latest round: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) AppendWager(ctx context.Context, w *WagerRecord, wallet *WalletRecord, totalWagered decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: append wager: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wagers (id, user_id, round_id, kind, value, amount, source, status, payout, placed_at, debit_primary, debit_secondary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.UserID, w.RoundID, w.Kind, w.Value, w.Amount.String(), w.Source, w.Status, w.Payout.String(),
		w.PlacedAt.UnixMilli(), w.DebitPrimary.String(), w.DebitSecondary.String()); err != nil {
		return fmt.Errorf("storage: insert wager %s: %w", w.ID, err)
	}

	if err := upsertWallet(ctx, tx, wallet); err != nil {
		return fmt.Errorf("storage: append wager %s: %w", w.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rounds SET total_wagered = ? WHERE id = ?`,
		totalWagered.String(), w.RoundID); err != nil {
		return fmt.Errorf("storage: update round total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: append wager %s: commit: %w", w.ID, err)
	}
	return nil
}

func (s *SQLiteStore) SettleWager(ctx context.Context, wagerID, status string, payout decimal.Decimal, wallet *WalletRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("storage: settle wager: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE wagers SET status = ?, payout = ? WHERE id = ? AND status = 'PENDING'`,
		status, payout.String(), wagerID)
	if err != nil {
		return false, fmt.Errorf("storage: settle wager %s: %w", wagerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: settle wager %s: %w", wagerID, err)
	}
	if n == 0 {
		// Already settled by an earlier (interrupted) pass.
		return false, nil
	}

	if wallet != nil {
		if err := upsertWallet(ctx, tx, wallet); err != nil {
			return false, fmt.Errorf("storage: settle wager %s: %w", wagerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("storage: settle wager %s: commit: %w", wagerID, err)
	}
	return true, nil
}

func (s *SQLiteStore) CompleteRound(ctx context.Context, roundID string, totalPayout, houseProfitLoss decimal.Decimal, settledAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rounds SET total_payout = ?, house_pnl = ?, settled_at = ?
		WHERE id = ? AND settled_at IS NULL
	`, totalPayout.String(), houseProfitLoss.String(), settledAt.UnixMilli(), roundID)
	if err != nil {
		return fmt.Errorf("storage: complete round %s: %w", roundID, err)
	}
	return nil
}

func (s *SQLiteStore) PendingWagers(ctx context.Context, roundID string) ([]WagerRecord, error) {
	return s.queryWagers(ctx, `
		SELECT id, user_id, round_id, kind, value, amount, source, status, payout, placed_at, debit_primary, debit_secondary
		FROM wagers WHERE round_id = ? AND status = 'PENDING' ORDER BY placed_at, id
	`, roundID)
}

func (s *SQLiteStore) WagersForRound(ctx context.Context, roundID string) ([]WagerRecord, error) {
	return s.queryWagers(ctx, `
		SELECT id, user_id, round_id, kind, value, amount, source, status, payout, placed_at, debit_primary, debit_secondary
		FROM wagers WHERE round_id = ? ORDER BY placed_at, id
	`, roundID)
}

func (s *SQLiteStore) Wallet(ctx context.Context, userID string) (*WalletRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, primary_balance, secondary_balance FROM wallets WHERE user_id = ?`, userID)
	var w WalletRecord
	var primary, secondary string
	if err := row.Scan(&w.UserID, &primary, &secondary); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: wallet %s: %w", userID, err)
	}
	var err error
	if w.PrimaryBalance, err = decimal.NewFromString(primary); err != nil {
		return nil, fmt.Errorf("storage: wallet %s: bad primary balance: %w", userID, err)
	}
	if w.SecondaryBalance, err = decimal.NewFromString(secondary); err != nil {
		return nil, fmt.Errorf("storage: wallet %s: bad secondary balance: %w", userID, err)
	}
	return &w, nil
}

func (s *SQLiteStore) SaveWallet(ctx context.Context, w *WalletRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: save wallet: begin: %w", err)
	}
	defer tx.Rollback()
	if err := upsertWallet(ctx, tx, w); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Wallets(ctx context.Context) ([]WalletRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, primary_balance, secondary_balance FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("storage: wallets: %w", err)
	}
	defer rows.Close()

	var out []WalletRecord
	for rows.Next() {
		var w WalletRecord
		var primary, secondary string
		if err := rows.Scan(&w.UserID, &primary, &secondary); err != nil {
			return nil, fmt.Errorf("storage: wallets: scan: %w", err)
		}
		if w.PrimaryBalance, err = decimal.NewFromString(primary); err != nil {
			return nil, fmt.Errorf("storage: wallets: %w", err)
		}
		if w.SecondaryBalance, err = decimal.NewFromString(secondary); err != nil {
			return nil, fmt.Errorf("storage: wallets: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- internal helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*RoundRecord, error) {
	var r RoundRecord
	var bettingStart, bettingEnd, spinStart, resultTime int64
	var outcome sql.NullInt64
	var settledAt sql.NullInt64
	var wagered, payout, pnl string

	if err := row.Scan(&r.ID, &r.Number, &r.Status, &bettingStart, &bettingEnd,
		&spinStart, &resultTime, &outcome, &wagered, &payout, &pnl, &settledAt); err != nil {
		return nil, err
	}

	r.BettingStart = time.UnixMilli(bettingStart)
	r.BettingEnd = time.UnixMilli(bettingEnd)
	if spinStart != 0 {
		r.SpinStart = time.UnixMilli(spinStart)
	}
	if resultTime != 0 {
		r.ResultTime = time.UnixMilli(resultTime)
	}
	if outcome.Valid {
		o := int(outcome.Int64)
		r.WinningOutcome = &o
	}
	if settledAt.Valid {
		t := time.UnixMilli(settledAt.Int64)
		r.SettledAt = &t
	}

	var err error
	if r.TotalWagered, err = decimal.NewFromString(wagered); err != nil {
		return nil, err
	}
	if r.TotalPayout, err = decimal.NewFromString(payout); err != nil {
		return nil, err
	}
	if r.HouseProfitLoss, err = decimal.NewFromString(pnl); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) queryWagers(ctx context.Context, query string, args ...any) ([]WagerRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query wagers: %w", err)
	}
	defer rows.Close()

	var out []WagerRecord
	for rows.Next() {
		var w WagerRecord
		var amount, payout, debitP, debitS string
		var placedAt int64
		if err := rows.Scan(&w.ID, &w.UserID, &w.RoundID, &w.Kind, &w.Value,
			&amount, &w.Source, &w.Status, &payout, &placedAt, &debitP, &debitS); err != nil {
			return nil, fmt.Errorf("storage: scan wager: %w", err)
		}
		if w.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("storage: wager %s: bad amount: %w", w.ID, err)
		}
		if w.Payout, err = decimal.NewFromString(payout); err != nil {
			return nil, fmt.Errorf("storage: wager %s: bad payout: %w", w.ID, err)
		}
		if w.DebitPrimary, err = decimal.NewFromString(debitP); err != nil {
			return nil, fmt.Errorf("storage: wager %s: bad debit: %w", w.ID, err)
		}
		if w.DebitSecondary, err = decimal.NewFromString(debitS); err != nil {
			return nil, fmt.Errorf("storage: wager %s: bad debit: %w", w.ID, err)
		}
		w.PlacedAt = time.UnixMilli(placedAt)
		out = append(out, w)
	}
	return out, rows.Err()
}

func upsertWallet(ctx context.Context, tx *sql.Tx, w *WalletRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, primary_balance, secondary_balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			primary_balance   = excluded.primary_balance,
			secondary_balance = excluded.secondary_balance,
			updated_at        = excluded.updated_at
	`, w.UserID, w.PrimaryBalance.String(), w.SecondaryBalance.String(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert wallet %s: %w", w.UserID, err)
	}
	return nil
}

func msOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
