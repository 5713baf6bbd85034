package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prpm-dev/registry/internal/models"
)

// Ledger is the authoritative source of a user's spendable credit balance.
// All mutations run inside DB transactions and every debit appends an
// immutable entry to credit_ledger, so balances stay auditable.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// GetBalance returns the current balance breakdown for a user.
// Returns ErrNoBalance if the user has no credit record; callers treat that
// as a zero balance.
func (l *Ledger) GetBalance(ctx context.Context, userID int64) (models.CreditBalance, error) {
	bal := models.CreditBalance{UserID: userID}

	query := `
		SELECT monthly, monthly_used, rollover, purchased, updated_at
		FROM credit_balances WHERE user_id = ?`

	err := l.db.QueryRowContext(ctx, query, userID).
		Scan(&bal.Monthly, &bal.MonthlyUsed, &bal.Rollover, &bal.Purchased, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bal, ErrNoBalance
		}
		return bal, fmt.Errorf("failed to read balance: %w", err)
	}

	return bal, nil
}

// EnsureBalance creates an empty balance row for a new user if none exists.
func (l *Ledger) EnsureBalance(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO credit_balances (user_id, monthly, monthly_used, rollover, purchased)
		VALUES (?, 0, 0, 0, 0)
		ON DUPLICATE KEY UPDATE user_id = user_id`

	if _, err := l.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure balance row: %w", err)
	}
	return nil
}

// Reserve optimistically checks that the user can afford `amount` and hands
// back an opaque reservation token. Nothing is deducted here: the actual
// cost may differ from the estimate, and the balance can change under
// concurrent runs, so the authoritative check is repeated inside Debit.
func (l *Ledger) Reserve(ctx context.Context, userID int64, amount int) (string, error) {
	bal, err := l.GetBalance(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoBalance) {
		return "", err
	}

	if bal.Total() < amount {
		return "", &InsufficientCreditsError{Required: amount, Available: bal.Total()}
	}

	return uuid.NewString(), nil
}

// Debit deducts `amount` credits, spending the monthly remainder first, then
// rollover, then purchased. The deduction is a single conditional UPDATE
// guarded by the funds check, so two concurrent debits that individually fit
// but jointly overdraw can never both succeed: the second one re-evaluates
// against the committed row and fails with InsufficientCreditsError.
func (l *Ledger) Debit(ctx context.Context, userID int64, amount int, sessionID, notes string) error {
	if amount <= 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin debit transaction: %w", err)
	}
	defer tx.Rollback()

	// Assignment order matters: MySQL applies SET clauses left to right and
	// later clauses see updated values, so purchased and rollover must be
	// computed before monthly_used changes.
	query := `
		UPDATE credit_balances
		SET purchased = purchased - GREATEST(? - (monthly - monthly_used) - rollover, 0),
		    rollover = rollover - LEAST(GREATEST(? - (monthly - monthly_used), 0), rollover),
		    monthly_used = monthly_used + LEAST(?, monthly - monthly_used),
		    updated_at = NOW()
		WHERE user_id = ?
		  AND (monthly - monthly_used) + rollover + purchased >= ?`

	res, err := tx.ExecContext(ctx, query, amount, amount, amount, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read debit result: %w", err)
	}
	if rows == 0 {
		// Either no balance row or the funds guard failed. Re-read inside
		// the transaction so the error reports the amount we lost to.
		available := 0
		var monthly, used, rollover, purchased int
		err := tx.QueryRowContext(ctx,
			`SELECT monthly, monthly_used, rollover, purchased FROM credit_balances WHERE user_id = ?`,
			userID).Scan(&monthly, &used, &rollover, &purchased)
		if err == nil {
			available = (monthly - used) + rollover + purchased
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read balance after rejected debit: %w", err)
		}
		return &InsufficientCreditsError{Required: amount, Available: available}
	}

	if err := appendEntry(ctx, tx, userID, models.LedgerDebit, -amount, sessionID, notes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}
	return nil
}

// GrantPurchased adds one-time purchased credits. Purchased credits never
// expire and are never capped.
func (l *Ledger) GrantPurchased(ctx context.Context, userID int64, amount int, notes string) error {
	if amount <= 0 {
		return fmt.Errorf("purchase grant must be positive, got %d", amount)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin grant transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO credit_balances (user_id, monthly, monthly_used, rollover, purchased)
		VALUES (?, 0, 0, 0, ?)
		ON DUPLICATE KEY UPDATE purchased = purchased + VALUES(purchased), updated_at = NOW()`

	if _, err := tx.ExecContext(ctx, query, userID, amount); err != nil {
		return fmt.Errorf("failed to grant purchased credits: %w", err)
	}

	if err := appendEntry(ctx, tx, userID, models.LedgerPurchase, amount, "", notes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grant: %w", err)
	}
	return nil
}

// SetMonthlyAllowance sets the user's monthly allotment, fed by subscription
// events from billing. The used counter is left alone; the cycle job resets
// it at the boundary.
func (l *Ledger) SetMonthlyAllowance(ctx context.Context, userID int64, monthly int, notes string) error {
	if monthly < 0 {
		return fmt.Errorf("monthly allowance must not be negative, got %d", monthly)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin allowance transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO credit_balances (user_id, monthly, monthly_used, rollover, purchased)
		VALUES (?, ?, 0, 0, 0)
		ON DUPLICATE KEY UPDATE
			monthly = VALUES(monthly),
			monthly_used = LEAST(monthly_used, VALUES(monthly)),
			updated_at = NOW()`

	if _, err := tx.ExecContext(ctx, query, userID, monthly); err != nil {
		return fmt.Errorf("failed to set monthly allowance: %w", err)
	}

	if err := appendEntry(ctx, tx, userID, models.LedgerMonthlyGrant, monthly, "", notes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit allowance: %w", err)
	}
	return nil
}

// CycleRollover runs at every billing cycle boundary: unused monthly credits
// roll into the rollover bucket up to `cap`, and the used counter resets.
// Returns the number of balances touched.
func (l *Ledger) CycleRollover(ctx context.Context, cap int) (int64, error) {
	// rollover is computed before monthly_used resets (left-to-right SET).
	query := `
		UPDATE credit_balances
		SET rollover = LEAST(rollover + GREATEST(monthly - monthly_used, 0), ?),
		    monthly_used = 0,
		    updated_at = NOW()`

	res, err := l.db.ExecContext(ctx, query, cap)
	if err != nil {
		return 0, fmt.Errorf("failed to run cycle rollover: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rollover result: %w", err)
	}
	return rows, nil
}

// History returns the most recent ledger entries for a user, newest first.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, kind, amount, session_id, notes, created_at
		FROM credit_ledger
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger history: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.SessionID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// appendEntry writes one immutable ledger row inside the caller's
// transaction. Entries are never updated or deleted.
func appendEntry(ctx context.Context, tx *sql.Tx, userID int64, kind string, amount int, sessionID, notes string) error {
	sid := sql.NullString{String: sessionID, Valid: sessionID != ""}

	query := `
		INSERT INTO credit_ledger (id, user_id, kind, amount, session_id, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())`

	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), userID, kind, amount, sid, notes); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}
