package models

import (
	"database/sql"
	"time"
)

// CreditBalance defines the model for the 'credit_balances' table.
// One row per user; every mutation goes through the credits.Ledger so the
// breakdown stays consistent with the immutable entries in 'credit_ledger'.
type CreditBalance struct {
	UserID      int64     `json:"userId" db:"user_id"`
	Monthly     int       `json:"monthly" db:"monthly"`
	MonthlyUsed int       `json:"monthlyUsed" db:"monthly_used"`
	Rollover    int       `json:"rollover" db:"rollover"`
	Purchased   int       `json:"purchased" db:"purchased"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Total is the derived spendable amount: unused monthly credits plus
// rollover plus purchased. It is never negative for a consistent row.
func (b CreditBalance) Total() int {
	return (b.Monthly - b.MonthlyUsed) + b.Rollover + b.Purchased
}

// Ledger entry kinds. Entries are append-only; a balance can always be
// audited by replaying them.
const (
	LedgerDebit        = "debit"
	LedgerPurchase     = "purchase"
	LedgerMonthlyGrant = "monthly_grant"
	LedgerRollover     = "rollover"
)

// LedgerEntry defines the model for the 'credit_ledger' table.
type LedgerEntry struct {
	ID        string         `json:"id" db:"id"`
	UserID    int64          `json:"userId" db:"user_id"`
	Kind      string         `json:"kind" db:"kind"`
	Amount    int            `json:"amount" db:"amount"` // positive = grant, negative = debit
	SessionID sql.NullString `json:"sessionId,omitempty" db:"session_id"`
	Notes     string         `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
