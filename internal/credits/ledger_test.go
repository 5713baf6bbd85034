package credits

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prpm-dev/registry/internal/models"
)

func balanceRows(monthly, used, rollover, purchased int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"monthly", "monthly_used", "rollover", "purchased", "updated_at"}).
		AddRow(monthly, used, rollover, purchased, time.Now())
}

func TestGetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased, updated_at")).
		WithArgs(int64(7)).
		WillReturnRows(balanceRows(100, 30, 20, 5))

	ledger := NewLedger(db)
	bal, err := ledger.GetBalance(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 100, bal.Monthly)
	assert.Equal(t, 30, bal.MonthlyUsed)
	assert.Equal(t, (100-30)+20+5, bal.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalanceMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased, updated_at")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"monthly", "monthly_used", "rollover", "purchased", "updated_at"}))

	ledger := NewLedger(db)
	_, err = ledger.GetBalance(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoBalance)
}

func TestReserve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased, updated_at")).
		WithArgs(int64(7)).
		WillReturnRows(balanceRows(10, 8, 0, 0))

	ledger := NewLedger(db)
	token, err := ledger.Reserve(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestReserveInsufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// total = (10-8)+0+0 = 2, requesting 3.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased, updated_at")).
		WithArgs(int64(7)).
		WillReturnRows(balanceRows(10, 8, 0, 0))

	ledger := NewLedger(db)
	_, err = ledger.Reserve(context.Background(), 7, 3)

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Required)
	assert.Equal(t, 2, insufficient.Available)
}

func TestReserveTreatsMissingRowAsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased, updated_at")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"monthly", "monthly_used", "rollover", "purchased", "updated_at"}))

	ledger := NewLedger(db)
	_, err = ledger.Reserve(context.Background(), 7, 1)

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)
}

func TestDebitSuccessAppendsLedgerEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_balances")).
		WithArgs(5, 5, 5, int64(7), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_ledger")).
		WithArgs(sqlmock.AnyArg(), int64(7), models.LedgerDebit, -5, "sess-1", "playground run").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ledger := NewLedger(db)
	err = ledger.Debit(context.Background(), 7, 5, "sess-1", "playground run")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitRejectedWhenGuardFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// The conditional UPDATE touches nothing when funds are short.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_balances")).
		WithArgs(3, 3, 3, int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased FROM credit_balances")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"monthly", "monthly_used", "rollover", "purchased"}).
			AddRow(10, 8, 0, 0))
	mock.ExpectRollback()

	ledger := NewLedger(db)
	err = ledger.Debit(context.Background(), 7, 3, "sess-1", "playground run")

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Required)
	assert.Equal(t, 2, insufficient.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two concurrent debits that individually fit but jointly overdraw: the
// WHERE guard re-evaluates against the committed row, so the first debit
// lands and the second comes back with zero rows affected.
func TestDebitConcurrentOverdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// First debit of 2 against total 3 succeeds.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_balances")).
		WithArgs(2, 2, 2, int64(7), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_ledger")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Second debit of 2 now sees total 1: guard fails.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_balances")).
		WithArgs(2, 2, 2, int64(7), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT monthly, monthly_used, rollover, purchased FROM credit_balances")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"monthly", "monthly_used", "rollover", "purchased"}).
			AddRow(3, 2, 0, 0))
	mock.ExpectRollback()

	ledger := NewLedger(db)
	require.NoError(t, ledger.Debit(context.Background(), 7, 2, "a", "run"))

	err = ledger.Debit(context.Background(), 7, 2, "b", "run")
	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitZeroAmountIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)
	assert.NoError(t, ledger.Debit(context.Background(), 7, 0, "sess", "noop"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantPurchased(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_balances")).
		WithArgs(int64(7), 100).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_ledger")).
		WithArgs(sqlmock.AnyArg(), int64(7), models.LedgerPurchase, 100, nil, "stripe checkout cs_123 (starter pack)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ledger := NewLedger(db)
	err = ledger.GrantPurchased(context.Background(), 7, 100, "stripe checkout cs_123 (starter pack)")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantPurchasedRejectsNonPositive(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)
	assert.Error(t, ledger.GrantPurchased(context.Background(), 7, 0, "zero"))
	assert.Error(t, ledger.GrantPurchased(context.Background(), 7, -5, "negative"))
}

func TestCycleRolloverCapsAtConfiguredValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_balances")).
		WithArgs(200).
		WillReturnResult(sqlmock.NewResult(0, 42))

	ledger := NewLedger(db)
	touched, err := ledger.CycleRollover(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, int64(42), touched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "user_id", "kind", "amount", "session_id", "notes", "created_at"}).
		AddRow("e2", int64(7), models.LedgerDebit, -5, "sess-1", "playground run", time.Now()).
		AddRow("e1", int64(7), models.LedgerPurchase, 100, nil, "stripe checkout", time.Now().Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_ledger")).
		WithArgs(int64(7), 50).
		WillReturnRows(rows)

	ledger := NewLedger(db)
	entries, err := ledger.History(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, -5, entries[0].Amount)
	assert.False(t, entries[1].SessionID.Valid)
}

func TestInsufficientCreditsErrorMessage(t *testing.T) {
	err := &InsufficientCreditsError{Required: 3, Available: 2}
	assert.Equal(t, "insufficient credits: required 3, available 2", err.Error())

	var target *InsufficientCreditsError
	assert.True(t, errors.As(err, &target))
}
