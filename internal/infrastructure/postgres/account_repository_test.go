package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestegg/internal/domain/account"
)

func TestInsertBalancesSingleStatement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	retrieved := sampleTime(t)
	balances := []account.Balance{
		{AccountID: "acc-1", BalanceType: "closingBooked", Amount: decimal.RequireFromString("150.00"), Currency: "EUR", RetrievedAt: retrieved},
		{AccountID: "acc-1", BalanceType: "interimAvailable", Amount: decimal.RequireFromString("145.50"), Currency: "EUR", RetrievedAt: retrieved},
	}

	// Both snapshots ride one multi-row INSERT.
	mock.ExpectExec(`INSERT INTO account_balances .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\), \(\$8, \$9, \$10, \$11, \$12, \$13, \$14\)`).
		WithArgs(
			"acc-1", "closingBooked", balances[0].Amount, "EUR", nil, nil, retrieved,
			"acc-1", "interimAvailable", balances[1].Amount, "EUR", nil, nil, retrieved,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.InsertBalances(context.Background(), balances))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBalancesEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	require.NoError(t, repo.InsertBalances(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	name, category := "Everyday", "credit"
	mock.ExpectExec(`UPDATE accounts\s+SET display_name = COALESCE\(\$3, display_name\),\s+category\s+= COALESCE\(\$4, category\)\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs("acc-1", "user-1", "Everyday", "credit").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateUserFields(context.Background(), "acc-1", "user-1", &name, &category))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserFieldsUnknownAccount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	name := "Ghost"
	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("ghost", "user-1", "Ghost", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateUserFields(context.Background(), "ghost", "user-1", &name, nil)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
