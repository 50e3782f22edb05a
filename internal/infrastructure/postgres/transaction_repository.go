package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"nestegg/internal/domain/ledger"
)

// TransactionRepository implements ledger.Repository for PostgreSQL
type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txInsertColumns = 11

// UpsertBatch writes the rows in a single multi-row statement keyed on
// (account_id, upstream_id). Conflicting rows keep their identity and
// running balance; the mutable fields are refreshed, which is how a
// pending transaction settles into booked.
func (r *TransactionRepository) UpsertBatch(ctx context.Context, transactions []ledger.Transaction) (int64, error) {
	if len(transactions) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO transactions (account_id, upstream_id, user_id, amount, currency, booking_date, value_date, counterparty_name, counterparty_iban, remittance_info, status)
		VALUES `)

	args := make([]any, 0, len(transactions)*txInsertColumns)
	for i, tx := range transactions {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * txInsertColumns
		sb.WriteByte('(')
		for j := 1; j <= txInsertColumns; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteByte(')')
		args = append(args,
			tx.AccountID, tx.UpstreamID, tx.UserID, tx.Amount, tx.Currency,
			tx.BookingDate, tx.ValueDate, tx.CounterpartyName, tx.CounterpartyIBAN,
			tx.RemittanceInfo, tx.Status,
		)
	}

	sb.WriteString(`
		ON CONFLICT (account_id, upstream_id) DO UPDATE SET
			amount            = EXCLUDED.amount,
			currency          = EXCLUDED.currency,
			booking_date      = EXCLUDED.booking_date,
			value_date        = EXCLUDED.value_date,
			counterparty_name = EXCLUDED.counterparty_name,
			counterparty_iban = EXCLUDED.counterparty_iban,
			remittance_info   = EXCLUDED.remittance_info,
			status            = EXCLUDED.status,
			updated_at        = CURRENT_TIMESTAMP`)

	result, err := r.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert transactions: %w", err)
	}
	return result.RowsAffected()
}

// ApplyRunningBalances sets every row's running balance from the anchor
// in one statement: the anchor amount minus the sum of all strictly
// newer amounts, newest first by booking date with upstream ID breaking
// ties. Rows without a booking date sort oldest.
func (r *TransactionRepository) ApplyRunningBalances(ctx context.Context, accountID string, anchor decimal.Decimal) (int64, error) {
	query := `
		WITH ordered AS (
			SELECT upstream_id,
			       SUM(amount) OVER (
			           ORDER BY booking_date DESC NULLS LAST, upstream_id DESC
			           ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW
			       ) - amount AS newer_sum
			FROM transactions
			WHERE account_id = $1
		)
		UPDATE transactions t
		SET running_balance = $2 - o.newer_sum,
		    updated_at = CURRENT_TIMESTAMP
		FROM ordered o
		WHERE t.account_id = $1 AND t.upstream_id = o.upstream_id
	`
	result, err := r.db.ExecContext(ctx, query, accountID, anchor)
	if err != nil {
		return 0, fmt.Errorf("failed to apply running balances: %w", err)
	}
	return result.RowsAffected()
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	query := `
		SELECT account_id, upstream_id, user_id, amount, currency, booking_date, value_date,
		       counterparty_name, counterparty_iban, remittance_info, status, running_balance,
		       imported_at, updated_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY booking_date DESC NULLS LAST, upstream_id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var bookingDate, valueDate sql.NullTime
		var runningBalance decimal.NullDecimal
		err := rows.Scan(
			&tx.AccountID, &tx.UpstreamID, &tx.UserID, &tx.Amount, &tx.Currency,
			&bookingDate, &valueDate, &tx.CounterpartyName, &tx.CounterpartyIBAN,
			&tx.RemittanceInfo, &tx.Status, &runningBalance, &tx.ImportedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if bookingDate.Valid {
			tx.BookingDate = &bookingDate.Time
		}
		if valueDate.Valid {
			tx.ValueDate = &valueDate.Time
		}
		if runningBalance.Valid {
			tx.RunningBalance = &runningBalance.Decimal
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
