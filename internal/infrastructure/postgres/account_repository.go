package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nestegg/internal/domain/account"
)

// AccountRepository implements account.Repository for PostgreSQL
type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, requisition_id, institution_id, name, owner_name, iban, currency, product, cash_account_type, display_name, category, status, last_synced, created`

// Upsert inserts the account on first discovery. On later passes only
// non-empty incoming fields overwrite what is stored, so a minimal
// upsert from the orchestrator cannot wipe details written by the
// worker.
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) error {
	query := `
		INSERT INTO accounts (id, user_id, requisition_id, institution_id, name, owner_name, iban, currency, product, cash_account_type, status, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			requisition_id    = EXCLUDED.requisition_id,
			name              = COALESCE(NULLIF(EXCLUDED.name, ''), accounts.name),
			owner_name        = COALESCE(NULLIF(EXCLUDED.owner_name, ''), accounts.owner_name),
			iban              = COALESCE(NULLIF(EXCLUDED.iban, ''), accounts.iban),
			currency          = COALESCE(NULLIF(EXCLUDED.currency, ''), accounts.currency),
			product           = COALESCE(NULLIF(EXCLUDED.product, ''), accounts.product),
			cash_account_type = COALESCE(NULLIF(EXCLUDED.cash_account_type, ''), accounts.cash_account_type)
	`
	_, err := r.db.ExecContext(ctx, query,
		params.ID, params.UserID, params.RequisitionID, params.InstitutionID,
		params.Name, params.OwnerName, params.IBAN, params.Currency,
		params.Product, params.CashAccountType, string(account.StatusNew),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID string) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accs []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accs = append(accs, acc)
	}
	return accs, rows.Err()
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status account.LinkStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update: %w", err)
	}
	if affected == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// UpdateUserFields writes the user-assigned display name and category.
// Nil arguments keep the stored value. The user scope keeps one user
// from renaming another's account.
func (r *AccountRepository) UpdateUserFields(ctx context.Context, id, userID string, displayName, category *string) error {
	query := `
		UPDATE accounts
		SET display_name = COALESCE($3, display_name),
		    category     = COALESCE($4, category)
		WHERE id = $1 AND user_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, userID, displayName, category)
	if err != nil {
		return fmt.Errorf("failed to update account fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check account update: %w", err)
	}
	if affected == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) TouchLastSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_synced = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to stamp last sync: %w", err)
	}
	return nil
}

const balanceInsertColumns = 7

// InsertBalances writes all snapshots in a single multi-row statement.
func (r *AccountRepository) InsertBalances(ctx context.Context, balances []account.Balance) error {
	if len(balances) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO account_balances (account_id, balance_type, amount, currency, credit_limit_included, reference_date, retrieved_at)
		VALUES `)

	args := make([]any, 0, len(balances)*balanceInsertColumns)
	for i, b := range balances {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * balanceInsertColumns
		sb.WriteByte('(')
		for j := 1; j <= balanceInsertColumns; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteByte(')')
		args = append(args,
			b.AccountID, b.BalanceType, b.Amount, b.Currency,
			b.CreditLimitIncluded, b.ReferenceDate, b.RetrievedAt,
		)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert balance snapshots: %w", err)
	}
	return nil
}

func (r *AccountRepository) ListBalances(ctx context.Context, accountID string) ([]account.Balance, error) {
	query := `
		SELECT account_id, balance_type, amount, currency, credit_limit_included, reference_date, retrieved_at
		FROM account_balances
		WHERE account_id = $1
		ORDER BY retrieved_at DESC
	`
	return r.listBalances(ctx, query, accountID)
}

func (r *AccountRepository) ListBalancesByUser(ctx context.Context, userID string) ([]account.Balance, error) {
	query := `
		SELECT b.account_id, b.balance_type, b.amount, b.currency, b.credit_limit_included, b.reference_date, b.retrieved_at
		FROM account_balances b
		JOIN accounts a ON a.id = b.account_id
		WHERE a.user_id = $1
		ORDER BY b.retrieved_at DESC
	`
	return r.listBalances(ctx, query, userID)
}

func (r *AccountRepository) listBalances(ctx context.Context, query string, arg any) ([]account.Balance, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []account.Balance
	for rows.Next() {
		var b account.Balance
		var refDate sql.NullTime
		err := rows.Scan(&b.AccountID, &b.BalanceType, &b.Amount, &b.Currency, &b.CreditLimitIncluded, &refDate, &b.RetrievedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		if refDate.Valid {
			b.ReferenceDate = &refDate.Time
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func scanAccount(row scanner) (*account.Account, error) {
	var acc account.Account
	var status string
	var lastSynced sql.NullTime
	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.RequisitionID, &acc.InstitutionID,
		&acc.Name, &acc.OwnerName, &acc.IBAN, &acc.Currency,
		&acc.Product, &acc.CashAccountType, &acc.DisplayName, &acc.Category,
		&status, &lastSynced, &acc.Created,
	)
	if err != nil {
		return nil, err
	}
	acc.Status = account.LinkStatus(status)
	if lastSynced.Valid {
		acc.LastSynced = &lastSynced.Time
	}
	return &acc, nil
}
