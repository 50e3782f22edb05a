package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository persists ledger rows for one account at a time.
type Repository interface {
	// UpsertBatch inserts the rows, updating mutable fields on conflict
	// of (account_id, upstream_id). Returns the number of rows written.
	UpsertBatch(ctx context.Context, transactions []Transaction) (int64, error)

	// ApplyRunningBalances recomputes the running balance of every row
	// of the account from the anchor amount, ordered by booking date
	// descending with upstream ID descending as tie-break. Returns the
	// number of rows updated.
	ApplyRunningBalances(ctx context.Context, accountID string, anchor decimal.Decimal) (int64, error)

	// ListByAccountID returns the account's rows, newest first.
	ListByAccountID(ctx context.Context, accountID string) ([]Transaction, error)
}
