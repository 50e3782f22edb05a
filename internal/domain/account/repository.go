package account

import "context"

// Repository persists accounts and their balance snapshots.
type Repository interface {
	// GetByID returns nil, nil when no account exists.
	GetByID(ctx context.Context, id string) (*Account, error)
	ListByUserID(ctx context.Context, userID string) ([]*Account, error)
	// Upsert creates the account on first discovery and refreshes its
	// metadata afterwards. Sync never deletes accounts.
	Upsert(ctx context.Context, params UpsertParams) error
	UpdateStatus(ctx context.Context, id string, status LinkStatus) error
	// UpdateUserFields writes the user-editable fields. Nil pointers
	// leave the stored value untouched. Scoped to the owning user;
	// ErrAccountNotFound when no row matches.
	UpdateUserFields(ctx context.Context, id, userID string, displayName, category *string) error
	TouchLastSynced(ctx context.Context, id string) error

	// InsertBalances appends snapshots; existing rows are never mutated.
	InsertBalances(ctx context.Context, balances []Balance) error
	// ListBalances returns an account's snapshots, newest first.
	ListBalances(ctx context.Context, accountID string) ([]Balance, error)
	// ListBalancesByUser returns every snapshot across the user's accounts.
	ListBalancesByUser(ctx context.Context, userID string) ([]Balance, error)
}
