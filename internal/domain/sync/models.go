package sync

import (
	"context"
	"errors"
)

// Domain errors
var (
	ErrInstitutionIDRequired = errors.New("institution ID is required")
	ErrRelinkRequired        = errors.New("no usable consent, institution must be relinked")
)

// Publisher enqueues background work. Implemented by the Redis queue.
type Publisher interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}

// AccountSyncMessage asks the worker to pull one account's details,
// balances and transactions from the aggregator.
type AccountSyncMessage struct {
	AccountID     string `json:"accountId"`
	UserID        string `json:"userId"`
	RequisitionID string `json:"requisitionId"`
	InstitutionID string `json:"institutionId"`
}

// RunningBalanceMessage asks the worker to recompute one account's
// running balances.
type RunningBalanceMessage struct {
	AccountID string `json:"accountId"`
	UserID    string `json:"userId"`
}

// Result reports what a sync pass enqueued. Accounts are processed
// asynchronously; zero enqueued with no error means the consent exists
// but exposes no accounts yet.
type Result struct {
	InstitutionID    string   `json:"institutionId"`
	RequisitionID    string   `json:"requisitionId"`
	Status           string   `json:"status"`
	AccountsEnqueued int      `json:"accountsEnqueued"`
	AccountIDs       []string `json:"accountIds"`
}
