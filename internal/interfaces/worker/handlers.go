package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"nestegg/internal/domain/sync"
	"nestegg/internal/infrastructure/queue"
)

// Subscriptions wires the sync queues to the account syncer. Both are
// keyed on the account ID so one account is never synced by two
// workers at once.
func Subscriptions(syncer *sync.AccountSyncer) []Subscription {
	return []Subscription{
		{
			Queue: queue.AccountSync,
			Key:   accountKey,
			Handle: func(ctx context.Context, body json.RawMessage) error {
				var msg sync.AccountSyncMessage
				if err := json.Unmarshal(body, &msg); err != nil {
					return fmt.Errorf("malformed account sync message: %w", err)
				}
				return syncer.SyncAccount(ctx, msg)
			},
		},
		{
			Queue: queue.RunningBalance,
			Key:   accountKey,
			Handle: func(ctx context.Context, body json.RawMessage) error {
				var msg sync.RunningBalanceMessage
				if err := json.Unmarshal(body, &msg); err != nil {
					return fmt.Errorf("malformed running balance message: %w", err)
				}
				return syncer.RecalculateBalances(ctx, msg)
			},
		},
	}
}

func accountKey(body json.RawMessage) string {
	var peek struct {
		AccountID string `json:"accountId"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	return peek.AccountID
}
