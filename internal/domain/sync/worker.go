package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/ledger"
	"nestegg/internal/domain/notification"
	"nestegg/internal/domain/user"
	"nestegg/internal/infrastructure/bankdata"
	"nestegg/internal/infrastructure/queue"
)

// AccountSyncer handles the queued half of a sync pass: one message,
// one account, pulled fully from the aggregator. Both handlers are
// idempotent so redelivered messages are harmless.
type AccountSyncer struct {
	accounts    account.Repository
	users       user.Repository
	provider    bankdata.Provider
	ledger      *ledger.Service
	publisher   Publisher
	messenger   notification.Messenger
	historyDays int
	now         func() time.Time
}

func NewAccountSyncer(accounts account.Repository, users user.Repository, provider bankdata.Provider, ledgerSvc *ledger.Service, publisher Publisher, messenger notification.Messenger, historyDays int) *AccountSyncer {
	return &AccountSyncer{
		accounts:    accounts,
		users:       users,
		provider:    provider,
		ledger:      ledgerSvc,
		publisher:   publisher,
		messenger:   messenger,
		historyDays: historyDays,
		now:         time.Now,
	}
}

// SyncAccount pulls details, balance snapshots and transactions for one
// account, then hands off to the running-balance queue. The account
// moves to syncing for the duration; a failure leaves it there for the
// retried delivery to pick up.
func (s *AccountSyncer) SyncAccount(ctx context.Context, msg AccountSyncMessage) error {
	if err := s.accounts.UpdateStatus(ctx, msg.AccountID, account.StatusSyncing); err != nil {
		return fmt.Errorf("failed to mark account %s syncing: %w", msg.AccountID, err)
	}

	remote, err := s.provider.GetAccount(ctx, msg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to fetch account %s: %w", msg.AccountID, err)
	}
	if remote == nil {
		// Dropped upstream between enqueue and processing.
		log.Printf("account %s no longer exists upstream, suspending", msg.AccountID)
		return s.accounts.UpdateStatus(ctx, msg.AccountID, account.StatusSuspended)
	}

	if err := s.syncDetails(ctx, msg); err != nil {
		return err
	}
	if err := s.syncBalances(ctx, msg.AccountID); err != nil {
		return err
	}
	if err := s.syncTransactions(ctx, msg); err != nil {
		return err
	}
	if err := s.accounts.TouchLastSynced(ctx, msg.AccountID); err != nil {
		return fmt.Errorf("failed to stamp last sync for %s: %w", msg.AccountID, err)
	}

	rbMsg := RunningBalanceMessage{AccountID: msg.AccountID, UserID: msg.UserID}
	if err := s.publisher.Enqueue(ctx, queue.RunningBalance, rbMsg); err != nil {
		return fmt.Errorf("failed to enqueue balance calculation for %s: %w", msg.AccountID, err)
	}
	return nil
}

// RecalculateBalances recomputes the running balances and finishes the
// pipeline: the account lands in linked and the user gets a push.
func (s *AccountSyncer) RecalculateBalances(ctx context.Context, msg RunningBalanceMessage) error {
	if err := s.accounts.UpdateStatus(ctx, msg.AccountID, account.StatusCalculating); err != nil {
		return fmt.Errorf("failed to mark account %s calculating: %w", msg.AccountID, err)
	}

	updated, err := s.ledger.CalculateRunningBalances(ctx, msg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to calculate running balances for %s: %w", msg.AccountID, err)
	}
	log.Printf("recalculated running balances for account %s (%d rows)", msg.AccountID, updated)

	if err := s.accounts.UpdateStatus(ctx, msg.AccountID, account.StatusLinked); err != nil {
		return fmt.Errorf("failed to mark account %s linked: %w", msg.AccountID, err)
	}

	s.notifySyncComplete(ctx, msg)
	return nil
}

func (s *AccountSyncer) syncDetails(ctx context.Context, msg AccountSyncMessage) error {
	detail, err := s.provider.GetAccountDetails(ctx, msg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to fetch details for %s: %w", msg.AccountID, err)
	}
	return s.accounts.Upsert(ctx, account.UpsertParams{
		ID:              msg.AccountID,
		UserID:          msg.UserID,
		RequisitionID:   msg.RequisitionID,
		InstitutionID:   msg.InstitutionID,
		Name:            detail.Name,
		OwnerName:       detail.OwnerName,
		IBAN:            detail.IBAN,
		Currency:        detail.Currency,
		Product:         detail.Product,
		CashAccountType: detail.CashAccountType,
	})
}

func (s *AccountSyncer) syncBalances(ctx context.Context, accountID string) error {
	balances, err := s.provider.GetAccountBalances(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to fetch balances for %s: %w", accountID, err)
	}

	now := s.now()
	rows := make([]account.Balance, 0, len(balances))
	for i := range balances {
		row, err := balanceFromBankData(&balances[i], accountID, now)
		if err != nil {
			return fmt.Errorf("failed to map balance for %s: %w", accountID, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.accounts.InsertBalances(ctx, rows); err != nil {
		return fmt.Errorf("failed to save balances for %s: %w", accountID, err)
	}
	return nil
}

func (s *AccountSyncer) syncTransactions(ctx context.Context, msg AccountSyncMessage) error {
	dateFrom := s.now().AddDate(0, 0, -s.historyDays)
	page, err := s.provider.GetAccountTransactions(ctx, msg.AccountID, &dateFrom, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions for %s: %w", msg.AccountID, err)
	}

	written, err := s.ledger.UpsertTransactions(ctx, msg.AccountID, msg.UserID, page)
	if err != nil {
		return err
	}
	log.Printf("synced %d transactions for account %s", written, msg.AccountID)
	return nil
}

// notifySyncComplete pushes a completion notice. Best effort: the sync
// itself succeeded, so a push failure only gets logged.
func (s *AccountSyncer) notifySyncComplete(ctx context.Context, msg RunningBalanceMessage) {
	if s.messenger == nil || msg.UserID == "" {
		return
	}
	u, err := s.users.GetByID(ctx, msg.UserID)
	if err != nil || u == nil || u.DeviceToken == nil {
		return
	}
	err = s.messenger.Send(ctx, *u.DeviceToken,
		"Account synced",
		"Your account finished syncing and balances are up to date.",
		map[string]string{"accountId": msg.AccountID},
	)
	if err != nil {
		log.Printf("failed to push sync notification to user %s: %v", msg.UserID, err)
	}
}

func balanceFromBankData(b *bankdata.Balance, accountID string, retrievedAt time.Time) (account.Balance, error) {
	amount, err := b.BalanceAmount.GetAmount()
	if err != nil {
		return account.Balance{}, err
	}
	refDate, err := b.GetReferenceDate()
	if err != nil {
		return account.Balance{}, err
	}
	return account.Balance{
		AccountID:           accountID,
		BalanceType:         b.BalanceType,
		Amount:              amount,
		Currency:            b.BalanceAmount.Currency,
		CreditLimitIncluded: b.CreditLimitIncluded,
		ReferenceDate:       refDate,
		RetrievedAt:         retrievedAt,
	}, nil
}
