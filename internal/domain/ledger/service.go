package ledger

import (
	"context"
	"fmt"
	"log"

	"nestegg/internal/domain/account"
	"nestegg/internal/infrastructure/bankdata"
)

// Service reconciles aggregator transactions into the local ledger and
// maintains the per-row running balances.
type Service struct {
	repo     Repository
	accounts account.Repository
	provider bankdata.Provider
}

func NewService(repo Repository, accounts account.Repository, provider bankdata.Provider) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		provider: provider,
	}
}

// UpsertTransactions writes a fetched page into the ledger. Booked and
// pending entries are merged into one batch; when the same upstream ID
// appears more than once the last occurrence wins, so a transaction that
// settled mid-page lands as booked. Re-delivering the same page is a
// no-op beyond refreshed timestamps.
func (s *Service) UpsertTransactions(ctx context.Context, accountID, userID string, page *bankdata.TransactionPage) (int64, error) {
	if accountID == "" {
		return 0, ErrAccountIDRequired
	}
	if page == nil {
		return 0, nil
	}

	batch := make([]Transaction, 0, len(page.Booked)+len(page.Pending))
	for i := range page.Pending {
		tx, err := FromBankData(&page.Pending[i], StatusPending)
		if err != nil {
			return 0, fmt.Errorf("failed to map pending transaction: %w", err)
		}
		batch = append(batch, tx)
	}
	for i := range page.Booked {
		tx, err := FromBankData(&page.Booked[i], StatusBooked)
		if err != nil {
			return 0, fmt.Errorf("failed to map booked transaction: %w", err)
		}
		batch = append(batch, tx)
	}

	deduped := dedupeKeepLast(batch)
	for i := range deduped {
		deduped[i].AccountID = accountID
		deduped[i].UserID = userID
	}
	if len(deduped) == 0 {
		return 0, nil
	}

	written, err := s.repo.UpsertBatch(ctx, deduped)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert transactions: %w", err)
	}
	return written, nil
}

// CalculateRunningBalances recomputes the running balance of every row
// of the account. The anchor is the most recent closing-booked balance
// snapshot; when none exists the most recent snapshot of any type is
// used instead. Without any snapshot the ledger is left untouched.
func (s *Service) CalculateRunningBalances(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrAccountIDRequired
	}

	balances, err := s.accounts.ListBalances(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to list balances: %w", err)
	}

	anchor := selectAnchor(balances)
	if anchor == nil {
		log.Printf("no balance snapshot for account %s, skipping running balance calculation", accountID)
		return 0, nil
	}

	updated, err := s.repo.ApplyRunningBalances(ctx, accountID, anchor.Amount)
	if err != nil {
		return 0, fmt.Errorf("failed to apply running balances: %w", err)
	}
	return updated, nil
}

// GetAccountTransactions reads transactions live from the aggregator,
// bounded by optional inclusive YYYY-MM-DD dates.
func (s *Service) GetAccountTransactions(ctx context.Context, accountID, dateFrom, dateTo string) (*bankdata.TransactionPage, error) {
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}
	from, err := ParseDate(dateFrom)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(dateTo)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, ErrInvalidDateRange
	}
	return s.provider.GetAccountTransactions(ctx, accountID, from, to)
}

// ListTransactions returns the local ledger rows for the account,
// newest first, with whatever running balances have been computed.
func (s *Service) ListTransactions(ctx context.Context, accountID string) ([]Transaction, error) {
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}
	return s.repo.ListByAccountID(ctx, accountID)
}

func dedupeKeepLast(batch []Transaction) []Transaction {
	index := make(map[string]int, len(batch))
	out := make([]Transaction, 0, len(batch))
	for _, tx := range batch {
		if i, seen := index[tx.UpstreamID]; seen {
			out[i] = tx
			continue
		}
		index[tx.UpstreamID] = len(out)
		out = append(out, tx)
	}
	return out
}

// selectAnchor picks the balance snapshot the running balances hang
// from. Closing-booked snapshots win; among candidates the most recent
// effective date wins.
func selectAnchor(balances []account.Balance) *account.Balance {
	var closing, latest *account.Balance
	for i := range balances {
		b := &balances[i]
		if b.IsClosingBooked() {
			if closing == nil || b.EffectiveDate().After(closing.EffectiveDate()) {
				closing = b
			}
		}
		if latest == nil || b.EffectiveDate().After(latest.EffectiveDate()) {
			latest = b
		}
	}
	if closing != nil {
		return closing
	}
	return latest
}
