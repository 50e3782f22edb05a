package account

import (
	"context"
	"fmt"

	"nestegg/internal/infrastructure/bankdata"
)

// Service exposes the read side of the account ledger.
type Service struct {
	repo     Repository
	provider bankdata.Provider
}

// NewService creates a new account service.
func NewService(repo Repository, provider bankdata.Provider) *Service {
	return &Service{repo: repo, provider: provider}
}

// GetAccount retrieves a locally persisted account.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrAccountIDRequired
	}
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ListAccounts returns all accounts belonging to a user.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]*Account, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// UpdateAccount sets the user-editable fields (display name, category)
// on an account the user owns and returns the updated row. Nil pointers
// leave a field unchanged.
func (s *Service) UpdateAccount(ctx context.Context, id, userID string, displayName, category *string) (*Account, error) {
	if id == "" {
		return nil, ErrAccountIDRequired
	}
	if category != nil {
		if _, ok := validCategories[*category]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, *category)
		}
	}
	if err := s.repo.UpdateUserFields(ctx, id, userID, displayName, category); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, id)
}

// GetBalances returns the locally persisted balance history for an
// account, newest snapshot first.
func (s *Service) GetBalances(ctx context.Context, accountID string) ([]Balance, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListBalances(ctx, accountID)
}

// GetDetails fetches the live schema-level account description from the
// aggregator. Details are not persisted; the aggregator stays authoritative.
func (s *Service) GetDetails(ctx context.Context, accountID string) (*bankdata.AccountDetail, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	details, err := s.provider.GetAccountDetails(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch details for account %s: %w", accountID, err)
	}
	if details == nil {
		return nil, ErrAccountNotFound
	}
	return details, nil
}
