package bankdata

import (
	"context"
	"time"
)

// Provider defines the aggregator capability consumed by the domain
// services. Implemented by Client; mocked in tests.
type Provider interface {
	CreateAgreement(ctx context.Context, req CreateAgreementRequest) (*Agreement, error)
	CreateRequisition(ctx context.Context, req CreateRequisitionRequest) (*Requisition, error)
	GetRequisition(ctx context.Context, id string) (*Requisition, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	GetAccountDetails(ctx context.Context, accountID string) (*AccountDetail, error)
	GetAccountBalances(ctx context.Context, accountID string) ([]Balance, error)
	GetAccountTransactions(ctx context.Context, accountID string, dateFrom, dateTo *time.Time) (*TransactionPage, error)
	GetInstitution(ctx context.Context, institutionID string) (*Institution, error)
	GetInstitutions(ctx context.Context, countryCode string) ([]Institution, error)
}
