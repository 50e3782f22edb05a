package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/consent"
	"nestegg/internal/infrastructure/bankdata"
	"nestegg/internal/infrastructure/queue"
)

// MockRequisitionRepo implements consent.RequisitionRepository
type MockRequisitionRepo struct {
	SaveFunc                     func(ctx context.Context, requisition *consent.Requisition) error
	UpdateFunc                   func(ctx context.Context, requisition *consent.Requisition) error
	GetByIDFunc                  func(ctx context.Context, id string) (*consent.Requisition, error)
	ListByInstitutionAndUserFunc func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error)
	ListLinkedFunc               func(ctx context.Context) ([]*consent.Requisition, error)
}

func (m *MockRequisitionRepo) Save(ctx context.Context, requisition *consent.Requisition) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, requisition)
	}
	return nil
}
func (m *MockRequisitionRepo) Update(ctx context.Context, requisition *consent.Requisition) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, requisition)
	}
	return nil
}
func (m *MockRequisitionRepo) GetByID(ctx context.Context, id string) (*consent.Requisition, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockRequisitionRepo) ListByInstitutionAndUser(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
	if m.ListByInstitutionAndUserFunc != nil {
		return m.ListByInstitutionAndUserFunc(ctx, institutionID, userID)
	}
	return nil, nil
}
func (m *MockRequisitionRepo) ListLinked(ctx context.Context) ([]*consent.Requisition, error) {
	if m.ListLinkedFunc != nil {
		return m.ListLinkedFunc(ctx)
	}
	return nil, nil
}

// MockAccountRepo implements account.Repository
type MockAccountRepo struct {
	UpsertFunc         func(ctx context.Context, params account.UpsertParams) error
	UpdateStatusFunc   func(ctx context.Context, id string, status account.LinkStatus) error
	InsertBalancesFunc func(ctx context.Context, balances []account.Balance) error
	TouchedLastSynced  []string
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) Upsert(ctx context.Context, params account.UpsertParams) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return nil
}
func (m *MockAccountRepo) UpdateStatus(ctx context.Context, id string, status account.LinkStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}
func (m *MockAccountRepo) UpdateUserFields(ctx context.Context, id, userID string, displayName, category *string) error {
	return nil
}
func (m *MockAccountRepo) TouchLastSynced(ctx context.Context, id string) error {
	m.TouchedLastSynced = append(m.TouchedLastSynced, id)
	return nil
}
func (m *MockAccountRepo) InsertBalances(ctx context.Context, balances []account.Balance) error {
	if m.InsertBalancesFunc != nil {
		return m.InsertBalancesFunc(ctx, balances)
	}
	return nil
}
func (m *MockAccountRepo) ListBalances(ctx context.Context, accountID string) ([]account.Balance, error) {
	return nil, nil
}
func (m *MockAccountRepo) ListBalancesByUser(ctx context.Context, userID string) ([]account.Balance, error) {
	return nil, nil
}

// MockProvider implements bankdata.Provider
type MockProvider struct {
	GetRequisitionFunc         func(ctx context.Context, id string) (*bankdata.Requisition, error)
	GetAccountFunc             func(ctx context.Context, accountID string) (*bankdata.Account, error)
	GetAccountDetailsFunc      func(ctx context.Context, accountID string) (*bankdata.AccountDetail, error)
	GetAccountBalancesFunc     func(ctx context.Context, accountID string) ([]bankdata.Balance, error)
	GetAccountTransactionsFunc func(ctx context.Context, accountID string, dateFrom, dateTo *time.Time) (*bankdata.TransactionPage, error)
}

func (m *MockProvider) CreateAgreement(ctx context.Context, req bankdata.CreateAgreementRequest) (*bankdata.Agreement, error) {
	return nil, nil
}
func (m *MockProvider) CreateRequisition(ctx context.Context, req bankdata.CreateRequisitionRequest) (*bankdata.Requisition, error) {
	return nil, nil
}
func (m *MockProvider) GetRequisition(ctx context.Context, id string) (*bankdata.Requisition, error) {
	if m.GetRequisitionFunc != nil {
		return m.GetRequisitionFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockProvider) GetAccount(ctx context.Context, accountID string) (*bankdata.Account, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, accountID)
	}
	return nil, nil
}
func (m *MockProvider) GetAccountDetails(ctx context.Context, accountID string) (*bankdata.AccountDetail, error) {
	if m.GetAccountDetailsFunc != nil {
		return m.GetAccountDetailsFunc(ctx, accountID)
	}
	return nil, nil
}
func (m *MockProvider) GetAccountBalances(ctx context.Context, accountID string) ([]bankdata.Balance, error) {
	if m.GetAccountBalancesFunc != nil {
		return m.GetAccountBalancesFunc(ctx, accountID)
	}
	return nil, nil
}
func (m *MockProvider) GetAccountTransactions(ctx context.Context, accountID string, dateFrom, dateTo *time.Time) (*bankdata.TransactionPage, error) {
	if m.GetAccountTransactionsFunc != nil {
		return m.GetAccountTransactionsFunc(ctx, accountID, dateFrom, dateTo)
	}
	return nil, nil
}
func (m *MockProvider) GetInstitution(ctx context.Context, institutionID string) (*bankdata.Institution, error) {
	return nil, nil
}
func (m *MockProvider) GetInstitutions(ctx context.Context, countryCode string) ([]bankdata.Institution, error) {
	return nil, nil
}

// MockPublisher implements Publisher
type MockPublisher struct {
	EnqueueFunc func(ctx context.Context, queueName string, payload any) error
	Enqueued    []string
}

func (m *MockPublisher) Enqueue(ctx context.Context, queueName string, payload any) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, queueName, payload)
	}
	m.Enqueued = append(m.Enqueued, queueName)
	return nil
}

func linkedRequisition() *consent.Requisition {
	return &consent.Requisition{
		ID:            "req-1",
		UserID:        "user-1",
		InstitutionID: "BANK_A",
		Status:        consent.StatusLinked,
		Accounts:      []string{"acc-1", "acc-2"},
	}
}

func TestSyncInstitution(t *testing.T) {
	ctx := context.Background()

	t.Run("linked requisition enqueues one job per account", func(t *testing.T) {
		reqRepo := &MockRequisitionRepo{
			ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
				return []*consent.Requisition{linkedRequisition()}, nil
			},
		}
		provider := &MockProvider{
			GetRequisitionFunc: func(ctx context.Context, id string) (*bankdata.Requisition, error) {
				return &bankdata.Requisition{ID: "req-1", Status: "LN", Accounts: []string{"acc-1", "acc-2"}}, nil
			},
		}
		var upserted []string
		accRepo := &MockAccountRepo{
			UpsertFunc: func(ctx context.Context, params account.UpsertParams) error {
				if params.UserID != "user-1" || params.RequisitionID != "req-1" {
					t.Errorf("Upsert params = %+v, missing user/requisition", params)
				}
				upserted = append(upserted, params.ID)
				return nil
			},
		}
		pub := &MockPublisher{}

		o := NewOrchestrator(reqRepo, accRepo, provider, pub)
		result, err := o.SyncInstitution(ctx, "user-1", "BANK_A")
		if err != nil {
			t.Fatalf("SyncInstitution() error = %v", err)
		}
		if result.AccountsEnqueued != 2 {
			t.Errorf("AccountsEnqueued = %d, want 2", result.AccountsEnqueued)
		}
		if len(upserted) != 2 {
			t.Errorf("upserted %v, want both accounts", upserted)
		}
		if len(pub.Enqueued) != 2 || pub.Enqueued[0] != queue.AccountSync {
			t.Errorf("enqueued %v, want two %s messages", pub.Enqueued, queue.AccountSync)
		}
	})

	t.Run("repeat runs are safe", func(t *testing.T) {
		reqRepo := &MockRequisitionRepo{
			ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
				return []*consent.Requisition{linkedRequisition()}, nil
			},
		}
		provider := &MockProvider{
			GetRequisitionFunc: func(ctx context.Context, id string) (*bankdata.Requisition, error) {
				return &bankdata.Requisition{ID: "req-1", Status: "LN", Accounts: []string{"acc-1"}}, nil
			},
		}
		pub := &MockPublisher{}
		o := NewOrchestrator(reqRepo, &MockAccountRepo{}, provider, pub)

		for i := 0; i < 2; i++ {
			result, err := o.SyncInstitution(ctx, "user-1", "BANK_A")
			if err != nil {
				t.Fatalf("run %d: SyncInstitution() error = %v", i, err)
			}
			if result.AccountsEnqueued != 1 {
				t.Errorf("run %d: AccountsEnqueued = %d, want 1", i, result.AccountsEnqueued)
			}
		}
	})

	t.Run("upstream expiry updates local state and demands relink", func(t *testing.T) {
		updated := false
		reqRepo := &MockRequisitionRepo{
			ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
				return []*consent.Requisition{linkedRequisition()}, nil
			},
			UpdateFunc: func(ctx context.Context, requisition *consent.Requisition) error {
				updated = true
				if requisition.Status != consent.StatusExpired {
					t.Errorf("status = %s, want expired", requisition.Status)
				}
				return nil
			},
		}
		provider := &MockProvider{
			GetRequisitionFunc: func(ctx context.Context, id string) (*bankdata.Requisition, error) {
				return &bankdata.Requisition{ID: "req-1", Status: "EX"}, nil
			},
		}
		o := NewOrchestrator(reqRepo, &MockAccountRepo{}, provider, &MockPublisher{})

		_, err := o.SyncInstitution(ctx, "user-1", "BANK_A")
		if !errors.Is(err, ErrRelinkRequired) {
			t.Errorf("error = %v, want ErrRelinkRequired", err)
		}
		if !updated {
			t.Error("local requisition not updated before demanding relink")
		}
	})

	t.Run("no usable requisition demands relink", func(t *testing.T) {
		expired := linkedRequisition()
		expired.Status = consent.StatusExpired
		reqRepo := &MockRequisitionRepo{
			ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
				return []*consent.Requisition{expired}, nil
			},
		}
		o := NewOrchestrator(reqRepo, &MockAccountRepo{}, &MockProvider{}, &MockPublisher{})

		_, err := o.SyncInstitution(ctx, "user-1", "BANK_A")
		if !errors.Is(err, ErrRelinkRequired) {
			t.Errorf("error = %v, want ErrRelinkRequired", err)
		}
	})

	t.Run("pending authentication returns an empty result", func(t *testing.T) {
		pending := linkedRequisition()
		pending.Status = consent.StatusCreated
		reqRepo := &MockRequisitionRepo{
			ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
				return []*consent.Requisition{pending}, nil
			},
		}
		provider := &MockProvider{
			GetRequisitionFunc: func(ctx context.Context, id string) (*bankdata.Requisition, error) {
				return &bankdata.Requisition{ID: "req-1", Status: "CR"}, nil
			},
		}
		pub := &MockPublisher{}
		o := NewOrchestrator(reqRepo, &MockAccountRepo{}, provider, pub)

		result, err := o.SyncInstitution(ctx, "user-1", "BANK_A")
		if err != nil {
			t.Fatalf("SyncInstitution() error = %v", err)
		}
		if result.AccountsEnqueued != 0 || len(pub.Enqueued) != 0 {
			t.Errorf("result = %+v with %d enqueued, want nothing enqueued", result, len(pub.Enqueued))
		}
	})

	t.Run("requisition gone upstream demands relink", func(t *testing.T) {
		reqRepo := &MockRequisitionRepo{
			ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
				return []*consent.Requisition{linkedRequisition()}, nil
			},
		}
		provider := &MockProvider{
			GetRequisitionFunc: func(ctx context.Context, id string) (*bankdata.Requisition, error) {
				return nil, nil
			},
		}
		o := NewOrchestrator(reqRepo, &MockAccountRepo{}, provider, &MockPublisher{})

		_, err := o.SyncInstitution(ctx, "user-1", "BANK_A")
		if !errors.Is(err, ErrRelinkRequired) {
			t.Errorf("error = %v, want ErrRelinkRequired", err)
		}
	})
}
