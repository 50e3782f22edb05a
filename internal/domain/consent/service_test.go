package consent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nestegg/internal/infrastructure/bankdata"
)

type MockProvider struct {
	CreateAgreementFunc   func(ctx context.Context, req bankdata.CreateAgreementRequest) (*bankdata.Agreement, error)
	CreateRequisitionFunc func(ctx context.Context, req bankdata.CreateRequisitionRequest) (*bankdata.Requisition, error)
	GetRequisitionFunc    func(ctx context.Context, id string) (*bankdata.Requisition, error)
	GetInstitutionFunc    func(ctx context.Context, institutionID string) (*bankdata.Institution, error)
}

func (m *MockProvider) CreateAgreement(ctx context.Context, req bankdata.CreateAgreementRequest) (*bankdata.Agreement, error) {
	return m.CreateAgreementFunc(ctx, req)
}

func (m *MockProvider) CreateRequisition(ctx context.Context, req bankdata.CreateRequisitionRequest) (*bankdata.Requisition, error) {
	return m.CreateRequisitionFunc(ctx, req)
}

func (m *MockProvider) GetRequisition(ctx context.Context, id string) (*bankdata.Requisition, error) {
	return m.GetRequisitionFunc(ctx, id)
}

func (m *MockProvider) GetAccount(ctx context.Context, accountID string) (*bankdata.Account, error) {
	return nil, nil
}

func (m *MockProvider) GetAccountDetails(ctx context.Context, accountID string) (*bankdata.AccountDetail, error) {
	return nil, nil
}

func (m *MockProvider) GetAccountBalances(ctx context.Context, accountID string) ([]bankdata.Balance, error) {
	return nil, nil
}

func (m *MockProvider) GetAccountTransactions(ctx context.Context, accountID string, dateFrom, dateTo *time.Time) (*bankdata.TransactionPage, error) {
	return nil, nil
}

func (m *MockProvider) GetInstitution(ctx context.Context, institutionID string) (*bankdata.Institution, error) {
	return m.GetInstitutionFunc(ctx, institutionID)
}

func (m *MockProvider) GetInstitutions(ctx context.Context, countryCode string) ([]bankdata.Institution, error) {
	return nil, nil
}

type MockAgreementRepo struct {
	SaveFunc    func(ctx context.Context, agreement *Agreement) error
	GetByIDFunc func(ctx context.Context, id string) (*Agreement, error)
	Saved       []*Agreement
}

func (m *MockAgreementRepo) Save(ctx context.Context, agreement *Agreement) error {
	m.Saved = append(m.Saved, agreement)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, agreement)
	}
	return nil
}

func (m *MockAgreementRepo) GetByID(ctx context.Context, id string) (*Agreement, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

type MockRequisitionRepo struct {
	SaveFunc                     func(ctx context.Context, requisition *Requisition) error
	UpdateFunc                   func(ctx context.Context, requisition *Requisition) error
	GetByIDFunc                  func(ctx context.Context, id string) (*Requisition, error)
	ListByInstitutionAndUserFunc func(ctx context.Context, institutionID, userID string) ([]*Requisition, error)
	Saved                        []*Requisition
	Updated                      []*Requisition
}

func (m *MockRequisitionRepo) Save(ctx context.Context, requisition *Requisition) error {
	m.Saved = append(m.Saved, requisition)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, requisition)
	}
	return nil
}

func (m *MockRequisitionRepo) Update(ctx context.Context, requisition *Requisition) error {
	m.Updated = append(m.Updated, requisition)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, requisition)
	}
	return nil
}

func (m *MockRequisitionRepo) GetByID(ctx context.Context, id string) (*Requisition, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockRequisitionRepo) ListByInstitutionAndUser(ctx context.Context, institutionID, userID string) ([]*Requisition, error) {
	if m.ListByInstitutionAndUserFunc != nil {
		return m.ListByInstitutionAndUserFunc(ctx, institutionID, userID)
	}
	return nil, nil
}

func (m *MockRequisitionRepo) ListLinked(ctx context.Context) ([]*Requisition, error) {
	return nil, nil
}

func TestStatusFromWire(t *testing.T) {
	tests := []struct {
		code    string
		want    RequisitionStatus
		wantErr bool
	}{
		{"CR", StatusCreated, false},
		{"GC", StatusCreated, false},
		{"UA", StatusCreated, false},
		{"SA", StatusCreated, false},
		{"GA", StatusCreated, false},
		{"LN", StatusLinked, false},
		{"SU", StatusSuspended, false},
		{"EX", StatusExpired, false},
		{"RJ", StatusRejected, false},
		{"ZZ", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := StatusFromWire(tt.code)
			if tt.wantErr {
				if err == nil {
					t.Errorf("StatusFromWire(%q) expected error, got %q", tt.code, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("StatusFromWire(%q) failed: %v", tt.code, err)
			}
			if got != tt.want {
				t.Errorf("StatusFromWire(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	if !StatusExpired.Terminal() {
		t.Error("expired should be terminal")
	}
	if !StatusRejected.Terminal() {
		t.Error("rejected should be terminal")
	}
	if StatusSuspended.Terminal() {
		t.Error("suspended should not be terminal")
	}
	if StatusCreated.Terminal() || StatusLinked.Terminal() {
		t.Error("created and linked should not be terminal")
	}
}

func TestCreateRequisitionValidation(t *testing.T) {
	svc := NewService(&MockProvider{}, &MockAgreementRepo{}, &MockRequisitionRepo{})

	tests := []struct {
		name    string
		params  CreateRequisitionParams
		wantErr error
	}{
		{
			name:    "missing redirect",
			params:  CreateRequisitionParams{InstitutionID: "BANK_A", AgreementID: "agr-1"},
			wantErr: ErrRedirectURLRequired,
		},
		{
			name:    "missing institution",
			params:  CreateRequisitionParams{RedirectURL: "https://app/cb", AgreementID: "agr-1"},
			wantErr: ErrInstitutionIDRequired,
		},
		{
			name:    "missing agreement",
			params:  CreateRequisitionParams{RedirectURL: "https://app/cb", InstitutionID: "BANK_A"},
			wantErr: ErrAgreementIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRequisition(context.Background(), "user-1", tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateRequisition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateRequisitionAgreementMismatch(t *testing.T) {
	agreements := &MockAgreementRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*Agreement, error) {
			return &Agreement{ID: id, InstitutionID: "BANK_B"}, nil
		},
	}
	svc := NewService(&MockProvider{}, agreements, &MockRequisitionRepo{})

	_, err := svc.CreateRequisition(context.Background(), "user-1", CreateRequisitionParams{
		RedirectURL:   "https://app/cb",
		InstitutionID: "BANK_A",
		AgreementID:   "agr-1",
	})
	if !errors.Is(err, ErrAgreementInstitutionMismatch) {
		t.Errorf("expected ErrAgreementInstitutionMismatch, got %v", err)
	}
}

func TestCreateRequisitionGeneratesReference(t *testing.T) {
	var gotReq bankdata.CreateRequisitionRequest
	provider := &MockProvider{
		CreateRequisitionFunc: func(ctx context.Context, req bankdata.CreateRequisitionRequest) (*bankdata.Requisition, error) {
			gotReq = req
			return &bankdata.Requisition{
				ID:            "req-1",
				Status:        "CR",
				InstitutionID: req.InstitutionID,
				AgreementID:   req.AgreementID,
				Reference:     req.Reference,
				Link:          "https://aggregator/psd2/start/req-1",
				Created:       "2024-03-01T10:00:00Z",
			}, nil
		},
	}
	agreements := &MockAgreementRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*Agreement, error) {
			return &Agreement{ID: id, InstitutionID: "BANK_A"}, nil
		},
	}
	requisitions := &MockRequisitionRepo{}
	svc := NewService(provider, agreements, requisitions)

	requisition, err := svc.CreateRequisition(context.Background(), "user-1", CreateRequisitionParams{
		RedirectURL:   "https://app/cb",
		InstitutionID: "BANK_A",
		AgreementID:   "agr-1",
	})
	if err != nil {
		t.Fatalf("CreateRequisition() failed: %v", err)
	}

	if gotReq.Reference == "" {
		t.Error("expected a generated reference when none provided")
	}
	if requisition.Status != StatusCreated {
		t.Errorf("status = %q, want created", requisition.Status)
	}
	if requisition.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", requisition.UserID)
	}
	if len(requisitions.Saved) != 1 {
		t.Fatalf("saved %d requisitions, want 1", len(requisitions.Saved))
	}
}

func TestLinkAccountAlreadyLinked(t *testing.T) {
	requisitions := &MockRequisitionRepo{
		ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*Requisition, error) {
			return []*Requisition{
				{ID: "req-1", Status: StatusLinked, Accounts: []string{"acc-1"}},
			}, nil
		},
	}
	provider := &MockProvider{
		GetInstitutionFunc: func(ctx context.Context, institutionID string) (*bankdata.Institution, error) {
			t.Fatal("GetInstitution should not be called when already linked")
			return nil, nil
		},
	}
	svc := NewService(provider, &MockAgreementRepo{}, requisitions)

	result, err := svc.LinkAccount(context.Background(), "user-1", "BANK_A", "https://app/cb")
	if err != nil {
		t.Fatalf("LinkAccount() failed: %v", err)
	}

	if !result.AlreadyLinked {
		t.Error("expected AlreadyLinked")
	}
	if result.RequisitionID != "req-1" {
		t.Errorf("RequisitionID = %q, want req-1", result.RequisitionID)
	}
}

func TestLinkAccountPendingRequisitionCompleted(t *testing.T) {
	requisitions := &MockRequisitionRepo{
		ListByInstitutionAndUserFunc: func(ctx context.Context, institutionID, userID string) ([]*Requisition, error) {
			return []*Requisition{
				{ID: "req-1", Status: StatusCreated, InstitutionID: institutionID, UserID: userID},
			}, nil
		},
	}
	provider := &MockProvider{
		GetRequisitionFunc: func(ctx context.Context, id string) (*bankdata.Requisition, error) {
			return &bankdata.Requisition{
				ID:            id,
				Status:        "LN",
				InstitutionID: "BANK_A",
				Accounts:      []string{"acc-1", "acc-2"},
				Created:       "2024-03-01T10:00:00Z",
			}, nil
		},
	}
	svc := NewService(provider, &MockAgreementRepo{}, requisitions)

	result, err := svc.LinkAccount(context.Background(), "user-1", "BANK_A", "https://app/cb")
	if err != nil {
		t.Fatalf("LinkAccount() failed: %v", err)
	}

	if !result.AlreadyLinked {
		t.Error("expected AlreadyLinked after upstream refresh")
	}
	if len(requisitions.Updated) != 1 {
		t.Fatalf("updated %d requisitions, want 1", len(requisitions.Updated))
	}
	if requisitions.Updated[0].Status != StatusLinked {
		t.Errorf("updated status = %q, want linked", requisitions.Updated[0].Status)
	}
}

func TestLinkAccountFullFlow(t *testing.T) {
	days := 730
	access := 90

	provider := &MockProvider{
		GetInstitutionFunc: func(ctx context.Context, institutionID string) (*bankdata.Institution, error) {
			return &bankdata.Institution{
				ID:                    institutionID,
				Name:                  "Bank A",
				TransactionTotalDays:  "730",
				MaxAccessValidForDays: "90",
			}, nil
		},
		CreateAgreementFunc: func(ctx context.Context, req bankdata.CreateAgreementRequest) (*bankdata.Agreement, error) {
			if req.MaxHistoricalDays == nil || *req.MaxHistoricalDays != days {
				t.Errorf("MaxHistoricalDays = %v, want %d", req.MaxHistoricalDays, days)
			}
			if req.AccessValidForDays == nil || *req.AccessValidForDays != access {
				t.Errorf("AccessValidForDays = %v, want %d", req.AccessValidForDays, access)
			}
			return &bankdata.Agreement{
				ID:            "agr-1",
				InstitutionID: req.InstitutionID,
				Created:       "2024-03-01T10:00:00Z",
			}, nil
		},
		CreateRequisitionFunc: func(ctx context.Context, req bankdata.CreateRequisitionRequest) (*bankdata.Requisition, error) {
			return &bankdata.Requisition{
				ID:            "req-1",
				Status:        "CR",
				InstitutionID: req.InstitutionID,
				AgreementID:   req.AgreementID,
				Reference:     req.Reference,
				Link:          "https://aggregator/psd2/start/req-1",
				Created:       "2024-03-01T10:00:05Z",
			}, nil
		},
	}
	agreements := &MockAgreementRepo{}
	agreements.GetByIDFunc = func(ctx context.Context, id string) (*Agreement, error) {
		for _, a := range agreements.Saved {
			if a.ID == id {
				return a, nil
			}
		}
		return nil, nil
	}
	requisitions := &MockRequisitionRepo{}
	svc := NewService(provider, agreements, requisitions)

	result, err := svc.LinkAccount(context.Background(), "user-1", "BANK_A", "https://app/cb")
	if err != nil {
		t.Fatalf("LinkAccount() failed: %v", err)
	}

	if result.AgreementID != "agr-1" {
		t.Errorf("AgreementID = %q, want agr-1", result.AgreementID)
	}
	if result.RequisitionID != "req-1" {
		t.Errorf("RequisitionID = %q, want req-1", result.RequisitionID)
	}
	if result.AuthenticationLink == "" {
		t.Error("expected an authentication link")
	}
	if result.AlreadyLinked {
		t.Error("fresh link should not report AlreadyLinked")
	}
	if len(agreements.Saved) != 1 || len(requisitions.Saved) != 1 {
		t.Errorf("saved %d agreements and %d requisitions, want 1 each", len(agreements.Saved), len(requisitions.Saved))
	}
}

func TestLinkAccountRequisitionFailureNamesAgreement(t *testing.T) {
	provider := &MockProvider{
		GetInstitutionFunc: func(ctx context.Context, institutionID string) (*bankdata.Institution, error) {
			return &bankdata.Institution{ID: institutionID}, nil
		},
		CreateAgreementFunc: func(ctx context.Context, req bankdata.CreateAgreementRequest) (*bankdata.Agreement, error) {
			return &bankdata.Agreement{ID: "agr-1", InstitutionID: req.InstitutionID, Created: "2024-03-01T10:00:00Z"}, nil
		},
		CreateRequisitionFunc: func(ctx context.Context, req bankdata.CreateRequisitionRequest) (*bankdata.Requisition, error) {
			return nil, &bankdata.ProviderError{StatusCode: 500, Detail: "upstream down"}
		},
	}
	agreements := &MockAgreementRepo{}
	agreements.GetByIDFunc = func(ctx context.Context, id string) (*Agreement, error) {
		for _, a := range agreements.Saved {
			if a.ID == id {
				return a, nil
			}
		}
		return nil, nil
	}
	svc := NewService(provider, agreements, &MockRequisitionRepo{})

	_, err := svc.LinkAccount(context.Background(), "user-1", "BANK_A", "https://app/cb")
	if err == nil {
		t.Fatal("expected error when requisition creation fails")
	}
	if !strings.Contains(err.Error(), "agreement agr-1 persisted without requisition") {
		t.Errorf("error should name the orphaned agreement, got: %v", err)
	}
	// The agreement stays persisted; there is no compensation.
	if len(agreements.Saved) != 1 {
		t.Errorf("saved %d agreements, want 1", len(agreements.Saved))
	}
}
