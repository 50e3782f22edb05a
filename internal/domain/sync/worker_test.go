package sync

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/ledger"
	"nestegg/internal/domain/user"
	"nestegg/internal/infrastructure/bankdata"
	"nestegg/internal/infrastructure/queue"
)

// MockLedgerRepo implements ledger.Repository
type MockLedgerRepo struct {
	UpsertBatchFunc          func(ctx context.Context, transactions []ledger.Transaction) (int64, error)
	ApplyRunningBalancesFunc func(ctx context.Context, accountID string, anchor decimal.Decimal) (int64, error)
}

func (m *MockLedgerRepo) UpsertBatch(ctx context.Context, transactions []ledger.Transaction) (int64, error) {
	if m.UpsertBatchFunc != nil {
		return m.UpsertBatchFunc(ctx, transactions)
	}
	return int64(len(transactions)), nil
}
func (m *MockLedgerRepo) ApplyRunningBalances(ctx context.Context, accountID string, anchor decimal.Decimal) (int64, error) {
	if m.ApplyRunningBalancesFunc != nil {
		return m.ApplyRunningBalancesFunc(ctx, accountID, anchor)
	}
	return 0, nil
}
func (m *MockLedgerRepo) ListByAccountID(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	return nil, nil
}

// MockUserRepo implements user.Repository
type MockUserRepo struct {
	GetByIDFunc func(ctx context.Context, id string) (*user.User, error)
}

func (m *MockUserRepo) Create(ctx context.Context, u *user.User) error { return nil }
func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, nil
}
func (m *MockUserRepo) UpdateDeviceToken(ctx context.Context, id string, token *string) error {
	return nil
}
func (m *MockUserRepo) ClearDeviceToken(ctx context.Context, token string) error { return nil }

// MockMessenger implements notification.Messenger
type MockMessenger struct {
	Sent []string
}

func (m *MockMessenger) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	m.Sent = append(m.Sent, token)
	return nil
}

func syncerForTest(accRepo *MockAccountRepo, provider *MockProvider, ledgerRepo *MockLedgerRepo, pub *MockPublisher, users *MockUserRepo, messenger *MockMessenger) *AccountSyncer {
	ledgerSvc := ledger.NewService(ledgerRepo, accRepo, provider)
	return NewAccountSyncer(accRepo, users, provider, ledgerSvc, pub, messenger, 90)
}

func TestSyncAccount(t *testing.T) {
	ctx := context.Background()
	msg := AccountSyncMessage{AccountID: "acc-1", UserID: "user-1", RequisitionID: "req-1", InstitutionID: "BANK_A"}

	t.Run("full pipeline", func(t *testing.T) {
		var statuses []account.LinkStatus
		var upserted *account.UpsertParams
		var savedBalances []account.Balance
		accRepo := &MockAccountRepo{
			UpdateStatusFunc: func(ctx context.Context, id string, status account.LinkStatus) error {
				statuses = append(statuses, status)
				return nil
			},
			UpsertFunc: func(ctx context.Context, params account.UpsertParams) error {
				upserted = &params
				return nil
			},
			InsertBalancesFunc: func(ctx context.Context, balances []account.Balance) error {
				savedBalances = balances
				return nil
			},
		}
		provider := &MockProvider{
			GetAccountFunc: func(ctx context.Context, accountID string) (*bankdata.Account, error) {
				return &bankdata.Account{ID: accountID}, nil
			},
			GetAccountDetailsFunc: func(ctx context.Context, accountID string) (*bankdata.AccountDetail, error) {
				return &bankdata.AccountDetail{Name: "Everyday", IBAN: "PT50000201231234567890154", Currency: "EUR", CashAccountType: "CACC"}, nil
			},
			GetAccountBalancesFunc: func(ctx context.Context, accountID string) ([]bankdata.Balance, error) {
				return []bankdata.Balance{
					{BalanceAmount: bankdata.AmountValue{Amount: "150.00", Currency: "EUR"}, BalanceType: "closingBooked", ReferenceDate: "2024-03-01"},
				}, nil
			},
			GetAccountTransactionsFunc: func(ctx context.Context, accountID string, dateFrom, dateTo *time.Time) (*bankdata.TransactionPage, error) {
				if dateFrom == nil {
					t.Error("transactions fetched without a history window")
				}
				return &bankdata.TransactionPage{
					Booked: []bankdata.Transaction{
						{TransactionID: "tx-1", BookingDate: "2024-03-01", TransactionAmount: bankdata.AmountValue{Amount: "-12.50", Currency: "EUR"}},
					},
				}, nil
			},
		}
		var ledgerRows []ledger.Transaction
		ledgerRepo := &MockLedgerRepo{
			UpsertBatchFunc: func(ctx context.Context, transactions []ledger.Transaction) (int64, error) {
				ledgerRows = transactions
				return int64(len(transactions)), nil
			},
		}
		pub := &MockPublisher{}

		s := syncerForTest(accRepo, provider, ledgerRepo, pub, &MockUserRepo{}, &MockMessenger{})
		if err := s.SyncAccount(ctx, msg); err != nil {
			t.Fatalf("SyncAccount() error = %v", err)
		}

		if len(statuses) != 1 || statuses[0] != account.StatusSyncing {
			t.Errorf("statuses = %v, want [syncing]", statuses)
		}
		if upserted == nil || upserted.Name != "Everyday" || upserted.CashAccountType != "CACC" {
			t.Errorf("upserted = %+v, want details applied", upserted)
		}
		if len(savedBalances) != 1 || !savedBalances[0].IsClosingBooked() {
			t.Errorf("balances = %v, want one closing-booked snapshot", savedBalances)
		}
		if len(ledgerRows) != 1 || ledgerRows[0].UpstreamID != "tx-1" {
			t.Errorf("ledger rows = %v, want tx-1", ledgerRows)
		}
		if len(accRepo.TouchedLastSynced) != 1 {
			t.Error("last sync timestamp not stamped")
		}
		if len(pub.Enqueued) != 1 || pub.Enqueued[0] != queue.RunningBalance {
			t.Errorf("enqueued = %v, want one %s message", pub.Enqueued, queue.RunningBalance)
		}
	})

	t.Run("account gone upstream is suspended", func(t *testing.T) {
		var statuses []account.LinkStatus
		accRepo := &MockAccountRepo{
			UpdateStatusFunc: func(ctx context.Context, id string, status account.LinkStatus) error {
				statuses = append(statuses, status)
				return nil
			},
		}
		pub := &MockPublisher{}
		s := syncerForTest(accRepo, &MockProvider{}, &MockLedgerRepo{}, pub, &MockUserRepo{}, &MockMessenger{})

		if err := s.SyncAccount(ctx, msg); err != nil {
			t.Fatalf("SyncAccount() error = %v", err)
		}
		if len(statuses) != 2 || statuses[1] != account.StatusSuspended {
			t.Errorf("statuses = %v, want [syncing suspended]", statuses)
		}
		if len(pub.Enqueued) != 0 {
			t.Error("nothing should be enqueued for a vanished account")
		}
	})
}

func TestRecalculateBalances(t *testing.T) {
	ctx := context.Background()
	token := "device-token"

	var statuses []account.LinkStatus
	accRepo := &MockAccountRepo{
		UpdateStatusFunc: func(ctx context.Context, id string, status account.LinkStatus) error {
			statuses = append(statuses, status)
			return nil
		},
	}
	users := &MockUserRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*user.User, error) {
			return &user.User{ID: id, DeviceToken: &token}, nil
		},
	}
	messenger := &MockMessenger{}
	s := syncerForTest(accRepo, &MockProvider{}, &MockLedgerRepo{}, &MockPublisher{}, users, messenger)

	err := s.RecalculateBalances(ctx, RunningBalanceMessage{AccountID: "acc-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("RecalculateBalances() error = %v", err)
	}
	if len(statuses) != 2 || statuses[0] != account.StatusCalculating || statuses[1] != account.StatusLinked {
		t.Errorf("statuses = %v, want [calculating linked]", statuses)
	}
	if len(messenger.Sent) != 1 || messenger.Sent[0] != token {
		t.Errorf("pushes = %v, want one to the device token", messenger.Sent)
	}
}
