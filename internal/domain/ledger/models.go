package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nestegg/internal/infrastructure/bankdata"
)

// Domain errors
var (
	ErrAccountIDRequired = errors.New("account ID is required")
	ErrInvalidDate       = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidDateRange  = errors.New("dateFrom must not be after dateTo")
)

// Transaction is one ledger row. Identity is (AccountID, UpstreamID);
// rows are created once and updated in place as pending transactions
// settle. RunningBalance is nil until the bulk computation has run.
type Transaction struct {
	AccountID        string           `json:"accountId"`
	UpstreamID       string           `json:"upstreamId"`
	UserID           string           `json:"userId"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	BookingDate      *time.Time       `json:"bookingDate,omitempty"`
	ValueDate        *time.Time       `json:"valueDate,omitempty"`
	CounterpartyName string           `json:"counterpartyName,omitempty"`
	CounterpartyIBAN string           `json:"counterpartyIban,omitempty"`
	RemittanceInfo   string           `json:"remittanceInfo,omitempty"`
	Status           string           `json:"status"`
	RunningBalance   *decimal.Decimal `json:"runningBalance,omitempty"`
	ImportedAt       time.Time        `json:"importedAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Transaction statuses reported by the aggregator.
const (
	StatusBooked  = "booked"
	StatusPending = "pending"
)

// FromBankData maps an aggregator transaction onto a ledger row.
func FromBankData(t *bankdata.Transaction, status string) (Transaction, error) {
	amount, err := t.TransactionAmount.GetAmount()
	if err != nil {
		return Transaction{}, err
	}
	bookingDate, err := t.GetBookingDate()
	if err != nil {
		return Transaction{}, err
	}
	valueDate, err := t.GetValueDate()
	if err != nil {
		return Transaction{}, err
	}

	upstreamID := t.TransactionID
	if upstreamID == "" {
		upstreamID = syntheticUpstreamID(t)
	}

	return Transaction{
		UpstreamID:       upstreamID,
		Amount:           amount,
		Currency:         t.TransactionAmount.Currency,
		BookingDate:      bookingDate,
		ValueDate:        valueDate,
		CounterpartyName: t.CounterpartyName(),
		CounterpartyIBAN: t.CounterpartyIBAN(),
		RemittanceInfo:   t.RemittanceInformation,
		Status:           status,
	}, nil
}

// syntheticUpstreamID derives a surrogate identifier for rows the
// aggregator delivers without a transactionId, which happens routinely
// for pending entries. The hash covers the wire fields as received, so
// re-fetching the same row yields the same identifier and the upsert
// stays idempotent. Distinct rows collapse only when every hashed field
// matches.
func syntheticUpstreamID(t *bankdata.Transaction) string {
	h := sha256.New()
	for _, field := range []string{
		t.TransactionAmount.Amount,
		t.TransactionAmount.Currency,
		t.BookingDate,
		t.ValueDate,
		t.CreditorName,
		t.DebtorName,
		t.RemittanceInformation,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return "synthetic-" + hex.EncodeToString(h.Sum(nil))[:32]
}

// ParseDate validates and parses an inclusive YYYY-MM-DD boundary.
// A nil result means the boundary was not supplied.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return &t, nil
}
