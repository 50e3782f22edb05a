package account

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountIDRequired = errors.New("account ID is required")
	ErrInvalidCategory   = errors.New("invalid account category")
)

// Categories a user can assign to an account. Credit marks the account
// as a liability regardless of what the institution reports.
const (
	CategorySpending   = "spending"
	CategorySavings    = "savings"
	CategoryInvestment = "investment"
	CategoryCredit     = "credit"
)

var validCategories = map[string]struct{}{
	CategorySpending:   {},
	CategorySavings:    {},
	CategoryInvestment: {},
	CategoryCredit:     {},
}

// LinkStatus tracks where a local account is in the sync pipeline.
type LinkStatus string

const (
	StatusNew         LinkStatus = "new"
	StatusSyncing     LinkStatus = "syncing"
	StatusCalculating LinkStatus = "calculating"
	StatusLinked      LinkStatus = "linked"
	StatusSuspended   LinkStatus = "suspended"
)

// Account types whose balances count against net worth rather than
// toward it.
var liabilityTypes = map[string]struct{}{
	"card":     {},
	"loan":     {},
	"credit":   {},
	"mortgage": {},
}

// Account is a linked bank account. Created on first discovery, never
// deleted by sync; only updated afterwards.
type Account struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	RequisitionID   string     `json:"requisitionId"`
	InstitutionID   string     `json:"institutionId"`
	Name            string     `json:"name"`
	OwnerName       string     `json:"ownerName"`
	IBAN            string     `json:"iban"`
	Currency        string     `json:"currency"`
	Product         string     `json:"product"`
	CashAccountType string     `json:"cashAccountType"`
	DisplayName     string     `json:"displayName,omitempty"`
	Category        string     `json:"category,omitempty"`
	Status          LinkStatus `json:"status"`
	LastSynced      *time.Time `json:"lastSynced,omitempty"`
	Created         time.Time  `json:"created"`
}

// IsLiability reports whether the account's balance should be subtracted
// from net worth (credit cards, loans, mortgages). A user-assigned
// category overrides the institution's cash account type.
func (a *Account) IsLiability() bool {
	if a.Category != "" {
		return a.Category == CategoryCredit
	}
	_, ok := liabilityTypes[strings.ToLower(a.CashAccountType)]
	return ok
}

// Balance is one append-only, immutable balance snapshot.
type Balance struct {
	AccountID           string          `json:"accountId"`
	BalanceType         string          `json:"balanceType"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	CreditLimitIncluded *bool           `json:"creditLimitIncluded,omitempty"`
	ReferenceDate       *time.Time      `json:"referenceDate,omitempty"`
	RetrievedAt         time.Time       `json:"retrievedAt"`
}

// EffectiveDate is the snapshot's date for ordering purposes: the
// reference date when the aggregator supplied one, else the fetch date.
func (b *Balance) EffectiveDate() time.Time {
	if b.ReferenceDate != nil {
		return *b.ReferenceDate
	}
	return b.RetrievedAt.Truncate(24 * time.Hour)
}

// IsClosingBooked reports whether the snapshot is of a closing/booked
// type, preferred as the running-balance anchor. Spellings vary per
// institution ("closingBooked", "closing-booked").
func (b *Balance) IsClosingBooked() bool {
	n := normalizeBalanceType(b.BalanceType)
	return n == "closingbooked" || n == "closing"
}

func normalizeBalanceType(t string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(t) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// UpsertParams carries the fields refreshed on every sync pass.
type UpsertParams struct {
	ID              string
	UserID          string
	RequisitionID   string
	InstitutionID   string
	Name            string
	OwnerName       string
	IBAN            string
	Currency        string
	Product         string
	CashAccountType string
}
