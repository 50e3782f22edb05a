package bankdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"
	defaultTimeout = 60 * time.Second
)

// Client handles communication with the open-banking aggregator API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Ensure Client implements Provider
var _ Provider = (*Client)(nil)

// NewClient creates a new aggregator API client. baseURL may be empty to
// use the production endpoint.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		token:      token,
	}
}

// ProviderError is returned when the aggregator rejects a request or
// responds with malformed data. Callers decide whether to retry.
type ProviderError struct {
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("aggregator request failed with status %d: %s", e.StatusCode, e.Detail)
}

// errorBody is the aggregator's error envelope.
type errorBody struct {
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

// Agreement is an end-user agreement as returned by the aggregator.
type Agreement struct {
	ID                 string   `json:"id"`
	Created            string   `json:"created"`
	InstitutionID      string   `json:"institution_id"`
	MaxHistoricalDays  *int     `json:"max_historical_days"`
	AccessValidForDays *int     `json:"access_valid_for_days"`
	AccessScope        []string `json:"access_scope"`
	Accepted           *string  `json:"accepted"`
}

// GetCreated parses and returns the created timestamp.
func (a *Agreement) GetCreated() (time.Time, error) {
	return parseTimestamp(a.Created)
}

// GetAccepted parses and returns the accepted timestamp, nil if unset.
func (a *Agreement) GetAccepted() (*time.Time, error) {
	if a.Accepted == nil || *a.Accepted == "" {
		return nil, nil
	}
	t, err := parseTimestamp(*a.Accepted)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Requisition is a consent session as returned by the aggregator. Status
// is the raw two-letter wire code; the consent domain maps it.
type Requisition struct {
	ID            string   `json:"id"`
	Created       string   `json:"created"`
	Redirect      string   `json:"redirect"`
	Status        string   `json:"status"`
	InstitutionID string   `json:"institution_id"`
	AgreementID   string   `json:"agreement"`
	Reference     string   `json:"reference"`
	Accounts      []string `json:"accounts"`
	Link          string   `json:"link"`
}

// GetCreated parses and returns the created timestamp.
func (r *Requisition) GetCreated() (time.Time, error) {
	return parseTimestamp(r.Created)
}

// Account is the aggregator's account metadata record.
type Account struct {
	ID            string `json:"id"`
	Created       string `json:"created"`
	LastAccessed  string `json:"last_accessed"`
	IBAN          string `json:"iban"`
	InstitutionID string `json:"institution_id"`
	Status        string `json:"status"`
	OwnerName     string `json:"owner_name"`
}

// AccountDetail is the schema-level account description.
type AccountDetail struct {
	ResourceID      string `json:"resourceId"`
	IBAN            string `json:"iban"`
	Currency        string `json:"currency"`
	OwnerName       string `json:"ownerName"`
	Name            string `json:"name"`
	Product         string `json:"product"`
	CashAccountType string `json:"cashAccountType"`
	Status          string `json:"status"`
}

type accountDetailResponse struct {
	Account AccountDetail `json:"account"`
}

// AmountValue is the aggregator's {amount, currency} pair. Amounts come
// over the wire as strings.
type AmountValue struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// GetAmount returns the amount as a decimal.
func (v *AmountValue) GetAmount() (decimal.Decimal, error) {
	if v.Amount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", v.Amount, err)
	}
	return d, nil
}

// Balance is one balance snapshot for an account.
type Balance struct {
	BalanceAmount       AmountValue `json:"balanceAmount"`
	BalanceType         string      `json:"balanceType"`
	CreditLimitIncluded *bool       `json:"creditLimitIncluded"`
	ReferenceDate       string      `json:"referenceDate"`
}

// GetReferenceDate parses the reference date, nil if unset.
func (b *Balance) GetReferenceDate() (*time.Time, error) {
	return parseOptionalDate(b.ReferenceDate)
}

type balancesResponse struct {
	Balances []Balance `json:"balances"`
}

// Transaction is one ledger row from the aggregator.
type Transaction struct {
	TransactionID     string      `json:"transactionId"`
	BookingDate       string      `json:"bookingDate"`
	ValueDate         string      `json:"valueDate"`
	TransactionAmount AmountValue `json:"transactionAmount"`
	CreditorName      string      `json:"creditorName"`
	DebtorName        string      `json:"debtorName"`
	CreditorAccount   *struct {
		IBAN string `json:"iban"`
	} `json:"creditorAccount"`
	DebtorAccount *struct {
		IBAN string `json:"iban"`
	} `json:"debtorAccount"`
	RemittanceInformation string `json:"remittanceInformationUnstructured"`
}

// GetBookingDate parses the booking date, nil if unset (pending rows).
func (t *Transaction) GetBookingDate() (*time.Time, error) {
	return parseOptionalDate(t.BookingDate)
}

// GetValueDate parses the value date, nil if unset.
func (t *Transaction) GetValueDate() (*time.Time, error) {
	return parseOptionalDate(t.ValueDate)
}

// CounterpartyName returns the creditor name, falling back to the debtor.
func (t *Transaction) CounterpartyName() string {
	if t.CreditorName != "" {
		return t.CreditorName
	}
	return t.DebtorName
}

// CounterpartyIBAN returns the counterparty account IBAN when present.
func (t *Transaction) CounterpartyIBAN() string {
	if t.CreditorAccount != nil && t.CreditorAccount.IBAN != "" {
		return t.CreditorAccount.IBAN
	}
	if t.DebtorAccount != nil {
		return t.DebtorAccount.IBAN
	}
	return ""
}

// TransactionPage separates booked rows from pending ones.
type TransactionPage struct {
	Booked  []Transaction `json:"booked"`
	Pending []Transaction `json:"pending"`
}

type transactionsResponse struct {
	Transactions TransactionPage `json:"transactions"`
}

// Institution is one directory entry from the aggregator.
type Institution struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	BIC                   string   `json:"bic"`
	TransactionTotalDays  string   `json:"transaction_total_days"`
	MaxAccessValidForDays string   `json:"max_access_valid_for_days"`
	Countries             []string `json:"countries"`
	Logo                  string   `json:"logo"`
}

// GetTransactionTotalDays returns the history window as an int, 0 if unparseable.
func (i *Institution) GetTransactionTotalDays() int {
	n, _ := strconv.Atoi(i.TransactionTotalDays)
	return n
}

// GetMaxAccessValidForDays returns the access window as an int, 0 if unparseable.
func (i *Institution) GetMaxAccessValidForDays() int {
	n, _ := strconv.Atoi(i.MaxAccessValidForDays)
	return n
}

// CreateAgreementRequest is the payload for creating an agreement.
type CreateAgreementRequest struct {
	InstitutionID      string   `json:"institution_id"`
	MaxHistoricalDays  *int     `json:"max_historical_days,omitempty"`
	AccessValidForDays *int     `json:"access_valid_for_days,omitempty"`
	AccessScope        []string `json:"access_scope"`
}

// CreateRequisitionRequest is the payload for creating a consent session.
type CreateRequisitionRequest struct {
	Redirect      string `json:"redirect"`
	InstitutionID string `json:"institution_id"`
	AgreementID   string `json:"agreement,omitempty"`
	Reference     string `json:"reference"`
	UserLanguage  string `json:"user_language,omitempty"`
}

// CreateAgreement creates an end-user agreement with the aggregator.
func (c *Client) CreateAgreement(ctx context.Context, req CreateAgreementRequest) (*Agreement, error) {
	if len(req.AccessScope) == 0 {
		req.AccessScope = []string{"details", "balances", "transactions"}
	}

	var agreement Agreement
	if err := c.do(ctx, http.MethodPost, "/agreements/enduser/", req, &agreement); err != nil {
		return nil, err
	}
	return &agreement, nil
}

// CreateRequisition creates a consent session and returns the
// authentication link the user must follow.
func (c *Client) CreateRequisition(ctx context.Context, req CreateRequisitionRequest) (*Requisition, error) {
	var requisition Requisition
	if err := c.do(ctx, http.MethodPost, "/requisitions/", req, &requisition); err != nil {
		return nil, err
	}
	return &requisition, nil
}

// GetRequisition fetches the authoritative state of a consent session.
// Returns nil, nil when the aggregator no longer knows the requisition.
func (c *Client) GetRequisition(ctx context.Context, id string) (*Requisition, error) {
	var requisition Requisition
	if err := c.do(ctx, http.MethodGet, "/requisitions/"+id+"/", nil, &requisition); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &requisition, nil
}

// GetAccount fetches account metadata. Returns nil, nil when the account
// no longer exists or access has been revoked.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountID+"/", nil, &account); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountDetails fetches the schema-level account description.
func (c *Client) GetAccountDetails(ctx context.Context, accountID string) (*AccountDetail, error) {
	var resp accountDetailResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountID+"/details/", nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Account, nil
}

// GetAccountBalances fetches the current balance snapshots for an account.
func (c *Client) GetAccountBalances(ctx context.Context, accountID string) ([]Balance, error) {
	var resp balancesResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountID+"/balances/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

// GetAccountTransactions fetches transactions for an account. Dates are
// inclusive and formatted as YYYY-MM-DD; either bound may be nil.
func (c *Client) GetAccountTransactions(ctx context.Context, accountID string, dateFrom, dateTo *time.Time) (*TransactionPage, error) {
	path := "/accounts/" + accountID + "/transactions/"

	q := url.Values{}
	if dateFrom != nil {
		q.Set("date_from", dateFrom.Format("2006-01-02"))
	}
	if dateTo != nil {
		q.Set("date_to", dateTo.Format("2006-01-02"))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp transactionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Transactions, nil
}

// GetInstitution fetches one institution directory entry.
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*Institution, error) {
	var institution Institution
	if err := c.do(ctx, http.MethodGet, "/institutions/"+institutionID+"/", nil, &institution); err != nil {
		return nil, err
	}
	return &institution, nil
}

// GetInstitutions fetches the complete institution directory for a country.
func (c *Client) GetInstitutions(ctx context.Context, countryCode string) ([]Institution, error) {
	var institutions []Institution
	if err := c.do(ctx, http.MethodGet, "/institutions/?country="+url.QueryEscape(countryCode), nil, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorBody
		detail := string(data)
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Detail != "" {
			detail = errResp.Detail
		}
		return &ProviderError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &ProviderError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("malformed response body: %v", err)}
		}
	}

	return nil
}

func isNotFound(err error) bool {
	pe, ok := err.(*ProviderError)
	return ok && pe.StatusCode == http.StatusNotFound
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
		}
	}
	return t, nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return &t, nil
}
