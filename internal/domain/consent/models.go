package consent

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrInstitutionIDRequired        = errors.New("institution ID is required")
	ErrRedirectURLRequired          = errors.New("redirect URL is required")
	ErrAgreementIDRequired          = errors.New("agreement ID is required")
	ErrAgreementNotFound            = errors.New("agreement not found")
	ErrAgreementInstitutionMismatch = errors.New("agreement belongs to a different institution")
	ErrRequisitionNotFound          = errors.New("requisition not found")
)

// RequisitionStatus is the lifecycle state of a consent session.
// The aggregator is authoritative; this package never fabricates transitions.
type RequisitionStatus string

const (
	StatusCreated   RequisitionStatus = "created"
	StatusLinked    RequisitionStatus = "linked"
	StatusSuspended RequisitionStatus = "suspended"
	StatusExpired   RequisitionStatus = "expired"
	StatusRejected  RequisitionStatus = "rejected"
)

// Terminal reports whether the status can no longer progress.
// Expired and rejected requisitions require a full re-link.
func (s RequisitionStatus) Terminal() bool {
	return s == StatusExpired || s == StatusRejected
}

// StatusFromWire maps the aggregator's two-letter status codes to a
// RequisitionStatus. The intermediate authorization steps (CR, GC, UA,
// SA, GA) all present as created: the user has not finished consent yet.
func StatusFromWire(code string) (RequisitionStatus, error) {
	switch code {
	case "CR", "GC", "UA", "SA", "GA":
		return StatusCreated, nil
	case "LN":
		return StatusLinked, nil
	case "SU":
		return StatusSuspended, nil
	case "EX":
		return StatusExpired, nil
	case "RJ":
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown requisition status code %q", code)
	}
}

// Agreement is a consent contract granting access scope and duration for
// one institution. Immutable after creation; it expires passively.
type Agreement struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	InstitutionID      string     `json:"institutionId"`
	MaxHistoricalDays  *int       `json:"maxHistoricalDays,omitempty"`
	AccessValidForDays *int       `json:"accessValidForDays,omitempty"`
	AccessScope        []string   `json:"accessScope"`
	Created            time.Time  `json:"created"`
	Accepted           *time.Time `json:"accepted,omitempty"`
}

// Requisition is one consent/link session tied to an Agreement. Accounts
// are the upstream account ids discovered once the user completes consent.
type Requisition struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	InstitutionID      string            `json:"institutionId"`
	AgreementID        string            `json:"agreementId"`
	Reference          string            `json:"reference"`
	Status             RequisitionStatus `json:"status"`
	RedirectURL        string            `json:"redirectUrl"`
	AuthenticationLink string            `json:"authenticationLink"`
	Accounts           []string          `json:"accounts"`
	Created            time.Time         `json:"created"`
}

// CreateRequisitionParams carries the inputs for creating a consent session.
type CreateRequisitionParams struct {
	RedirectURL   string
	InstitutionID string
	AgreementID   string
	Reference     string
	UserLanguage  string
}

// LinkResult is the outcome of the composite link-account operation.
type LinkResult struct {
	AgreementID        string            `json:"agreementId,omitempty"`
	RequisitionID      string            `json:"requisitionId"`
	AuthenticationLink string            `json:"authenticationLink,omitempty"`
	Status             RequisitionStatus `json:"status"`
	AlreadyLinked      bool              `json:"alreadyLinked"`
}
