package consent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"nestegg/internal/infrastructure/bankdata"
)

// Service manages the consent lifecycle: agreements and requisitions
// created with the aggregator and mirrored locally.
type Service struct {
	provider     bankdata.Provider
	agreements   AgreementRepository
	requisitions RequisitionRepository
}

// NewService creates a new consent service.
func NewService(provider bankdata.Provider, agreements AgreementRepository, requisitions RequisitionRepository) *Service {
	return &Service{
		provider:     provider,
		agreements:   agreements,
		requisitions: requisitions,
	}
}

// CreateAgreement creates a consent agreement with the aggregator and
// persists it. maxHistoricalDays and accessValidForDays are optional;
// the aggregator applies institution defaults when nil.
func (s *Service) CreateAgreement(ctx context.Context, userID, institutionID string, maxHistoricalDays, accessValidForDays *int) (*Agreement, error) {
	if institutionID == "" {
		return nil, ErrInstitutionIDRequired
	}

	resp, err := s.provider.CreateAgreement(ctx, bankdata.CreateAgreementRequest{
		InstitutionID:      institutionID,
		MaxHistoricalDays:  maxHistoricalDays,
		AccessValidForDays: accessValidForDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agreement with aggregator: %w", err)
	}

	agreement, err := agreementFromBankData(resp, userID)
	if err != nil {
		return nil, err
	}

	if err := s.agreements.Save(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to save agreement %s: %w", agreement.ID, err)
	}

	log.Printf("Created agreement %s for institution %s", agreement.ID, institutionID)
	return agreement, nil
}

// CreateRequisition creates a consent session referencing an existing
// agreement. The returned requisition carries the authentication link
// the user must follow to complete consent out-of-band.
func (s *Service) CreateRequisition(ctx context.Context, userID string, params CreateRequisitionParams) (*Requisition, error) {
	if params.RedirectURL == "" {
		return nil, ErrRedirectURLRequired
	}
	if params.InstitutionID == "" {
		return nil, ErrInstitutionIDRequired
	}
	if params.AgreementID == "" {
		return nil, ErrAgreementIDRequired
	}

	agreement, err := s.agreements.GetByID(ctx, params.AgreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreement %s: %w", params.AgreementID, err)
	}
	if agreement == nil {
		return nil, ErrAgreementNotFound
	}
	if agreement.InstitutionID != params.InstitutionID {
		return nil, ErrAgreementInstitutionMismatch
	}

	if params.Reference == "" {
		params.Reference = uuid.NewString()
	}

	resp, err := s.provider.CreateRequisition(ctx, bankdata.CreateRequisitionRequest{
		Redirect:      params.RedirectURL,
		InstitutionID: params.InstitutionID,
		AgreementID:   params.AgreementID,
		Reference:     params.Reference,
		UserLanguage:  params.UserLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create requisition with aggregator: %w", err)
	}

	requisition, err := RequisitionFromBankData(resp, userID)
	if err != nil {
		return nil, err
	}

	if err := s.requisitions.Save(ctx, requisition); err != nil {
		return nil, fmt.Errorf("failed to save requisition %s: %w", requisition.ID, err)
	}

	log.Printf("Created requisition %s for institution %s (reference %s)", requisition.ID, params.InstitutionID, params.Reference)
	return requisition, nil
}

// LinkAccount is the composite consent flow: create an agreement, then a
// requisition, sequentially and not transactionally. If requisition
// creation fails the agreement stays persisted; the error names it so
// the orphaned half of the chain is diagnosable.
//
// An existing linked requisition for the same institution and user
// short-circuits the flow instead of opening a second consent chain.
func (s *Service) LinkAccount(ctx context.Context, userID, institutionID, redirectURL string) (*LinkResult, error) {
	if institutionID == "" {
		return nil, ErrInstitutionIDRequired
	}
	if redirectURL == "" {
		return nil, ErrRedirectURLRequired
	}

	if result, err := s.checkExistingLink(ctx, userID, institutionID); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	institution, err := s.provider.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch institution %s: %w", institutionID, err)
	}

	maxHistorical := institution.GetTransactionTotalDays()
	accessValid := institution.GetMaxAccessValidForDays()
	var maxHistoricalPtr, accessValidPtr *int
	if maxHistorical > 0 {
		maxHistoricalPtr = &maxHistorical
	}
	if accessValid > 0 {
		accessValidPtr = &accessValid
	}

	agreement, err := s.CreateAgreement(ctx, userID, institutionID, maxHistoricalPtr, accessValidPtr)
	if err != nil {
		return nil, err
	}

	requisition, err := s.CreateRequisition(ctx, userID, CreateRequisitionParams{
		RedirectURL:   redirectURL,
		InstitutionID: institutionID,
		AgreementID:   agreement.ID,
	})
	if err != nil {
		// Agreement persisted, requisition pending. No compensation:
		// the agreement expires passively upstream.
		return nil, fmt.Errorf("agreement %s persisted without requisition: %w", agreement.ID, err)
	}

	return &LinkResult{
		AgreementID:        agreement.ID,
		RequisitionID:      requisition.ID,
		AuthenticationLink: requisition.AuthenticationLink,
		Status:             requisition.Status,
	}, nil
}

// GetRequisition returns the locally persisted requisition.
func (s *Service) GetRequisition(ctx context.Context, id string) (*Requisition, error) {
	requisition, err := s.requisitions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load requisition %s: %w", id, err)
	}
	if requisition == nil {
		return nil, ErrRequisitionNotFound
	}
	return requisition, nil
}

func (s *Service) checkExistingLink(ctx context.Context, userID, institutionID string) (*LinkResult, error) {
	existing, err := s.requisitions.ListByInstitutionAndUser(ctx, institutionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requisitions for institution %s: %w", institutionID, err)
	}

	for _, r := range existing {
		if r.Status == StatusLinked && len(r.Accounts) > 0 {
			log.Printf("Institution %s already linked for user %s via requisition %s", institutionID, userID, r.ID)
			return &LinkResult{RequisitionID: r.ID, Status: r.Status, AlreadyLinked: true}, nil
		}
	}

	// A created requisition may have progressed upstream since we last
	// looked; the aggregator is authoritative.
	for _, r := range existing {
		if r.Status != StatusCreated {
			continue
		}
		latest, err := s.provider.GetRequisition(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh requisition %s: %w", r.ID, err)
		}
		if latest == nil {
			continue
		}
		refreshed, err := RequisitionFromBankData(latest, userID)
		if err != nil {
			return nil, err
		}
		if refreshed.Status == StatusLinked && len(refreshed.Accounts) > 0 {
			if err := s.requisitions.Update(ctx, refreshed); err != nil {
				return nil, fmt.Errorf("failed to update requisition %s: %w", refreshed.ID, err)
			}
			log.Printf("Pending requisition %s completed with %d accounts", refreshed.ID, len(refreshed.Accounts))
			return &LinkResult{RequisitionID: refreshed.ID, Status: refreshed.Status, AlreadyLinked: true}, nil
		}
		break
	}

	return nil, nil
}

func agreementFromBankData(a *bankdata.Agreement, userID string) (*Agreement, error) {
	created, err := a.GetCreated()
	if err != nil {
		return nil, err
	}
	accepted, err := a.GetAccepted()
	if err != nil {
		return nil, err
	}
	if created.IsZero() {
		created = time.Now().UTC()
	}

	return &Agreement{
		ID:                 a.ID,
		UserID:             userID,
		InstitutionID:      a.InstitutionID,
		MaxHistoricalDays:  a.MaxHistoricalDays,
		AccessValidForDays: a.AccessValidForDays,
		AccessScope:        a.AccessScope,
		Created:            created,
		Accepted:           accepted,
	}, nil
}

// RequisitionFromBankData maps an aggregator requisition onto the domain
// entity, translating the wire status code.
func RequisitionFromBankData(r *bankdata.Requisition, userID string) (*Requisition, error) {
	status, err := StatusFromWire(r.Status)
	if err != nil {
		return nil, err
	}
	created, err := r.GetCreated()
	if err != nil {
		return nil, err
	}
	if created.IsZero() {
		created = time.Now().UTC()
	}

	return &Requisition{
		ID:                 r.ID,
		UserID:             userID,
		InstitutionID:      r.InstitutionID,
		AgreementID:        r.AgreementID,
		Reference:          r.Reference,
		Status:             status,
		RedirectURL:        r.Redirect,
		AuthenticationLink: r.Link,
		Accounts:           r.Accounts,
		Created:            created,
	}, nil
}
