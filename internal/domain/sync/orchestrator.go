package sync

import (
	"context"
	"fmt"
	"log"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/consent"
	"nestegg/internal/infrastructure/bankdata"
	"nestegg/internal/infrastructure/queue"
)

// Orchestrator starts sync passes. It refreshes the consent state from
// the aggregator, upserts a row per exposed account and enqueues one
// sync job each; the fetching itself happens on the worker side.
type Orchestrator struct {
	requisitions consent.RequisitionRepository
	accounts     account.Repository
	provider     bankdata.Provider
	publisher    Publisher
}

func NewOrchestrator(requisitions consent.RequisitionRepository, accounts account.Repository, provider bankdata.Provider, publisher Publisher) *Orchestrator {
	return &Orchestrator{
		requisitions: requisitions,
		accounts:     accounts,
		provider:     provider,
		publisher:    publisher,
	}
}

// SyncInstitution runs a sync pass for one linked institution. The
// aggregator's view of the requisition is authoritative: the local
// status is updated to match before anything is enqueued. Running twice
// enqueues the same account set twice; the jobs themselves are
// idempotent.
func (o *Orchestrator) SyncInstitution(ctx context.Context, userID, institutionID string) (*Result, error) {
	if institutionID == "" {
		return nil, ErrInstitutionIDRequired
	}

	req, err := o.latestUsableRequisition(ctx, userID, institutionID)
	if err != nil {
		return nil, err
	}

	remote, err := o.provider.GetRequisition(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh requisition %s: %w", req.ID, err)
	}
	if remote == nil {
		// Gone upstream; nothing left to sync against.
		return nil, ErrRelinkRequired
	}

	status, err := consent.StatusFromWire(remote.Status)
	if err != nil {
		return nil, fmt.Errorf("requisition %s: %w", req.ID, err)
	}
	req.Status = status
	req.Accounts = remote.Accounts
	if err := o.requisitions.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update requisition %s: %w", req.ID, err)
	}

	if status.Terminal() {
		return nil, ErrRelinkRequired
	}
	result := &Result{
		InstitutionID: institutionID,
		RequisitionID: req.ID,
		Status:        string(status),
		AccountIDs:    []string{},
	}
	if status != consent.StatusLinked {
		log.Printf("requisition %s still %s, user has not completed authentication", req.ID, status)
		return result, nil
	}

	return o.enqueueAccounts(ctx, req, result)
}

// SyncAll runs a sync pass for every linked requisition. Used by the
// scheduler; per-requisition failures are logged and skipped so one
// broken consent does not stall the rest.
func (o *Orchestrator) SyncAll(ctx context.Context) (int, error) {
	linked, err := o.requisitions.ListLinked(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list linked requisitions: %w", err)
	}

	enqueued := 0
	for _, req := range linked {
		result, err := o.SyncInstitution(ctx, req.UserID, req.InstitutionID)
		if err != nil {
			log.Printf("scheduled sync for institution %s (user %s) failed: %v", req.InstitutionID, req.UserID, err)
			continue
		}
		enqueued += result.AccountsEnqueued
	}
	return enqueued, nil
}

// latestUsableRequisition picks the newest non-terminal requisition for
// the institution. Expired and rejected consents are skipped.
func (o *Orchestrator) latestUsableRequisition(ctx context.Context, userID, institutionID string) (*consent.Requisition, error) {
	reqs, err := o.requisitions.ListByInstitutionAndUser(ctx, institutionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	for _, req := range reqs {
		if !req.Status.Terminal() {
			return req, nil
		}
	}
	return nil, ErrRelinkRequired
}

func (o *Orchestrator) enqueueAccounts(ctx context.Context, req *consent.Requisition, result *Result) (*Result, error) {
	for _, accountID := range req.Accounts {
		err := o.accounts.Upsert(ctx, account.UpsertParams{
			ID:            accountID,
			UserID:        req.UserID,
			RequisitionID: req.ID,
			InstitutionID: req.InstitutionID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert account %s: %w", accountID, err)
		}

		msg := AccountSyncMessage{
			AccountID:     accountID,
			UserID:        req.UserID,
			RequisitionID: req.ID,
			InstitutionID: req.InstitutionID,
		}
		if err := o.publisher.Enqueue(ctx, queue.AccountSync, msg); err != nil {
			return nil, fmt.Errorf("failed to enqueue sync for account %s: %w", accountID, err)
		}
		result.AccountsEnqueued++
		result.AccountIDs = append(result.AccountIDs, accountID)
	}
	return result, nil
}
