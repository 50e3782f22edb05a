package consent

import "context"

// AgreementRepository persists consent agreements.
type AgreementRepository interface {
	Save(ctx context.Context, agreement *Agreement) error
	// GetByID returns nil, nil when no agreement exists.
	GetByID(ctx context.Context, id string) (*Agreement, error)
}

// RequisitionRepository persists consent sessions.
type RequisitionRepository interface {
	Save(ctx context.Context, requisition *Requisition) error
	Update(ctx context.Context, requisition *Requisition) error
	// GetByID returns nil, nil when no requisition exists.
	GetByID(ctx context.Context, id string) (*Requisition, error)
	// ListByInstitutionAndUser returns requisitions newest first.
	ListByInstitutionAndUser(ctx context.Context, institutionID, userID string) ([]*Requisition, error)
	// ListLinked returns every requisition currently in the linked state.
	ListLinked(ctx context.Context) ([]*Requisition, error)
}
