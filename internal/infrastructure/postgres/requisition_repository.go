package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"nestegg/internal/domain/consent"
)

// RequisitionRepository implements consent.RequisitionRepository for PostgreSQL
type RequisitionRepository struct {
	db *DB
}

func NewRequisitionRepository(db *DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

const requisitionColumns = `id, user_id, institution_id, agreement_id, reference, status, redirect_url, authentication_link, accounts, created`

func (r *RequisitionRepository) Save(ctx context.Context, req *consent.Requisition) error {
	query := `
		INSERT INTO requisitions (` + requisitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.UserID, req.InstitutionID, req.AgreementID, req.Reference,
		string(req.Status), req.RedirectURL, req.AuthenticationLink, pq.Array(req.Accounts), req.Created,
	)
	if err != nil {
		return fmt.Errorf("failed to save requisition: %w", err)
	}
	return nil
}

func (r *RequisitionRepository) Update(ctx context.Context, req *consent.Requisition) error {
	query := `
		UPDATE requisitions
		SET status = $2, accounts = $3, authentication_link = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, req.ID, string(req.Status), pq.Array(req.Accounts), req.AuthenticationLink)
	if err != nil {
		return fmt.Errorf("failed to update requisition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return consent.ErrRequisitionNotFound
	}
	return nil
}

func (r *RequisitionRepository) GetByID(ctx context.Context, id string) (*consent.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE id = $1`

	req, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

func (r *RequisitionRepository) ListByInstitutionAndUser(ctx context.Context, institutionID, userID string) ([]*consent.Requisition, error) {
	query := `
		SELECT ` + requisitionColumns + `
		FROM requisitions
		WHERE institution_id = $1 AND user_id = $2
		ORDER BY created DESC
	`
	return r.list(ctx, query, institutionID, userID)
}

func (r *RequisitionRepository) ListLinked(ctx context.Context) ([]*consent.Requisition, error) {
	query := `
		SELECT ` + requisitionColumns + `
		FROM requisitions
		WHERE status = $1
		ORDER BY created DESC
	`
	return r.list(ctx, query, string(consent.StatusLinked))
}

func (r *RequisitionRepository) list(ctx context.Context, query string, args ...any) ([]*consent.Requisition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var reqs []*consent.Requisition
	for rows.Next() {
		req, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *RequisitionRepository) scanOne(row scanner) (*consent.Requisition, error) {
	var req consent.Requisition
	var status string
	err := row.Scan(
		&req.ID, &req.UserID, &req.InstitutionID, &req.AgreementID, &req.Reference,
		&status, &req.RedirectURL, &req.AuthenticationLink, pq.Array(&req.Accounts), &req.Created,
	)
	if err != nil {
		return nil, err
	}
	req.Status = consent.RequisitionStatus(status)
	return &req, nil
}
