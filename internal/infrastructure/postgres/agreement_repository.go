package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"nestegg/internal/domain/consent"
)

// AgreementRepository implements consent.AgreementRepository for PostgreSQL
type AgreementRepository struct {
	db *DB
}

func NewAgreementRepository(db *DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) Save(ctx context.Context, a *consent.Agreement) error {
	query := `
		INSERT INTO agreements (id, user_id, institution_id, max_historical_days, access_valid_for_days, access_scope, created, accepted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			accepted = EXCLUDED.accepted
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.InstitutionID, a.MaxHistoricalDays, a.AccessValidForDays,
		pq.Array(a.AccessScope), a.Created, a.Accepted,
	)
	if err != nil {
		return fmt.Errorf("failed to save agreement: %w", err)
	}
	return nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, id string) (*consent.Agreement, error) {
	query := `
		SELECT id, user_id, institution_id, max_historical_days, access_valid_for_days, access_scope, created, accepted
		FROM agreements
		WHERE id = $1
	`

	var a consent.Agreement
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.InstitutionID, &a.MaxHistoricalDays, &a.AccessValidForDays,
		pq.Array(&a.AccessScope), &a.Created, &a.Accepted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return &a, nil
}
