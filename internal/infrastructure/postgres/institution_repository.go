package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"nestegg/internal/domain/institution"
)

// InstitutionRepository implements institution.Repository for PostgreSQL
type InstitutionRepository struct {
	db *DB
}

func NewInstitutionRepository(db *DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func (r *InstitutionRepository) ListByCountry(ctx context.Context, countryCode string) ([]institution.Metadata, error) {
	query := `
		SELECT id, country_code, name, bic, logo_url, transaction_total_days, max_access_valid_days, countries
		FROM institutions
		WHERE country_code = $1
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, countryCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}
	defer rows.Close()

	out := []institution.Metadata{}
	for rows.Next() {
		m, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan institution: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *InstitutionRepository) GetByID(ctx context.Context, id string) (*institution.Metadata, error) {
	query := `
		SELECT id, country_code, name, bic, logo_url, transaction_total_days, max_access_valid_days, countries
		FROM institutions
		WHERE id = $1
	`
	m, err := scanInstitution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}
	return m, nil
}

// ReplaceForCountry upserts the incoming set and deletes anything the
// aggregator no longer lists for the country, in one transaction. An
// empty set clears the country entirely.
func (r *InstitutionRepository) ReplaceForCountry(ctx context.Context, countryCode string, institutions []institution.Metadata) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO institutions (id, country_code, name, bic, logo_url, transaction_total_days, max_access_valid_days, countries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			country_code           = EXCLUDED.country_code,
			name                   = EXCLUDED.name,
			bic                    = EXCLUDED.bic,
			logo_url               = EXCLUDED.logo_url,
			transaction_total_days = EXCLUDED.transaction_total_days,
			max_access_valid_days  = EXCLUDED.max_access_valid_days,
			countries              = EXCLUDED.countries
	`
	var written int64
	ids := make([]string, 0, len(institutions))
	for _, m := range institutions {
		_, err := tx.ExecContext(ctx, upsert,
			m.ID, countryCode, m.Name, m.BIC, m.LogoURL,
			m.TransactionTotalDays, m.MaxAccessValidDays, pq.Array(m.Countries),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert institution %s: %w", m.ID, err)
		}
		written++
		ids = append(ids, m.ID)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM institutions WHERE country_code = $1 AND id <> ALL($2)`,
		countryCode, pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune delisted institutions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit institution refresh: %w", err)
	}
	return written, nil
}

func (r *InstitutionRepository) GetCacheMetadata(ctx context.Context, countryCode string) (*institution.CacheMetadata, error) {
	query := `SELECT country_code, last_refreshed, count FROM institution_cache_metadata WHERE country_code = $1`

	var meta institution.CacheMetadata
	err := r.db.QueryRowContext(ctx, query, countryCode).Scan(&meta.CountryCode, &meta.LastRefreshed, &meta.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache metadata: %w", err)
	}
	return &meta, nil
}

func (r *InstitutionRepository) SaveCacheMetadata(ctx context.Context, meta institution.CacheMetadata) error {
	query := `
		INSERT INTO institution_cache_metadata (country_code, last_refreshed, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (country_code) DO UPDATE SET
			last_refreshed = EXCLUDED.last_refreshed,
			count          = EXCLUDED.count
	`
	_, err := r.db.ExecContext(ctx, query, meta.CountryCode, meta.LastRefreshed, meta.Count)
	if err != nil {
		return fmt.Errorf("failed to save cache metadata: %w", err)
	}
	return nil
}

func scanInstitution(row scanner) (*institution.Metadata, error) {
	var m institution.Metadata
	err := row.Scan(
		&m.ID, &m.CountryCode, &m.Name, &m.BIC, &m.LogoURL,
		&m.TransactionTotalDays, &m.MaxAccessValidDays, pq.Array(&m.Countries),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
