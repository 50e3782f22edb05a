package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestegg/internal/domain/institution"
)

func TestReplaceForCountry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	incoming := []institution.Metadata{
		{ID: "BANK_A", Name: "Bank A", TransactionTotalDays: 90, MaxAccessValidDays: 180},
		{ID: "BANK_B", Name: "Bank B", TransactionTotalDays: 730, MaxAccessValidDays: 90},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO institutions .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("BANK_A", "PT", "Bank A", "", "", 90, 180, pq.Array([]string(nil))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO institutions .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("BANK_B", "PT", "Bank B", "", "", 730, 90, pq.Array([]string(nil))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM institutions WHERE country_code = \$1 AND id <> ALL\(\$2\)`).
		WithArgs("PT", pq.Array([]string{"BANK_A", "BANK_B"})).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	written, err := repo.ReplaceForCountry(context.Background(), "PT", incoming)
	require.NoError(t, err)
	assert.Equal(t, int64(2), written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForCountryEmptySetClearsCountry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM institutions WHERE country_code = \$1 AND id <> ALL\(\$2\)`).
		WithArgs("PT", pq.Array([]string{})).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	written, err := repo.ReplaceForCountry(context.Background(), "PT", nil)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCacheMetadataMissingCountry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstitutionRepository(db)

	mock.ExpectQuery(`SELECT country_code, last_refreshed, count FROM institution_cache_metadata`).
		WithArgs("SE").
		WillReturnRows(sqlmock.NewRows([]string{"country_code", "last_refreshed", "count"}))

	meta, err := repo.GetCacheMetadata(context.Background(), "SE")
	require.NoError(t, err)
	assert.Nil(t, meta)
}
