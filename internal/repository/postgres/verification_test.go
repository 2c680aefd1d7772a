package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/pkg/database"
)

func newTestRepo(t *testing.T) (*VerificationRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewVerificationRepository(mock), mock
}

func sampleRecord() *domain.VerificationRecord {
	return &domain.VerificationRecord{
		ID:         "0b5c1ad2-7f4e-4d8e-9f2a-3b7a1c2d4e5f",
		SessionID:  "sess-1",
		Country:    "GB",
		PostalCode: "NW1 6XE",
		City:       "London",
		Status:     domain.StatusValid,
		AVC:        "V44-I44-P6-100",
		MatchScore: 100,
		TraceID:    "4bf92f3577b34da6a3ce929d0e0e4736",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestVerificationRepository_Create(t *testing.T) {
	repo, mock := newTestRepo(t)
	rec := sampleRecord()

	mock.ExpectExec("INSERT INTO address_verifications").
		WithArgs(rec.ID, &rec.SessionID, rec.Country, rec.PostalCode, rec.City,
			"Valid", &rec.AVC, rec.MatchScore, &rec.TraceID, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepository_Create_Error(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO address_verifications").
		WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert address verification")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepository_ListBySession(t *testing.T) {
	repo, mock := newTestRepo(t)
	rec := sampleRecord()

	rows := pgxmock.NewRows([]string{
		"id", "session_id", "country", "postal_code", "city",
		"status", "avc", "match_score", "trace_id", "created_at",
	}).AddRow(rec.ID, rec.SessionID, rec.Country, rec.PostalCode, rec.City,
		"Questionable", rec.AVC, 82, rec.TraceID, rec.CreatedAt)

	mock.ExpectQuery("SELECT (.+) FROM address_verifications").
		WithArgs("sess-1", 10).
		WillReturnRows(rows)

	got, err := repo.ListBySession(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusQuestionable, got[0].Status)
	assert.Equal(t, 82, got[0].MatchScore)
	assert.Equal(t, rec.CreatedAt, got[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepository_ListBySession_QueryError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM address_verifications").
		WithArgs("sess-1", 10).
		WillReturnError(errors.New("timeout"))

	_, err := repo.ListBySession(context.Background(), "sess-1", 10)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
