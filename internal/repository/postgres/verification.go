package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/pkg/database"
)

const (
	insertVerificationSQL = `
		INSERT INTO address_verifications (
			id, session_id, country, postal_code, city,
			status, avc, match_score, trace_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listVerificationsSQL = `
		SELECT id, COALESCE(session_id, ''), country, postal_code, city,
			status, COALESCE(avc, ''), match_score, COALESCE(trace_id, ''), created_at
		FROM address_verifications
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
)

// VerificationRepository implements repository.VerificationRepository using PostgreSQL.
type VerificationRepository struct {
	db database.DBTX
}

// NewVerificationRepository creates a new PostgreSQL-backed verification audit log.
func NewVerificationRepository(db database.DBTX) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create inserts a verification record.
func (r *VerificationRepository) Create(ctx context.Context, rec *domain.VerificationRecord) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertVerification", insertVerificationSQL)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertVerificationSQL,
		rec.ID,
		nullableString(rec.SessionID),
		rec.Country,
		rec.PostalCode,
		rec.City,
		string(rec.Status),
		nullableString(rec.AVC),
		rec.MatchScore,
		nullableString(rec.TraceID),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert address verification: %w", err)
	}
	return nil
}

// ListBySession returns up to limit records of sessionID, newest first.
func (r *VerificationRepository) ListBySession(ctx context.Context, sessionID string, limit int) (_ []domain.VerificationRecord, err error) {
	ctx, end := database.TraceQuery(ctx, "ListVerifications", listVerificationsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listVerificationsSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list address verifications: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.VerificationRecord, error) {
		var (
			rec    domain.VerificationRecord
			status string
		)
		err := row.Scan(
			&rec.ID, &rec.SessionID, &rec.Country, &rec.PostalCode, &rec.City,
			&status, &rec.AVC, &rec.MatchScore, &rec.TraceID, &rec.CreatedAt,
		)
		rec.Status = domain.VerificationStatus(status)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan address verifications: %w", err)
	}
	return records, nil
}

// nullableString returns nil if the string is empty, otherwise a pointer to the string.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
