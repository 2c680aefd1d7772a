package repository

import (
	"context"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/internal/session"
)

// SessionRepository persists validation session snapshots.
type SessionRepository = session.SnapshotRepository

// LookupCache caches address lookup results by normalised query.
type LookupCache interface {
	// Get returns the cached suggestions and whether the key was present.
	Get(ctx context.Context, key string) ([]domain.Suggestion, bool, error)

	// Set stores suggestions under key with the cache TTL.
	Set(ctx context.Context, key string, items []domain.Suggestion) error
}

// VerificationRepository is the audit log of remote address verifications.
type VerificationRepository interface {
	// Create inserts one verification record.
	Create(ctx context.Context, rec *domain.VerificationRecord) error

	// ListBySession returns the newest records of a session first.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.VerificationRecord, error)
}
