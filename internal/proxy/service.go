// Package proxy serves the backend actions the storefront calls: provider
// lookups and validations, project settings and the country lists.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront-validation/internal/countries"
	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/internal/repository"
	apperrors "github.com/utafrali/storefront-validation/pkg/errors"
	"github.com/utafrali/storefront-validation/pkg/logger"
)

// MaxVerificationHistory caps how many audit records one listing returns.
const MaxVerificationHistory = 100

var lookupCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "validation_lookup_cache_total",
		Help: "Address lookup cache results.",
	},
	[]string{"result"},
)

// Provider is the remote validation API.
type Provider interface {
	Find(ctx context.Context, q domain.LookupQuery) ([]domain.Suggestion, error)
	Verify(ctx context.Context, req domain.VerifyAddressRequest) (domain.AddressVerification, error)
	CountryByIP(ctx context.Context, ip string) ([]domain.CountryMatch, error)
	ValidateEmail(ctx context.Context, email string) (domain.EmailValidation, error)
	ValidatePhone(ctx context.Context, phone, country string) (domain.PhoneValidation, error)
}

// Events publishes validation outcomes.
type Events interface {
	PublishAddressVerified(ctx context.Context, rec domain.VerificationRecord) error
	PublishEmailValidated(ctx context.Context, sessionID string, res domain.EmailValidation) error
	PublishPhoneValidated(ctx context.Context, sessionID, country string, valid bool) error
}

// Deps are the collaborators of a Service. Cache, Audit and Events may be nil.
type Deps struct {
	Provider   Provider
	Catalog    *countries.Catalog
	Settings   domain.ValidationSettings
	Restricted []domain.RestrictedCountry
	Cache      repository.LookupCache
	Audit      repository.VerificationRepository
	Events     Events
}

// Service implements the backend proxy actions. It also serves as the
// session backend.
type Service struct {
	provider   Provider
	catalog    *countries.Catalog
	settings   domain.ValidationSettings
	restricted []domain.RestrictedCountry
	cache      repository.LookupCache
	audit      repository.VerificationRepository
	events     Events
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a proxy service.
func NewService(deps Deps, logger *slog.Logger) *Service {
	settings := deps.Settings
	settings.FetchInProgress = false
	return &Service{
		provider:   deps.Provider,
		catalog:    deps.Catalog,
		settings:   settings,
		restricted: append([]domain.RestrictedCountry(nil), deps.Restricted...),
		cache:      deps.Cache,
		audit:      deps.Audit,
		events:     deps.Events,
		logger:     logger,
		now:        time.Now,
	}
}

// GetSettings returns the project validation settings.
func (s *Service) GetSettings(_ context.Context) (domain.ValidationSettings, error) {
	return s.settings, nil
}

// GetRestrictedCountries returns the countries that must not be offered.
func (s *Service) GetRestrictedCountries(_ context.Context) ([]domain.RestrictedCountry, error) {
	return append([]domain.RestrictedCountry(nil), s.restricted...), nil
}

// Countries returns the selectable countries with restricted ones removed.
func (s *Service) Countries(_ context.Context) []countries.Country {
	return s.catalog.Without(s.restricted)
}

// LookupAddresses returns suggestions for q, served from the cache when the
// same normalised query was answered recently.
func (s *Service) LookupAddresses(ctx context.Context, q domain.LookupQuery) ([]domain.Suggestion, error) {
	key := q.CacheKey()
	if s.cache != nil {
		items, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			lookupCacheTotal.WithLabelValues("error").Inc()
			s.log(ctx).WarnContext(ctx, "lookup cache read failed", slog.String("error", err.Error()))
		case ok:
			lookupCacheTotal.WithLabelValues("hit").Inc()
			return items, nil
		default:
			lookupCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	items, err := s.provider.Find(ctx, q)
	if err != nil {
		return nil, apperrors.Upstream("address lookup", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, items); err != nil {
			s.log(ctx).WarnContext(ctx, "lookup cache write failed", slog.String("error", err.Error()))
		}
	}
	return items, nil
}

// VerifyAddress verifies req. Incomplete requests are answered without a
// remote call. Remote verifications are audited and published.
func (s *Service) VerifyAddress(ctx context.Context, req domain.VerifyAddressRequest) (domain.AddressVerification, error) {
	if !req.Complete() {
		return domain.AddressVerification{IsValid: false}, nil
	}

	res, err := s.provider.Verify(ctx, req)
	if err != nil {
		return domain.AddressVerification{}, apperrors.Upstream("address verification", err)
	}

	rec := domain.VerificationRecord{
		ID:         uuid.New().String(),
		SessionID:  logger.SessionIDFromContext(ctx),
		Country:    req.Country,
		PostalCode: req.PostalCode,
		City:       req.City,
		Status:     res.Status,
		AVC:        res.AVC,
		MatchScore: res.MatchScore,
		TraceID:    logger.TraceIDFromContext(ctx),
		CreatedAt:  s.now().UTC(),
	}
	if s.audit != nil {
		if err := s.audit.Create(ctx, &rec); err != nil {
			s.log(ctx).ErrorContext(ctx, "failed to record address verification",
				slog.String("verification_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.events != nil {
		if err := s.events.PublishAddressVerified(ctx, rec); err != nil {
			s.log(ctx).ErrorContext(ctx, "failed to publish address verified event",
				slog.String("verification_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

// CountryByIP resolves ip to candidate countries.
func (s *Service) CountryByIP(ctx context.Context, ip string) ([]domain.CountryMatch, error) {
	matches, err := s.provider.CountryByIP(ctx, ip)
	if err != nil {
		return nil, apperrors.Upstream("ip to country", err)
	}
	return matches, nil
}

// ValidateEmail validates email and publishes the outcome.
func (s *Service) ValidateEmail(ctx context.Context, email string) (domain.EmailValidation, error) {
	res, err := s.provider.ValidateEmail(ctx, email)
	if err != nil {
		return domain.EmailValidation{}, apperrors.Upstream("email validation", err)
	}
	if email != "" && s.events != nil {
		if err := s.events.PublishEmailValidated(ctx, logger.SessionIDFromContext(ctx), res); err != nil {
			s.log(ctx).ErrorContext(ctx, "failed to publish email validated event", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// ValidatePhone validates phone for country and publishes the outcome.
func (s *Service) ValidatePhone(ctx context.Context, phone, country string) (domain.PhoneValidation, error) {
	res, err := s.provider.ValidatePhone(ctx, phone, country)
	if err != nil {
		return domain.PhoneValidation{}, apperrors.Upstream("phone validation", err)
	}
	if phone != "" && s.events != nil {
		if err := s.events.PublishPhoneValidated(ctx, logger.SessionIDFromContext(ctx), country, res.IsValid); err != nil {
			s.log(ctx).ErrorContext(ctx, "failed to publish phone validated event", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// ListVerifications returns the newest audited verifications of a session.
func (s *Service) ListVerifications(ctx context.Context, sessionID string, limit int) ([]domain.VerificationRecord, error) {
	if s.audit == nil {
		return []domain.VerificationRecord{}, nil
	}
	if limit <= 0 || limit > MaxVerificationHistory {
		limit = MaxVerificationHistory
	}
	recs, err := s.audit.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return recs, nil
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}
