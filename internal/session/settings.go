package session

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/pkg/logger"
)

// SurfaceOptions tunes how a surface applies its profile.
type SurfaceOptions struct {
	// IsEdit is set when the account surface edits an existing address.
	IsEdit bool `json:"isEdit"`
}

// Resolve fetches the project settings. Only the first call per session
// reaches the backend. On failure the defaults stay in place with
// FetchInProgress set, and the error is logged and returned.
func (s *Session) Resolve(ctx context.Context) error {
	if !s.store.markSettingsRequested() {
		return nil
	}

	settings, err := s.backend.GetSettings(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve validation settings",
			slog.String("session_id", s.ID()),
			slog.String("trace_id", logger.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
		return err
	}

	settings.FetchInProgress = false
	s.store.SetSettings(FullSettings(settings))
	s.resolveCountry(ctx)
	return nil
}

// ApplySurface writes the surface's feature profile into the enablement
// flags. It does nothing while the settings are still being fetched and
// reports whether it applied.
func (s *Session) ApplySurface(ctx context.Context, surface domain.Surface, opts SurfaceOptions) bool {
	settings := s.store.Settings()
	if settings.FetchInProgress {
		return false
	}

	s.store.SetEnablement(surfaceProfile(settings, surface, opts))
	s.resolveCountry(ctx)
	return true
}

func surfaceProfile(settings ValidationSettings, surface domain.Surface, opts SurfaceOptions) EnablementPatch {
	f := settings.ForSurface(surface)
	switch surface {
	case domain.SurfaceRegistration:
		return EnablementPatch{
			EmailValidationEnabled: boolPtr(f.EmailValidationEnabled),
			PhoneValidationEnabled: boolPtr(f.PhoneValidationEnabled),
		}
	case domain.SurfaceMyAccount:
		return EnablementPatch{
			AddressLookupEnabled:   boolPtr(f.AddressLookupEnabled),
			VerificationEnabled:    boolPtr(f.AddressVerificationEnabled),
			IPToCountryEnabled:     boolPtr(!opts.IsEdit && f.IPToCountryEnabled),
			EmailValidationEnabled: boolPtr(f.EmailValidationEnabled),
			PhoneValidationEnabled: boolPtr(f.PhoneValidationEnabled),
		}
	default:
		return EnablementPatch{
			AddressLookupEnabled:   boolPtr(f.AddressLookupEnabled),
			VerificationEnabled:    boolPtr(f.AddressVerificationEnabled),
			IPToCountryEnabled:     boolPtr(f.IPToCountryEnabled),
			EmailValidationEnabled: boolPtr(f.EmailValidationEnabled),
			PhoneValidationEnabled: boolPtr(f.PhoneValidationEnabled),
		}
	}
}
