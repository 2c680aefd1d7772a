package session

import (
	"context"
	"log/slog"
)

// resolveCountry presets the draft country from the caller's IP address.
// It runs at most once per session, and only after the settings resolved,
// with ip-to-country enabled and no country chosen yet.
func (s *Session) resolveCountry(ctx context.Context) {
	ip := s.ip()
	if ip == "" || !s.store.markIPCountryAttempted() {
		return
	}

	matches, err := s.backend.CountryByIP(ctx, ip)
	if err != nil {
		s.logger.WarnContext(ctx, "ip to country lookup failed",
			slog.String("session_id", s.ID()),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(matches) == 0 || matches[0].Iso2 == "" {
		return
	}
	if s.store.setCountryIfEmpty(matches[0].Iso2) {
		s.logger.DebugContext(ctx, "country preset from client ip",
			slog.String("session_id", s.ID()),
			slog.String("country", matches[0].Iso2),
		)
	}
}
