package session

import (
	"context"
	"log/slog"
)

// ValidateEmail validates the draft email. It returns nil when email
// validation is disabled. An empty email is invalid without a remote call
// and a remote failure counts as invalid.
func (s *Session) ValidateEmail(ctx context.Context) *bool {
	if !s.store.Enablement().EmailValidationEnabled {
		s.store.resetContact(fieldEmail)
		contactValidationsTotal.WithLabelValues("email", outcomeDisabled).Inc()
		return nil
	}

	seq, d := s.store.beginContact(fieldEmail)
	if d.Email == "" {
		return s.finish(fieldEmail, seq, false)
	}

	res, err := s.backend.ValidateEmail(ctx, d.Email)
	if err != nil {
		s.logger.WarnContext(ctx, "email validation failed",
			slog.String("session_id", s.ID()),
			slog.String("error", err.Error()),
		)
		contactValidationsTotal.WithLabelValues("email", outcomeError).Inc()
		return s.finish(fieldEmail, seq, false)
	}
	return s.finish(fieldEmail, seq, res.IsValid)
}

// ValidatePhone validates the draft phone number against the draft country.
// It follows the same rules as ValidateEmail.
func (s *Session) ValidatePhone(ctx context.Context) *bool {
	if !s.store.Enablement().PhoneValidationEnabled {
		s.store.resetContact(fieldPhone)
		contactValidationsTotal.WithLabelValues("phone", outcomeDisabled).Inc()
		return nil
	}

	seq, d := s.store.beginContact(fieldPhone)
	if d.Phone == "" {
		return s.finish(fieldPhone, seq, false)
	}

	res, err := s.backend.ValidatePhone(ctx, d.Phone, d.CountryIsoCode)
	if err != nil {
		s.logger.WarnContext(ctx, "phone validation failed",
			slog.String("session_id", s.ID()),
			slog.String("error", err.Error()),
		)
		contactValidationsTotal.WithLabelValues("phone", outcomeError).Inc()
		return s.finish(fieldPhone, seq, false)
	}
	return s.finish(fieldPhone, seq, res.IsValid)
}

func (s *Session) finish(f contactField, seq uint64, valid bool) *bool {
	s.store.finishContact(f, seq, valid)

	name, outcome := "email", outcomeInvalid
	if f == fieldPhone {
		name = "phone"
	}
	if valid {
		outcome = outcomeValid
	}
	contactValidationsTotal.WithLabelValues(name, outcome).Inc()
	return &valid
}
