package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/storefront-validation/internal/domain"
	apperrors "github.com/utafrali/storefront-validation/pkg/errors"
	"github.com/utafrali/storefront-validation/pkg/logger"
)

// VerificationError is a failed remote verification. TraceID identifies the
// failed request in logs and traces.
type VerificationError struct {
	TraceID string
	Err     error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify address (trace %s): %v", e.TraceID, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func traceID(ctx context.Context) string {
	if id := logger.TraceIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// Verify checks the current draft and stores the verdict. Drafts chosen from
// a suggestion, bypassed drafts and sessions with verification disabled are
// valid without a remote call. An incomplete draft is invalid without a
// remote call. A remote failure is returned as *VerificationError and leaves
// the verdict untouched.
func (s *Session) Verify(ctx context.Context) (Verdict, error) {
	in := s.store.beginVerify()
	v, err := s.verify(ctx, in)
	if err != nil {
		return Verdict{}, err
	}
	s.store.applyVerdict(in.seq, v)
	return v, nil
}

func (s *Session) verify(ctx context.Context, in verifyInput) (Verdict, error) {
	if !in.draft.IsManualInput || !in.enabled || in.bypass {
		verificationsTotal.WithLabelValues(outcomeSkipped).Inc()
		return validVerdict(), nil
	}

	req := domain.VerifyAddressRequest{
		Country:    in.draft.CountryIsoCode,
		Address:    in.draft.Text,
		City:       in.draft.City,
		PostalCode: in.draft.PostalCode,
	}
	if !req.Complete() {
		verificationsTotal.WithLabelValues(outcomeInvalid).Inc()
		return Verdict{IsValid: false}, nil
	}

	ctx = logger.WithSessionID(ctx, s.ID())
	res, err := s.backend.VerifyAddress(ctx, req)
	if err != nil {
		verificationsTotal.WithLabelValues(outcomeError).Inc()
		verr := &VerificationError{TraceID: traceID(ctx), Err: err}
		s.logger.ErrorContext(ctx, "address verification failed",
			slog.String("session_id", s.ID()),
			slog.String("trace_id", verr.TraceID),
			slog.String("error", err.Error()),
		)
		return Verdict{}, verr
	}

	v := verdictFrom(res)
	status := strings.ToLower(string(v.Status))
	if status == "" {
		status = outcomeInvalid
	}
	verificationsTotal.WithLabelValues(status).Inc()
	return v, nil
}

// Submit is the form submit gate. A bypassed session proceeds at once;
// otherwise the draft is verified and the form proceeds only when valid.
func (s *Session) Submit(ctx context.Context) (bool, Verdict, error) {
	if s.store.Bypass() {
		return true, s.store.Verdict(), nil
	}
	v, err := s.Verify(ctx)
	if err != nil {
		return false, Verdict{}, err
	}
	return v.IsValid, v, nil
}

// ScheduleVerification runs a verification once the session has been idle
// for the background delay. Its verdict is dropped if the draft changes
// before it completes.
func (s *Session) ScheduleVerification() {
	dv := s.store.currentDraftVersion()
	s.background.schedule(s.verifyDelay, func(ctx context.Context) {
		if s.store.currentDraftVersion() != dv {
			return
		}
		in := s.store.beginVerify()
		v, err := s.verify(ctx, in)
		if err != nil {
			return
		}
		s.store.applyVerdictIfUnchanged(dv, in.seq, v)
	})
}

// AcceptSuggestedAddress copies the verdict's best match into the draft and
// accepts it without further verification.
func (s *Session) AcceptSuggestedAddress() (Snapshot, error) {
	v := s.store.Verdict()
	if !v.HasSuggestion() {
		return Snapshot{}, apperrors.Conflict("no suggested address to accept")
	}

	typ := domain.AddressTypeAddress
	s.store.bypassWith(&DraftPatch{
		Text:           &v.Address1,
		City:           &v.Locality,
		PostalCode:     &v.PostalCode,
		CountryIsoCode: &v.Country,
		Type:           &typ,
		IsManualInput:  boolPtr(false),
	})
	return s.store.Snapshot(), nil
}

// DiscardSuggestedAddress keeps the entered address and accepts it.
func (s *Session) DiscardSuggestedAddress() Snapshot {
	s.store.bypassWith(nil)
	return s.store.Snapshot()
}

// AcceptUnverifiedAddress accepts an address the provider could not match.
func (s *Session) AcceptUnverifiedAddress() Snapshot {
	s.store.bypassWith(nil)
	return s.store.Snapshot()
}

// SelectSuggestion merges the suggestion with the given id into the draft
// as a non-manual selection.
func (s *Session) SelectSuggestion(id string) (Snapshot, error) {
	var found *Suggestion
	for _, sg := range s.store.Suggestions() {
		if sg.ID == id {
			found = &sg
			break
		}
	}
	if found == nil {
		return Snapshot{}, apperrors.NotFound("suggestion", id)
	}

	patch := DraftPatch{
		ID:            &found.ID,
		Text:          &found.Text,
		Description:   &found.Description,
		Type:          &found.Type,
		IsManualInput: boolPtr(false),
	}
	if found.PostCode != "" {
		patch.PostalCode = &found.PostCode
	}
	if found.City != "" {
		patch.City = &found.City
	}
	if found.CountryIsoCode != "" {
		patch.CountryIsoCode = &found.CountryIsoCode
	}
	s.store.SetDraft(patch)
	return s.store.Snapshot(), nil
}

// ChangeCountry switches the draft to another country. The address part of
// the draft is cleared; email and phone are kept.
func (s *Session) ChangeCountry(code string) Snapshot {
	empty := ""
	var none domain.AddressType
	s.store.SetDraft(DraftPatch{
		ID:             &empty,
		Text:           &empty,
		Description:    &empty,
		Type:           &none,
		PostalCode:     &empty,
		City:           &empty,
		CountryIsoCode: &code,
		IsManualInput:  boolPtr(true),
	})
	return s.store.Snapshot()
}
