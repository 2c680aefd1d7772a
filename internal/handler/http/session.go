package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/internal/proxy"
	"github.com/utafrali/storefront-validation/internal/session"
	apperrors "github.com/utafrali/storefront-validation/pkg/errors"
	"github.com/utafrali/storefront-validation/pkg/httputil"
	"github.com/utafrali/storefront-validation/pkg/logger"
	"github.com/utafrali/storefront-validation/pkg/middleware"
	"github.com/utafrali/storefront-validation/pkg/validator"
)

// SessionHandler handles HTTP requests for validation session endpoints.
type SessionHandler struct {
	manager *session.Manager
	service *proxy.Service
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(manager *session.Manager, svc *proxy.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ChangeCountryRequest is the JSON request body for changing the draft country.
type ChangeCountryRequest struct {
	CountryIsoCode string `json:"countryIsoCode" validate:"required,max=3"`
}

// ApplySurfaceRequest is the JSON request body for entering a storefront surface.
type ApplySurfaceRequest struct {
	Surface domain.Surface `json:"surface" validate:"required,oneof=checkout registration myAccount"`
	IsEdit  bool           `json:"isEdit"`
}

// --- Response DTOs ---

type surfaceResponse struct {
	Applied bool             `json:"applied"`
	Session session.Snapshot `json:"session"`
}

type submitResponse struct {
	Proceed bool            `json:"proceed"`
	Verdict session.Verdict `json:"verdict"`
}

type contactResponse struct {
	IsValid *bool `json:"isValid"`
}

type verificationErrorResponse struct {
	Error verificationErrorBody `json:"error"`
}

type verificationErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	TraceID   string `json:"trace_id"`
	RequestID string `json:"request_id,omitempty"`
}

// --- Handlers ---

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create(r.Context(), middleware.ClientIP(r))
	httputil.WriteData(w, http.StatusCreated, s.Snapshot())
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, s.Snapshot())
}

// DeleteSession handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.manager.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateDraft handles PATCH /api/v1/sessions/{id}/draft
func (h *SessionHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	var req session.DraftPatch
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, s.SetDraft(req))
}

// ChangeCountry handles PUT /api/v1/sessions/{id}/country
func (h *SessionHandler) ChangeCountry(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ChangeCountryRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, s.ChangeCountry(req.CountryIsoCode))
}

// SelectSuggestion handles POST /api/v1/sessions/{id}/suggestions/{suggestionId}/select
func (h *SessionHandler) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	snap, err := s.SelectSuggestion(chi.URLParam(r, "suggestionId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, snap)
}

// ApplySurface handles PUT /api/v1/sessions/{id}/surface
func (h *SessionHandler) ApplySurface(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ApplySurfaceRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	applied := s.ApplySurface(r.Context(), req.Surface, session.SurfaceOptions{IsEdit: req.IsEdit})
	httputil.WriteData(w, http.StatusOK, surfaceResponse{Applied: applied, Session: s.Snapshot()})
}

// UpdateEnablement handles PATCH /api/v1/sessions/{id}/enablement
func (h *SessionHandler) UpdateEnablement(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	var req session.EnablementPatch
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, s.SetEnablement(r.Context(), req))
}

// Verify handles POST /api/v1/sessions/{id}/verify. With background=true the
// verification is scheduled and the request returns 202 at once.
func (h *SessionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	if background, _ := strconv.ParseBool(r.URL.Query().Get("background")); background {
		s.ScheduleVerification()
		httputil.WriteData(w, http.StatusAccepted, s.Snapshot())
		return
	}

	verdict, err := s.Verify(r.Context())
	if err != nil {
		h.writeVerificationError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, verdict)
}

// Submit handles POST /api/v1/sessions/{id}/submit
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	proceed, verdict, err := s.Submit(r.Context())
	if err != nil {
		h.writeVerificationError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, submitResponse{Proceed: proceed, Verdict: verdict})
}

// Bypass handles POST /api/v1/sessions/{id}/bypass/{action}
func (h *SessionHandler) Bypass(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		snap session.Snapshot
		err  error
	)
	switch action := chi.URLParam(r, "action"); action {
	case "accept-suggested":
		snap, err = s.AcceptSuggestedAddress()
	case "discard-suggested":
		snap = s.DiscardSuggestedAddress()
	case "accept-unverified":
		snap = s.AcceptUnverifiedAddress()
	default:
		err = apperrors.InvalidInput("unknown bypass action: " + action)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, snap)
}

// ValidateEmail handles POST /api/v1/sessions/{id}/email/validate
func (h *SessionHandler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, contactResponse{IsValid: s.ValidateEmail(r.Context())})
}

// ValidatePhone handles POST /api/v1/sessions/{id}/phone/validate
func (h *SessionHandler) ValidatePhone(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, contactResponse{IsValid: s.ValidatePhone(r.Context())})
}

// ListVerifications handles GET /api/v1/sessions/{id}/verifications
func (h *SessionHandler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > proxy.MaxVerificationHistory {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be an integer between 1 and 100"), h.logger)
			return
		}
		limit = n
	}

	recs, err := h.service.ListVerifications(r.Context(), s.ID(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toVerificationResponses(recs))
}

// --- Helpers ---

// session resolves the {id} path parameter and returns the request tagged
// with the session id. On failure the response has been written.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, *http.Request, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, r, false
	}

	s, err := h.manager.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, r, false
	}
	return s, middleware.WithSessionLogger(r, s.ID()), true
}

func (h *SessionHandler) writeVerificationError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *session.VerificationError
	if !errors.As(err, &verr) {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusBadGateway, verificationErrorResponse{
		Error: verificationErrorBody{
			Code:      "VERIFICATION_FAILED",
			Message:   "address verification failed",
			TraceID:   verr.TraceID,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

// verificationResponse is the public view of an audited verification.
type verificationResponse struct {
	ID         string    `json:"id"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postalCode"`
	City       string    `json:"city"`
	Status     string    `json:"status"`
	AVC        string    `json:"avc,omitempty"`
	MatchScore int       `json:"matchScore"`
	TraceID    string    `json:"traceId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toVerificationResponses(recs []domain.VerificationRecord) []verificationResponse {
	out := make([]verificationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, verificationResponse{
			ID:         rec.ID,
			Country:    rec.Country,
			PostalCode: rec.PostalCode,
			City:       rec.City,
			Status:     string(rec.Status),
			AVC:        rec.AVC,
			MatchScore: rec.MatchScore,
			TraceID:    rec.TraceID,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return out
}
