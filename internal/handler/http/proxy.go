package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/internal/proxy"
	apperrors "github.com/utafrali/storefront-validation/pkg/errors"
	"github.com/utafrali/storefront-validation/pkg/httputil"
	"github.com/utafrali/storefront-validation/pkg/middleware"
	"github.com/utafrali/storefront-validation/pkg/validator"
)

// ProxyHandler handles the provider proxy and reference data endpoints.
type ProxyHandler struct {
	service *proxy.Service
	logger  *slog.Logger
}

// NewProxyHandler creates a new proxy HTTP handler.
func NewProxyHandler(svc *proxy.Service, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger,
	}
}

// restrictedCountriesResponse keeps the field name storefronts already read.
type restrictedCountriesResponse struct {
	BlackListedCountries []domain.RestrictedCountry `json:"blackListedCountries"`
}

// LookupAddresses handles GET /api/v1/loqate/addresses
func (h *ProxyHandler) LookupAddresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.LookupQuery{
		ID:             q.Get("id"),
		Text:           q.Get("address"),
		CountryIsoCode: q.Get("countryIsoCode"),
		City:           q.Get("city"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be an integer between 1 and 100"), h.logger)
			return
		}
		query.Limit = limit
	}
	if err := validator.Var("countryIsoCode", query.CountryIsoCode, "omitempty,max=3"); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	items, err := h.service.LookupAddresses(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, items)
}

// VerifyAddress handles POST /api/v1/loqate/verify
func (h *ProxyHandler) VerifyAddress(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyAddressRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.VerifyAddress(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// CountryByIP handles GET /api/v1/loqate/country-by-ip. Without an ip
// parameter the caller's own address is resolved.
func (h *ProxyHandler) CountryByIP(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		ip = middleware.ClientIP(r)
	}
	if err := validator.Var("ip", ip, "required,ip"); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	matches, err := h.service.CountryByIP(r.Context(), ip)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, matches)
}

// ValidateEmail handles GET /api/v1/loqate/email
func (h *ProxyHandler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := validator.Var("email", email, "max=320"); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.ValidateEmail(r.Context(), email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// ValidatePhone handles GET /api/v1/loqate/phone
func (h *ProxyHandler) ValidatePhone(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	phone, country := q.Get("phone"), q.Get("country")
	if err := validator.Var("country", country, "omitempty,max=3"); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.ValidatePhone(r.Context(), phone, country)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// GetSettings handles GET /api/v1/loqate/settings
func (h *ProxyHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, settings)
}

// GetRestrictedCountries handles GET /api/v1/loqate/restricted-countries
func (h *ProxyHandler) GetRestrictedCountries(w http.ResponseWriter, r *http.Request) {
	restricted, err := h.service.GetRestrictedCountries(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, restrictedCountriesResponse{BlackListedCountries: restricted})
}

// ListCountries handles GET /api/v1/countries
func (h *ProxyHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.Countries(r.Context()))
}
