package session

import (
	"github.com/utafrali/storefront-validation/internal/domain"
)

type (
	Suggestion         = domain.Suggestion
	ValidationSettings = domain.ValidationSettings
	Surface            = domain.Surface
)

// Draft is the address being entered. It is owned by the Store and only
// changed through SetDraft.
type Draft struct {
	ID             string             `json:"id"`
	Text           string             `json:"text"`
	Description    string             `json:"description,omitempty"`
	Type           domain.AddressType `json:"type,omitempty"`
	PostalCode     string             `json:"postalCode,omitempty"`
	City           string             `json:"city,omitempty"`
	CountryIsoCode string             `json:"countryIsoCode,omitempty"`
	Phone          string             `json:"phone,omitempty"`
	Email          string             `json:"email,omitempty"`
	IsManualInput  bool               `json:"isManualInput"`
}

// DraftPatch is a partial draft. Nil fields are left unchanged.
type DraftPatch struct {
	ID             *string             `json:"id,omitempty"`
	Text           *string             `json:"text,omitempty" validate:"omitempty,max=500"`
	Description    *string             `json:"description,omitempty" validate:"omitempty,max=500"`
	Type           *domain.AddressType `json:"type,omitempty" validate:"omitempty,oneof=Container Address"`
	PostalCode     *string             `json:"postalCode,omitempty" validate:"omitempty,max=40"`
	City           *string             `json:"city,omitempty" validate:"omitempty,max=200"`
	CountryIsoCode *string             `json:"countryIsoCode,omitempty" validate:"omitempty,max=3"`
	Phone          *string             `json:"phone,omitempty" validate:"omitempty,max=40"`
	Email          *string             `json:"email,omitempty" validate:"omitempty,max=320"`
	IsManualInput  *bool               `json:"isManualInput,omitempty"`
}

// draftChange describes what a DraftPatch changed.
type draftChange struct {
	any bool
	// key is set when text, city, country or postcode changed. A key change
	// invalidates the verdict and the bypass flag.
	key bool
	// lookup is set when the lookup input (key fields, id or type) changed.
	lookup bool
}

func (p DraftPatch) apply(d *Draft) draftChange {
	var c draftChange
	str := func(dst *string, src *string) bool {
		if src == nil || *dst == *src {
			return false
		}
		*dst = *src
		c.any = true
		return true
	}

	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&d.Text, p.Text},
		{&d.City, p.City},
		{&d.CountryIsoCode, p.CountryIsoCode},
		{&d.PostalCode, p.PostalCode},
	} {
		if str(f.dst, f.src) {
			c.key = true
		}
	}
	if str(&d.ID, p.ID) {
		c.lookup = true
	}
	str(&d.Description, p.Description)
	str(&d.Phone, p.Phone)
	str(&d.Email, p.Email)

	if p.Type != nil && d.Type != *p.Type {
		d.Type = *p.Type
		c.any, c.lookup = true, true
	}
	if p.IsManualInput != nil && d.IsManualInput != *p.IsManualInput {
		d.IsManualInput = *p.IsManualInput
		c.any = true
	}
	c.lookup = c.lookup || c.key
	return c
}

// Verdict is the current address verification verdict.
type Verdict struct {
	IsValid    bool                      `json:"isValid"`
	Status     domain.VerificationStatus `json:"status,omitempty"`
	Address1   string                    `json:"address1,omitempty"`
	Locality   string                    `json:"locality,omitempty"`
	PostalCode string                    `json:"postalCode,omitempty"`
	Country    string                    `json:"country,omitempty"`
}

func validVerdict() Verdict { return Verdict{IsValid: true} }

func verdictFrom(v domain.AddressVerification) Verdict {
	return Verdict{
		IsValid:    v.Status == domain.StatusValid,
		Status:     v.Status,
		Address1:   v.Address1,
		Locality:   v.Locality,
		PostalCode: v.PostalCode,
		Country:    v.Country,
	}
}

// HasSuggestion reports whether the verdict carries a best match.
func (v Verdict) HasSuggestion() bool {
	return v.Address1 != ""
}

// ValidationResult is an email or phone verdict. A nil IsValid means the
// field has not been evaluated.
type ValidationResult struct {
	IsValid    *bool `json:"isValid"`
	InProgress bool  `json:"inProgress"`
}

// Enablement is the set of features active for the surface that last
// applied itself. Surfaces overwrite it; the last writer wins.
type Enablement struct {
	AddressLookupEnabled   bool `json:"addressLookupEnabled"`
	VerificationEnabled    bool `json:"verificationEnabled"`
	IPToCountryEnabled     bool `json:"ipToCountryEnabled"`
	EmailValidationEnabled bool `json:"emailValidationEnabled"`
	PhoneValidationEnabled bool `json:"phoneValidationEnabled"`
}

// EnablementPatch is a partial Enablement. Nil fields are left unchanged.
type EnablementPatch struct {
	AddressLookupEnabled   *bool `json:"addressLookupEnabled,omitempty"`
	VerificationEnabled    *bool `json:"verificationEnabled,omitempty"`
	IPToCountryEnabled     *bool `json:"ipToCountryEnabled,omitempty"`
	EmailValidationEnabled *bool `json:"emailValidationEnabled,omitempty"`
	PhoneValidationEnabled *bool `json:"phoneValidationEnabled,omitempty"`
}

func (p EnablementPatch) apply(e *Enablement) {
	if p.AddressLookupEnabled != nil {
		e.AddressLookupEnabled = *p.AddressLookupEnabled
	}
	if p.VerificationEnabled != nil {
		e.VerificationEnabled = *p.VerificationEnabled
	}
	if p.IPToCountryEnabled != nil {
		e.IPToCountryEnabled = *p.IPToCountryEnabled
	}
	if p.EmailValidationEnabled != nil {
		e.EmailValidationEnabled = *p.EmailValidationEnabled
	}
	if p.PhoneValidationEnabled != nil {
		e.PhoneValidationEnabled = *p.PhoneValidationEnabled
	}
}

// SettingsPatch is a partial ValidationSettings merged by SetSettings.
type SettingsPatch struct {
	Checkout            *domain.SurfaceSettings
	Registration        *domain.SurfaceSettings
	MyAccount           *domain.SurfaceSettings
	AddressInputDelayMs *int
	AddressRequestLimit *int
	FetchInProgress     *bool
}

func (p SettingsPatch) apply(s *ValidationSettings) {
	if p.Checkout != nil {
		s.Checkout = *p.Checkout
	}
	if p.Registration != nil {
		s.Registration = *p.Registration
	}
	if p.MyAccount != nil {
		s.MyAccount = *p.MyAccount
	}
	if p.AddressInputDelayMs != nil {
		s.AddressInputDelayMs = *p.AddressInputDelayMs
	}
	if p.AddressRequestLimit != nil {
		s.AddressRequestLimit = *p.AddressRequestLimit
	}
	if p.FetchInProgress != nil {
		s.FetchInProgress = *p.FetchInProgress
	}
}

// FullSettings returns a patch that replaces every field with s.
func FullSettings(s ValidationSettings) SettingsPatch {
	return SettingsPatch{
		Checkout:            &s.Checkout,
		Registration:        &s.Registration,
		MyAccount:           &s.MyAccount,
		AddressInputDelayMs: &s.AddressInputDelayMs,
		AddressRequestLimit: &s.AddressRequestLimit,
		FetchInProgress:     &s.FetchInProgress,
	}
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	ID                 string             `json:"id"`
	Version            uint64             `json:"version"`
	Draft              Draft              `json:"draft"`
	Suggestions        []Suggestion       `json:"suggestions"`
	Verdict            Verdict            `json:"verdict"`
	Email              ValidationResult   `json:"email"`
	Phone              ValidationResult   `json:"phone"`
	Settings           ValidationSettings `json:"settings"`
	Enablement         Enablement         `json:"enablement"`
	BypassVerification bool               `json:"bypassVerification"`
	SettingsRequested  bool               `json:"settingsRequested"`
	IPCountryAttempted bool               `json:"ipCountryAttempted"`
}
