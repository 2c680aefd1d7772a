package domain

// Surface is one of the storefront contexts that share a validation session.
type Surface string

const (
	SurfaceCheckout     Surface = "checkout"
	SurfaceRegistration Surface = "registration"
	SurfaceMyAccount    Surface = "myAccount"
)

// Valid reports whether s names a known surface.
func (s Surface) Valid() bool {
	switch s {
	case SurfaceCheckout, SurfaceRegistration, SurfaceMyAccount:
		return true
	}
	return false
}

// SurfaceSettings are the feature toggles of one surface.
type SurfaceSettings struct {
	AddressLookupEnabled       bool `json:"addressLookupEnabled"`
	AddressVerificationEnabled bool `json:"addressVerificationEnabled"`
	IPToCountryEnabled         bool `json:"ipToCountryEnabled"`
	EmailValidationEnabled     bool `json:"emailValidationEnabled"`
	PhoneValidationEnabled     bool `json:"phoneValidationEnabled"`
}

// ValidationSettings is the project-wide configuration resolved once per
// session. FetchInProgress stays true until the real settings have arrived.
type ValidationSettings struct {
	Checkout            SurfaceSettings `json:"checkout"`
	Registration        SurfaceSettings `json:"registration"`
	MyAccount           SurfaceSettings `json:"myAccount"`
	AddressInputDelayMs int             `json:"addressInputDelayMs"`
	AddressRequestLimit int             `json:"addressRequestLimit"`
	FetchInProgress     bool            `json:"fetchInProgress"`
}

const (
	DefaultAddressInputDelayMs = 1000
	DefaultAddressRequestLimit = 7
)

// DefaultValidationSettings has every feature disabled and the fetch pending.
func DefaultValidationSettings() ValidationSettings {
	return ValidationSettings{
		AddressInputDelayMs: DefaultAddressInputDelayMs,
		AddressRequestLimit: DefaultAddressRequestLimit,
		FetchInProgress:     true,
	}
}

// ForSurface returns the toggles of surface s.
func (v ValidationSettings) ForSurface(s Surface) SurfaceSettings {
	switch s {
	case SurfaceRegistration:
		return v.Registration
	case SurfaceMyAccount:
		return v.MyAccount
	default:
		return v.Checkout
	}
}
