package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-validation/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8012, cfg.HTTPPort)
	assert.Equal(t, "https://api.addressy.com", cfg.LoqateHost)
	assert.Equal(t, 85, cfg.LoqateAVC)
	assert.Equal(t, 0, cfg.LoqateHTTPMaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL())
	assert.Empty(t, cfg.Restricted())

	s := cfg.ValidationSettings()
	assert.Equal(t, 1000, s.AddressInputDelayMs)
	assert.Equal(t, 7, s.AddressRequestLimit)
	assert.False(t, s.FetchInProgress)
	assert.Equal(t, domain.SurfaceSettings{}, s.Checkout)
}

func TestLoad_SurfaceToggles(t *testing.T) {
	t.Setenv("LOQATE_ADDRESS_LOOKUP_CHECKOUT", "true")
	t.Setenv("LOQATE_IP_TO_COUNTRY_ENABLED", "true")
	t.Setenv("LOQATE_EMAIL_VALIDATION_REGISTRATION", "true")
	t.Setenv("LOQATE_ADDRESS_VERIFICATION_MY_ACCOUNT", "true")
	t.Setenv("CHECKOUT_ADDRESS_INPUT_DELAY", "250")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.ValidationSettings()
	assert.True(t, s.Checkout.AddressLookupEnabled)
	assert.True(t, s.Checkout.IPToCountryEnabled)
	assert.True(t, s.MyAccount.IPToCountryEnabled)
	assert.False(t, s.Registration.IPToCountryEnabled)
	assert.True(t, s.Registration.EmailValidationEnabled)
	assert.True(t, s.MyAccount.AddressVerificationEnabled)
	assert.Equal(t, 250, s.AddressInputDelayMs)
}

func TestLoad_RestrictedCountries(t *testing.T) {
	t.Setenv("RESTRICTED_COUNTRIES", "RU, BY,,KP")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []domain.RestrictedCountry{
		{RestrictedCountryCode: "RU"},
		{RestrictedCountryCode: "BY"},
		{RestrictedCountryCode: "KP"},
	}, cfg.Restricted())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"port", "VALIDATION_HTTP_PORT", "0", "invalid HTTP port"},
		{"avc", "LOQATE_AVC", "101", "LOQATE_AVC must be between 0 and 100"},
		{"host", "LOQATE_HOST", "not a url", "invalid LOQATE_HOST"},
		{"retries", "LOQATE_HTTP_MAX_RETRIES", "-1", "LOQATE_HTTP_MAX_RETRIES must not be negative"},
		{"limit", "CHECKOUT_ADDRESS_REQUEST_LIMIT", "0", "CHECKOUT_ADDRESS_REQUEST_LIMIT must be positive"},
		{"ttl", "SESSION_IDLE_TTL_MINUTES", "0", "SESSION_IDLE_TTL_MINUTES must be positive"},
		{"sample rate", "OTEL_SAMPLE_RATE", "2.0", "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ProductionRequiresAPIKey(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOQATE_API_KEY is required")

	t.Setenv("LOQATE_API_KEY", "live-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "live-key", cfg.LoqateAPIKey)
}
