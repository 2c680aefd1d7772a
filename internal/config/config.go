package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/utafrali/storefront-validation/internal/domain"
	pkgconfig "github.com/utafrali/storefront-validation/pkg/config"
)

// Config holds all configuration for the validation service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"VALIDATION_HTTP_PORT" envDefault:"8012"`

	// Provider
	LoqateAPIKey                string `env:"LOQATE_API_KEY"`
	LoqateHost                  string `env:"LOQATE_HOST" envDefault:"https://api.addressy.com"`
	LoqateAVC                   int    `env:"LOQATE_AVC" envDefault:"85"`
	LoqateIncludeCatchAllEmails bool   `env:"LOQATE_INCLUDE_VALID_CATCHALL_EMAILS" envDefault:"false"`
	LoqateIncludeMaybePhones    bool   `env:"LOQATE_INCLUDE_MAYBE_PHONE_NUMBERS" envDefault:"false"`
	LoqateEmailTimeoutMs        int    `env:"LOQATE_EMAIL_VALIDATION_TIMEOUT_MILLISECONDS" envDefault:"15000"`
	LoqateHTTPTimeoutSeconds    int    `env:"LOQATE_HTTP_TIMEOUT_SECONDS" envDefault:"20"`
	LoqateHTTPMaxRetries        int    `env:"LOQATE_HTTP_MAX_RETRIES" envDefault:"0"`
	LoqateLookupCacheTTLHours   int    `env:"LOQATE_LOOKUP_CACHE_TTL_HOURS" envDefault:"24"`

	// Restricted countries are filtered out of every country list.
	RestrictedCountries []string `env:"RESTRICTED_COUNTRIES" envSeparator:","`

	// Feature toggles per surface
	CheckoutAddressLookup        bool `env:"LOQATE_ADDRESS_LOOKUP_CHECKOUT" envDefault:"false"`
	CheckoutAddressVerification  bool `env:"LOQATE_ADDRESS_VERIFICATION_CHECKOUT" envDefault:"false"`
	CheckoutEmailValidation      bool `env:"LOQATE_EMAIL_VALIDATION_CHECKOUT" envDefault:"false"`
	CheckoutPhoneValidation      bool `env:"LOQATE_PHONE_VALIDATION_CHECKOUT" envDefault:"false"`
	MyAccountAddressLookup       bool `env:"LOQATE_ADDRESS_LOOKUP_MY_ACCOUNT" envDefault:"false"`
	MyAccountAddressVerification bool `env:"LOQATE_ADDRESS_VERIFICATION_MY_ACCOUNT" envDefault:"false"`
	MyAccountEmailValidation     bool `env:"LOQATE_EMAIL_VALIDATION_MY_ACCOUNT" envDefault:"false"`
	MyAccountPhoneValidation     bool `env:"LOQATE_PHONE_VALIDATION_MY_ACCOUNT" envDefault:"false"`
	RegistrationEmailValidation  bool `env:"LOQATE_EMAIL_VALIDATION_REGISTRATION" envDefault:"false"`
	RegistrationPhoneValidation  bool `env:"LOQATE_PHONE_VALIDATION_REGISTRATION" envDefault:"false"`
	IPToCountryEnabled           bool `env:"LOQATE_IP_TO_COUNTRY_ENABLED" envDefault:"false"`
	AddressInputDelayMs          int  `env:"CHECKOUT_ADDRESS_INPUT_DELAY" envDefault:"1000"`
	AddressRequestLimit          int  `env:"CHECKOUT_ADDRESS_REQUEST_LIMIT" envDefault:"7"`

	// Sessions
	SessionIdleTTLMinutes int `env:"SESSION_IDLE_TTL_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"validation"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"validation_secret"`
	PostgresDB   string `env:"VALIDATION_DB_NAME" envDefault:"validation_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker around the provider
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Per-IP rate limit on the provider proxy routes
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load validation config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Environment == "production" && c.LoqateAPIKey == "" {
		return errors.New("LOQATE_API_KEY is required in production")
	}
	if _, err := url.ParseRequestURI(c.LoqateHost); err != nil {
		return fmt.Errorf("invalid LOQATE_HOST %q: %w", c.LoqateHost, err)
	}
	if c.LoqateAVC < 0 || c.LoqateAVC > 100 {
		return fmt.Errorf("LOQATE_AVC must be between 0 and 100, got %d", c.LoqateAVC)
	}
	if c.LoqateHTTPMaxRetries < 0 {
		return fmt.Errorf("LOQATE_HTTP_MAX_RETRIES must not be negative, got %d", c.LoqateHTTPMaxRetries)
	}
	if c.AddressInputDelayMs < 0 {
		return fmt.Errorf("CHECKOUT_ADDRESS_INPUT_DELAY must not be negative, got %d", c.AddressInputDelayMs)
	}
	if c.AddressRequestLimit < 1 {
		return fmt.Errorf("CHECKOUT_ADDRESS_REQUEST_LIMIT must be positive, got %d", c.AddressRequestLimit)
	}
	if c.SessionIdleTTLMinutes < 1 {
		return fmt.Errorf("SESSION_IDLE_TTL_MINUTES must be positive, got %d", c.SessionIdleTTLMinutes)
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// ValidationSettings returns the project settings served to sessions.
func (c *Config) ValidationSettings() domain.ValidationSettings {
	return domain.ValidationSettings{
		Checkout: domain.SurfaceSettings{
			AddressLookupEnabled:       c.CheckoutAddressLookup,
			AddressVerificationEnabled: c.CheckoutAddressVerification,
			IPToCountryEnabled:         c.IPToCountryEnabled,
			EmailValidationEnabled:     c.CheckoutEmailValidation,
			PhoneValidationEnabled:     c.CheckoutPhoneValidation,
		},
		Registration: domain.SurfaceSettings{
			EmailValidationEnabled: c.RegistrationEmailValidation,
			PhoneValidationEnabled: c.RegistrationPhoneValidation,
		},
		MyAccount: domain.SurfaceSettings{
			AddressLookupEnabled:       c.MyAccountAddressLookup,
			AddressVerificationEnabled: c.MyAccountAddressVerification,
			IPToCountryEnabled:         c.IPToCountryEnabled,
			EmailValidationEnabled:     c.MyAccountEmailValidation,
			PhoneValidationEnabled:     c.MyAccountPhoneValidation,
		},
		AddressInputDelayMs: c.AddressInputDelayMs,
		AddressRequestLimit: c.AddressRequestLimit,
	}
}

// Restricted returns RESTRICTED_COUNTRIES as restricted-country entries.
func (c *Config) Restricted() []domain.RestrictedCountry {
	out := make([]domain.RestrictedCountry, 0, len(c.RestrictedCountries))
	for _, code := range c.RestrictedCountries {
		if code = strings.TrimSpace(code); code != "" {
			out = append(out, domain.RestrictedCountry{RestrictedCountryCode: code})
		}
	}
	return out
}

// SessionIdleTTL returns the idle eviction timeout for sessions.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMinutes) * time.Minute
}
