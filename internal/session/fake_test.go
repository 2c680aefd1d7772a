package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront-validation/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeBackend records calls and answers through optional funcs.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	lookups chan domain.LookupQuery

	settings    func(ctx context.Context) (domain.ValidationSettings, error)
	lookup      func(ctx context.Context, q domain.LookupQuery) ([]domain.Suggestion, error)
	verify      func(ctx context.Context, req domain.VerifyAddressRequest) (domain.AddressVerification, error)
	countryByIP func(ctx context.Context, ip string) ([]domain.CountryMatch, error)
	email       func(ctx context.Context, email string) (domain.EmailValidation, error)
	phone       func(ctx context.Context, phone, country string) (domain.PhoneValidation, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:   make(map[string]int),
		lookups: make(chan domain.LookupQuery, 16),
	}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) GetSettings(ctx context.Context) (domain.ValidationSettings, error) {
	f.record("settings")
	if f.settings == nil {
		return domain.DefaultValidationSettings(), nil
	}
	return f.settings(ctx)
}

func (f *fakeBackend) LookupAddresses(ctx context.Context, q domain.LookupQuery) ([]domain.Suggestion, error) {
	f.record("lookup")
	select {
	case f.lookups <- q:
	default:
	}
	f.mu.Lock()
	fn := f.lookup
	f.mu.Unlock()
	if fn == nil {
		return []domain.Suggestion{{ID: "id-" + q.Text, Text: q.Text}}, nil
	}
	return fn(ctx, q)
}

func (f *fakeBackend) VerifyAddress(ctx context.Context, req domain.VerifyAddressRequest) (domain.AddressVerification, error) {
	f.record("verify")
	if f.verify == nil {
		return domain.AddressVerification{Status: domain.StatusValid, IsValid: true}, nil
	}
	return f.verify(ctx, req)
}

func (f *fakeBackend) CountryByIP(ctx context.Context, ip string) ([]domain.CountryMatch, error) {
	f.record("ip")
	if f.countryByIP == nil {
		return nil, nil
	}
	return f.countryByIP(ctx, ip)
}

func (f *fakeBackend) ValidateEmail(ctx context.Context, email string) (domain.EmailValidation, error) {
	f.record("email")
	if f.email == nil {
		return domain.EmailValidation{ResponseCode: "Valid", IsValid: true}, nil
	}
	return f.email(ctx, email)
}

func (f *fakeBackend) ValidatePhone(ctx context.Context, phone, country string) (domain.PhoneValidation, error) {
	f.record("phone")
	if f.phone == nil {
		return domain.PhoneValidation{IsValid: true}, nil
	}
	return f.phone(ctx, phone, country)
}

// resolvedSettings has every feature enabled on every surface.
func resolvedSettings(delayMs int) domain.ValidationSettings {
	all := domain.SurfaceSettings{
		AddressLookupEnabled:       true,
		AddressVerificationEnabled: true,
		IPToCountryEnabled:         true,
		EmailValidationEnabled:     true,
		PhoneValidationEnabled:     true,
	}
	return domain.ValidationSettings{
		Checkout:            all,
		Registration:        all,
		MyAccount:           all,
		AddressInputDelayMs: delayMs,
		AddressRequestLimit: 5,
	}
}

// newTestSession returns a session with resolved settings and every feature
// enabled through the checkout profile.
func newTestSession(fb *fakeBackend, delayMs int) *Session {
	s := New("sess-1", fb, testLogger())
	fb.settings = func(context.Context) (domain.ValidationSettings, error) {
		return resolvedSettings(delayMs), nil
	}
	_ = s.Resolve(context.Background())
	s.ApplySurface(context.Background(), domain.SurfaceCheckout, SurfaceOptions{})
	return s
}

func strPtr(s string) *string { return &s }

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
