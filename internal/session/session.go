package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utafrali/storefront-validation/internal/domain"
)

// Backend is the set of proxy actions a session calls.
type Backend interface {
	GetSettings(ctx context.Context) (domain.ValidationSettings, error)
	LookupAddresses(ctx context.Context, q domain.LookupQuery) ([]domain.Suggestion, error)
	VerifyAddress(ctx context.Context, req domain.VerifyAddressRequest) (domain.AddressVerification, error)
	CountryByIP(ctx context.Context, ip string) ([]domain.CountryMatch, error)
	ValidateEmail(ctx context.Context, email string) (domain.EmailValidation, error)
	ValidatePhone(ctx context.Context, phone, country string) (domain.PhoneValidation, error)
}

// DefaultBackgroundVerifyDelay is the idle time before a scheduled
// verification runs.
const DefaultBackgroundVerifyDelay = 500 * time.Millisecond

// Session is one shared validation session. Every surface of a storefront
// scope works on the same Session.
type Session struct {
	store   *Store
	backend Backend
	logger  *slog.Logger

	lookup      *LookupPipeline
	background  *debouncer
	verifyDelay time.Duration

	clientIP  atomic.Pointer[string]
	closeOnce sync.Once
}

// New returns a session with default settings. Call Resolve to fetch the
// real settings.
func New(id string, backend Backend, logger *slog.Logger) *Session {
	return newSession(NewStore(id, domain.DefaultValidationSettings()), backend, logger)
}

// Restore returns a session rebuilt from a persisted snapshot.
func Restore(snap Snapshot, backend Backend, logger *slog.Logger) *Session {
	return newSession(restore(snap), backend, logger)
}

func newSession(store *Store, backend Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		store:       store,
		backend:     backend,
		logger:      logger,
		background:  newDebouncer(),
		verifyDelay: DefaultBackgroundVerifyDelay,
	}
	s.lookup = NewLookupPipeline(store, backend, logger)
	store.OnDraftChange(s.lookup.hook)
	return s
}

func (s *Session) ID() string { return s.store.ID() }

// Store exposes the session state.
func (s *Session) Store() *Store { return s.store }

func (s *Session) Snapshot() Snapshot { return s.store.Snapshot() }

// SetDraft merges patch into the draft.
func (s *Session) SetDraft(patch DraftPatch) Snapshot {
	s.store.SetDraft(patch)
	return s.store.Snapshot()
}

// SetClientIP records the caller address used for ip-to-country.
func (s *Session) SetClientIP(ip string) {
	if ip != "" {
		s.clientIP.Store(&ip)
	}
}

func (s *Session) ip() string {
	if p := s.clientIP.Load(); p != nil {
		return *p
	}
	return ""
}

// SetEnablement merges patch into the enablement flags and attempts
// ip-to-country when it is now due.
func (s *Session) SetEnablement(ctx context.Context, patch EnablementPatch) Snapshot {
	s.store.SetEnablement(patch)
	s.resolveCountry(ctx)
	return s.store.Snapshot()
}

// Close tears the session down. No state changes after Close returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.lookup.Close()
		s.background.close()
		s.store.close()
	})
}
