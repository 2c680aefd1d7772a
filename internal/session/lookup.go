package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront-validation/internal/domain"
)

// lookupKey is the part of a draft that determines a lookup request.
type lookupKey struct {
	text    string
	id      string
	typ     domain.AddressType
	country string
	city    string
}

func lookupKeyOf(d Draft) lookupKey {
	return lookupKey{text: d.Text, id: d.ID, typ: d.Type, country: d.CountryIsoCode, city: d.City}
}

// LookupPipeline turns a stream of draft edits into address suggestions.
// Edits are debounced by the configured input delay, an input equal to the
// one behind the current suggestions is skipped, and only the latest request
// may update the store.
type LookupPipeline struct {
	store   *Store
	backend Backend
	logger  *slog.Logger
	deb     *debouncer

	mu         sync.Mutex
	last       lookupKey
	hasLast    bool
	gen        uint64
	cancelPrev context.CancelFunc
}

// NewLookupPipeline returns a pipeline writing to store. It is not attached
// to the store; call Push or register it with Store.OnDraftChange.
func NewLookupPipeline(store *Store, backend Backend, logger *slog.Logger) *LookupPipeline {
	return &LookupPipeline{
		store:   store,
		backend: backend,
		logger:  logger,
		deb:     newDebouncer(),
	}
}

// Push feeds one draft edit. Only the last edit of a burst within delay
// reaches the backend.
func (p *LookupPipeline) Push(d Draft, delay time.Duration) {
	p.deb.schedule(delay, func(ctx context.Context) {
		p.fire(ctx, d)
	})
}

// hook adapts Push to the store's draft-change hook.
func (p *LookupPipeline) hook(d Draft, s ValidationSettings) {
	p.Push(d, time.Duration(s.AddressInputDelayMs)*time.Millisecond)
}

func (p *LookupPipeline) fire(ctx context.Context, d Draft) {
	key := lookupKeyOf(d)

	p.mu.Lock()
	if p.hasLast && key == p.last {
		p.mu.Unlock()
		return
	}
	p.hasLast = false
	p.gen++
	gen := p.gen
	if p.cancelPrev != nil {
		p.cancelPrev()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	p.cancelPrev = cancel
	p.mu.Unlock()
	defer cancel()

	if d.Text == "" || d.Type == domain.AddressTypeAddress || !p.store.Enablement().AddressLookupEnabled {
		p.store.clearSuggestions()
		lookupsTotal.WithLabelValues(outcomeCleared).Inc()
		return
	}

	seq := p.store.beginLookup()
	items, err := p.backend.LookupAddresses(reqCtx, domain.LookupQuery{
		ID:             d.ID,
		Text:           d.Text,
		Limit:          p.store.Settings().AddressRequestLimit,
		CountryIsoCode: d.CountryIsoCode,
		City:           d.City,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			lookupsTotal.WithLabelValues(outcomeSuperseded).Inc()
			return
		}
		lookupsTotal.WithLabelValues(outcomeError).Inc()
		p.logger.WarnContext(ctx, "address lookup failed",
			slog.String("session_id", p.store.ID()),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.store.applySuggestions(seq, items) {
		p.remember(key, gen)
		lookupsTotal.WithLabelValues(outcomeApplied).Inc()
	} else {
		lookupsTotal.WithLabelValues(outcomeSuperseded).Inc()
	}
}

// remember records key as the input behind the suggestions in the store
// unless a later fire has started. Only applied results are remembered, so
// a cleared or failed input is looked up again when it repeats.
func (p *LookupPipeline) remember(key lookupKey, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.last, p.hasLast = key, true
	}
}

// Close stops the pending timer, cancels requests in flight and waits for
// running lookups. The store is not written after Close returns.
func (p *LookupPipeline) Close() {
	p.deb.close()
}
