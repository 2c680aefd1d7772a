package session

import (
	"slices"
	"sync"
)

// DraftHook receives the draft and the current settings after a change to
// the lookup input. Hooks run with the store locked and must not block or
// call back into the store.
type DraftHook func(Draft, ValidationSettings)

// Store holds the state of one validation session. All mutations are
// serialised by mu and every mutation broadcasts a Snapshot to subscribers.
type Store struct {
	mu sync.Mutex

	id                 string
	draft              Draft
	suggestions        []Suggestion
	verdict            Verdict
	email              ValidationResult
	phone              ValidationResult
	settings           ValidationSettings
	enablement         Enablement
	bypass             bool
	settingsRequested  bool
	ipCountryAttempted bool

	// version increments on every mutation. draftVersion increments on every
	// draft change and guards background verification.
	version      uint64
	draftVersion uint64

	// Only the holder of the latest sequence number may write the
	// corresponding field.
	lookupSeq  uint64
	verdictSeq uint64
	emailSeq   uint64
	phoneSeq   uint64

	hooks   []DraftHook
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// NewStore returns a store with default settings and a valid verdict.
func NewStore(id string, settings ValidationSettings) *Store {
	return &Store{
		id:       id,
		verdict:  validVerdict(),
		settings: settings,
		subs:     make(map[int]chan Snapshot),
	}
}

// restore returns a store seeded from a persisted snapshot.
func restore(snap Snapshot) *Store {
	s := NewStore(snap.ID, snap.Settings)
	s.draft = snap.Draft
	s.suggestions = slices.Clone(snap.Suggestions)
	s.verdict = snap.Verdict
	s.email = cloneResult(snap.Email)
	s.phone = cloneResult(snap.Phone)
	s.enablement = snap.Enablement
	s.bypass = snap.BypassVerification
	s.settingsRequested = snap.SettingsRequested
	s.ipCountryAttempted = snap.IPCountryAttempted
	s.version = snap.Version
	// Restored sessions have no requests in flight.
	s.email.InProgress = false
	s.phone.InProgress = false
	return s
}

// OnDraftChange registers a hook called whenever the lookup input changes.
func (s *Store) OnDraftChange(h DraftHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// ID returns the session id.
func (s *Store) ID() string {
	return s.id
}

// Draft returns a copy of the draft.
func (s *Store) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft merges patch into the draft. A change to text, city, country or
// postcode resets the bypass flag and the verdict.
func (s *Store) SetDraft(patch DraftPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.setDraftLocked(patch)
}

func (s *Store) setDraftLocked(patch DraftPatch) {
	c := patch.apply(&s.draft)
	if !c.any {
		return
	}
	s.draftVersion++
	if c.key {
		s.bypass = false
		s.verdict = validVerdict()
		s.verdictSeq++
	}
	if c.lookup {
		for _, h := range s.hooks {
			h(s.draft, s.settings)
		}
	}
	s.publishLocked()
}

// Verdict returns the current verdict.
func (s *Store) Verdict() Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verdict
}

// SetVerdict replaces the verdict and supersedes any verification in flight.
func (s *Store) SetVerdict(v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.verdictSeq++
	s.verdict = v
	s.publishLocked()
}

// Suggestions returns a copy of the lookup candidates.
func (s *Store) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.suggestions)
}

// EmailResult returns the latest email validation state.
func (s *Store) EmailResult() ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneResult(s.email)
}

// PhoneResult returns the latest phone validation state.
func (s *Store) PhoneResult() ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneResult(s.phone)
}

// Settings returns the resolved settings.
func (s *Store) Settings() ValidationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings merges patch into the settings. The last writer wins.
func (s *Store) SetSettings(patch SettingsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	patch.apply(&s.settings)
	s.publishLocked()
}

// Enablement returns the feature flags in effect.
func (s *Store) Enablement() Enablement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enablement
}

// SetEnablement merges patch into the enablement flags.
func (s *Store) SetEnablement(patch EnablementPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	patch.apply(&s.enablement)
	s.publishLocked()
}

// Bypass reports whether verification is bypassed.
func (s *Store) Bypass() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bypass
}

// SetBypass sets the bypass flag.
func (s *Store) SetBypass(b bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.bypass = b
	s.publishLocked()
}

// Snapshot returns a copy of the whole session.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving the latest snapshot after each
// mutation. The channel holds one value; a slow reader only sees the newest
// snapshot. The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		ID:                 s.id,
		Version:            s.version,
		Draft:              s.draft,
		Suggestions:        slices.Clone(s.suggestions),
		Verdict:            s.verdict,
		Email:              cloneResult(s.email),
		Phone:              cloneResult(s.phone),
		Settings:           s.settings,
		Enablement:         s.enablement,
		BypassVerification: s.bypass,
		SettingsRequested:  s.settingsRequested,
		IPCountryAttempted: s.ipCountryAttempted,
	}
}

func (s *Store) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// close drops every subscriber. Later pipeline writes are discarded.
func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.hooks = nil
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// beginLookup supersedes every lookup in flight.
func (s *Store) beginLookup() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupSeq++
	return s.lookupSeq
}

// applySuggestions stores list if seq is still the latest lookup.
func (s *Store) applySuggestions(seq uint64, list []Suggestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.lookupSeq {
		return false
	}
	s.suggestions = slices.Clone(list)
	s.publishLocked()
	return true
}

// clearSuggestions empties the list and supersedes lookups in flight.
func (s *Store) clearSuggestions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lookupSeq++
	if s.suggestions == nil {
		return
	}
	s.suggestions = nil
	s.publishLocked()
}

// verifyInput is the state a verification runs against.
type verifyInput struct {
	seq     uint64
	draft   Draft
	enabled bool
	bypass  bool
}

// beginVerify supersedes every verification in flight.
func (s *Store) beginVerify() verifyInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdictSeq++
	return verifyInput{
		seq:     s.verdictSeq,
		draft:   s.draft,
		enabled: s.enablement.VerificationEnabled,
		bypass:  s.bypass,
	}
}

// applyVerdict stores v if no verification or key draft change happened since
// seq was issued.
func (s *Store) applyVerdict(seq uint64, v Verdict) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.verdictSeq {
		return false
	}
	s.verdict = v
	s.publishLocked()
	return true
}

// applyVerdictIfUnchanged stores v only while the draft is still at version dv.
func (s *Store) applyVerdictIfUnchanged(dv, seq uint64, v Verdict) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || dv != s.draftVersion || seq != s.verdictSeq {
		return false
	}
	s.verdict = v
	s.publishLocked()
	return true
}

func (s *Store) currentDraftVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftVersion
}

// contactField selects the email or phone result.
type contactField int

const (
	fieldEmail contactField = iota
	fieldPhone
)

func (s *Store) contact(f contactField) (*ValidationResult, *uint64) {
	if f == fieldPhone {
		return &s.phone, &s.phoneSeq
	}
	return &s.email, &s.emailSeq
}

// resetContact marks the field as not evaluated and supersedes any
// validation in flight.
func (s *Store) resetContact(f contactField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	res, seq := s.contact(f)
	*seq++
	*res = ValidationResult{}
	s.publishLocked()
}

// beginContact stores the interim false verdict, marks the field in progress
// and returns the sequence number plus the current draft.
func (s *Store) beginContact(f contactField) (uint64, Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, seq := s.contact(f)
	if s.closed {
		return *seq, s.draft
	}
	*seq++
	*res = ValidationResult{IsValid: boolPtr(false), InProgress: true}
	s.publishLocked()
	return *seq, s.draft
}

// finishContact stores the final verdict and clears the in-progress flag
// unless a newer validation has started.
func (s *Store) finishContact(f contactField, seq uint64, valid bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, cur := s.contact(f)
	if s.closed || seq != *cur {
		return false
	}
	*res = ValidationResult{IsValid: boolPtr(valid)}
	s.publishLocked()
	return true
}

// bypassWith applies patch, when set, then marks the address as accepted by
// the user without verification. All of it happens under one lock.
func (s *Store) bypassWith(patch *DraftPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if patch != nil {
		s.setDraftLocked(*patch)
	}
	s.bypass = true
	s.verdict = validVerdict()
	s.verdictSeq++
	s.publishLocked()
}

// markSettingsRequested reports whether this call is the first one.
func (s *Store) markSettingsRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingsRequested {
		return false
	}
	s.settingsRequested = true
	return true
}

// markIPCountryAttempted reports whether an ip-to-country lookup should run
// now. It returns true at most once per session.
func (s *Store) markIPCountryAttempted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ipCountryAttempted || s.settings.FetchInProgress ||
		!s.enablement.IPToCountryEnabled || s.draft.CountryIsoCode != "" {
		return false
	}
	s.ipCountryAttempted = true
	return true
}

// setCountryIfEmpty sets the country without the key-field side effects.
func (s *Store) setCountryIfEmpty(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || code == "" || s.draft.CountryIsoCode != "" {
		return false
	}
	s.draft.CountryIsoCode = code
	s.draftVersion++
	s.publishLocked()
	return true
}

func cloneResult(r ValidationResult) ValidationResult {
	if r.IsValid != nil {
		r.IsValid = boolPtr(*r.IsValid)
	}
	return r
}

func boolPtr(b bool) *bool { return &b }
