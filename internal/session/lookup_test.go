package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-validation/internal/domain"
)

func TestLookup_BurstIssuesOneRequestWithLastValue(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSession(fb, 40)
	defer s.Close()

	for _, text := range []string{"b", "ba", "bak", "bake", "baker"} {
		s.SetDraft(DraftPatch{Text: strPtr(text), CountryIsoCode: strPtr("GB")})
	}

	select {
	case q := <-fb.lookups:
		assert.Equal(t, "baker", q.Text)
		assert.Equal(t, "GB", q.CountryIsoCode)
		assert.Equal(t, 5, q.Limit)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup not issued")
	}

	require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 1 }))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, fb.count("lookup"))
	assert.Equal(t, "id-baker", s.Store().Suggestions()[0].ID)
}

func TestLookup_LatestRequestWins(t *testing.T) {
	fb := newFakeBackend()
	release := map[string]chan struct{}{
		"a":  make(chan struct{}),
		"ab": make(chan struct{}),
	}
	// The fake ignores cancellation so that the late response really arrives.
	fb.lookup = func(_ context.Context, q domain.LookupQuery) ([]domain.Suggestion, error) {
		<-release[q.Text]
		return []domain.Suggestion{{ID: q.Text}}, nil
	}
	s := newTestSession(fb, 1)
	defer s.Close()

	s.SetDraft(DraftPatch{Text: strPtr("a")})
	<-fb.lookups
	s.SetDraft(DraftPatch{Text: strPtr("ab")})
	<-fb.lookups

	close(release["ab"])
	require.True(t, waitFor(func() bool {
		sg := s.Store().Suggestions()
		return len(sg) == 1 && sg[0].ID == "ab"
	}))

	close(release["a"])
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "ab", s.Store().Suggestions()[0].ID)
}

func TestLookup_ClearsSuggestions(t *testing.T) {
	tests := []struct {
		name  string
		patch DraftPatch
		setup func(s *Session)
	}{
		{name: "empty text", patch: DraftPatch{Text: strPtr("")}},
		{name: "terminal address", patch: DraftPatch{Text: strPtr("1 Main St"), Type: addrType(domain.AddressTypeAddress)}},
		{
			name:  "lookup disabled",
			patch: DraftPatch{Text: strPtr("other")},
			setup: func(s *Session) {
				s.Store().SetEnablement(EnablementPatch{AddressLookupEnabled: boolPtr(false)})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend()
			s := newTestSession(fb, 1)
			defer s.Close()

			s.SetDraft(DraftPatch{Text: strPtr("main")})
			require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 1 }))

			if tt.setup != nil {
				tt.setup(s)
			}
			s.SetDraft(tt.patch)

			require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 0 }))
			assert.Equal(t, 1, fb.count("lookup"))
		})
	}
}

func TestLookup_FailureKeepsPreviousSuggestions(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSession(fb, 1)
	defer s.Close()

	s.SetDraft(DraftPatch{Text: strPtr("main")})
	require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 1 }))

	fb.mu.Lock()
	fb.lookup = func(context.Context, domain.LookupQuery) ([]domain.Suggestion, error) {
		return nil, errors.New("connection reset")
	}
	fb.mu.Unlock()
	s.SetDraft(DraftPatch{Text: strPtr("main st")})

	require.True(t, waitFor(func() bool { return fb.count("lookup") == 2 }))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "id-main", s.Store().Suggestions()[0].ID)
}

func TestLookup_RepeatAfterFailureIsRetried(t *testing.T) {
	fb := newFakeBackend()
	fb.lookup = func(context.Context, domain.LookupQuery) ([]domain.Suggestion, error) {
		return nil, errors.New("connection reset")
	}
	s := newTestSession(fb, 40)
	defer s.Close()

	s.SetDraft(DraftPatch{Text: strPtr("abc")})
	require.True(t, waitFor(func() bool { return fb.count("lookup") == 1 }))

	fb.mu.Lock()
	fb.lookup = nil
	fb.mu.Unlock()
	s.SetDraft(DraftPatch{Text: strPtr("abcd")})
	s.SetDraft(DraftPatch{Text: strPtr("abc")})

	require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 1 }))
	assert.Equal(t, 2, fb.count("lookup"))
	assert.Equal(t, "id-abc", s.Store().Suggestions()[0].ID)
}

func TestLookup_RepeatAfterReEnableIsLookedUp(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSession(fb, 40)
	defer s.Close()

	s.Store().SetEnablement(EnablementPatch{AddressLookupEnabled: boolPtr(false)})
	s.SetDraft(DraftPatch{Text: strPtr("abc")})
	time.Sleep(80 * time.Millisecond)
	require.Zero(t, fb.count("lookup"))

	s.Store().SetEnablement(EnablementPatch{AddressLookupEnabled: boolPtr(true)})
	s.SetDraft(DraftPatch{Text: strPtr("abcd")})
	s.SetDraft(DraftPatch{Text: strPtr("abc")})

	require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 1 }))
	assert.Equal(t, 1, fb.count("lookup"))
	assert.Equal(t, "id-abc", s.Store().Suggestions()[0].ID)
}

func TestLookup_RepeatOfAppliedInputIsSkipped(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSession(fb, 40)
	defer s.Close()

	s.SetDraft(DraftPatch{Text: strPtr("abc")})
	require.True(t, waitFor(func() bool { return len(s.Store().Suggestions()) == 1 }))

	s.SetDraft(DraftPatch{Text: strPtr("abcd")})
	s.SetDraft(DraftPatch{Text: strPtr("abc")})
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, fb.count("lookup"))
	assert.Equal(t, "id-abc", s.Store().Suggestions()[0].ID)
}

func TestLookup_CloseMidDebounceDoesNotTouchSession(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSession(fb, 30)

	s.SetDraft(DraftPatch{Text: strPtr("pending")})
	before := s.Snapshot().Version
	s.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fb.count("lookup"))
	assert.Equal(t, before, s.Snapshot().Version)
	assert.Empty(t, s.Store().Suggestions())
}

func TestLookup_CloseCancelsRequestInFlight(t *testing.T) {
	fb := newFakeBackend()
	started := make(chan struct{})
	fb.lookup = func(ctx context.Context, _ domain.LookupQuery) ([]domain.Suggestion, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := newTestSession(fb, 1)

	s.SetDraft(DraftPatch{Text: strPtr("x")})
	<-started

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Empty(t, s.Store().Suggestions())
}

func addrType(t domain.AddressType) *domain.AddressType { return &t }
