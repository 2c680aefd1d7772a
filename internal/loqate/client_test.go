package loqate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		APIKey:             "test-key",
		Host:               srv.URL + "/",
		GoodMatchThreshold: 85,
		EmailTimeout:       1500 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	doer := httpclient.New(httpclient.Config{
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	return NewClient(cfg, doer, testLogger())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestFind_BuildsQueryAndEnrichesAddresses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, findPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, Source, q.Get("source"))
		assert.Equal(t, "baker st", q.Get("text"))
		assert.Equal(t, "7", q.Get("limit"))
		assert.Equal(t, "GB", q.Get("countries"))
		assert.Equal(t, "Locality:London", q.Get("filters"))
		assert.False(t, q.Has("Container"), "empty params are omitted")

		writeJSON(w, map[string]any{"Items": []map[string]string{
			{"Id": "GB|RM|A|1", "Type": "Address", "Text": "221B Baker Street", "Highlight": "0-4", "Description": "London NW1 6XE"},
			{"Id": "GB|RM|ENG|BAKER", "Type": "Container", "Text": "Baker Street", "Highlight": "0-5", "Description": "London - 40 Addresses"},
		}})
	})

	items, err := c.Find(context.Background(), domain.LookupQuery{Text: "baker st", Limit: 7, CountryIsoCode: "GB", City: "London"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, domain.Suggestion{
		ID: "GB|RM|A|1", Text: "221B Baker Street", Highlight: "0-4", Description: "London NW1 6XE",
		Type: domain.AddressTypeAddress, PostCode: "NW1 6XE", City: "London", CountryIsoCode: "GB",
	}, items[0])
	assert.Equal(t, domain.AddressTypeContainer, items[1].Type)
	assert.Empty(t, items[1].PostCode, "containers are not enriched")
}

func TestFind_DefaultLimitAndProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", r.URL.Query().Get("limit"))
		writeJSON(w, map[string]any{"Items": []map[string]string{
			{"Error": "2", "Description": "Unknown key", "Cause": "The key was not found.", "Resolution": "Check the key."},
		}})
	})

	_, err := c.Find(context.Background(), domain.LookupQuery{Text: "x"})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "2", perr.Code)
	assert.Equal(t, "Unknown key", perr.Description)
}

func TestVerify_ClassifiesFirstMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, verifyPath, r.URL.Path)
		assert.Equal(t, Source, r.URL.Query().Get("source"))

		var body batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-key", body.Key)
		require.Len(t, body.Addresses, 1)
		assert.Equal(t, "221B Baker Street, London", body.Addresses[0].Address1)
		assert.Equal(t, "NW1 6XE", body.Addresses[0].PostalCode)
		assert.Equal(t, "GB", body.Addresses[0].Country)

		writeJSON(w, []map[string]any{{
			"Matches": []map[string]string{{
				"AVC": "P44-I44-P6-82", "AQI": "B", "Address1": "221b Baker Street",
				"Locality": "London", "PostalCode": "NW1 6XE", "Country": "GB",
			}},
		}})
	})

	got, err := c.Verify(context.Background(), domain.VerifyAddressRequest{
		Country: "GB", Address: "221B Baker Street", City: "London", PostalCode: "NW1 6XE",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQuestionable, got.Status)
	assert.False(t, got.IsValid)
	assert.Equal(t, "221b Baker Street", got.Address1)
	assert.Equal(t, "London", got.Locality)
	assert.Equal(t, 82, got.MatchScore)
}

func TestVerify_NoMatchIsInvalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"Matches": []any{}}})
	})

	got, err := c.Verify(context.Background(), domain.VerifyAddressRequest{
		Country: "GB", Address: "nowhere", City: "London", PostalCode: "X",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Empty(t, got.Address1)
}

func TestVerify_MissingFieldSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	got, err := c.Verify(context.Background(), domain.VerifyAddressRequest{
		Country: "GB", Address: "221B Baker Street", City: "", PostalCode: "NW1 6XE",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AddressVerification{IsValid: false}, got)
	assert.Zero(t, calls.Load())
}

func TestVerify_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Verify(context.Background(), domain.VerifyAddressRequest{
		Country: "GB", Address: "a", City: "b", PostalCode: "c",
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var serr *httpclient.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.StatusCode)
}

func TestVerify_ProviderErrorObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"Number": 3, "Description": "Account out of credit", "Cause": "No credit", "Resolution": "Top up"})
	})

	_, err := c.Verify(context.Background(), domain.VerifyAddressRequest{
		Country: "GB", Address: "a", City: "b", PostalCode: "c",
	})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "3", perr.Code)
}

func TestCountryByIP(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ip2CountryPath, r.URL.Path)
		assert.Equal(t, "203.0.113.9", r.URL.Query().Get("ipAddress"))
		writeJSON(w, map[string]any{"Items": []map[string]string{
			{"Iso2": "DE", "Iso3": "DEU", "Ison": "276", "Country": "Germany"},
		}})
	})

	got, err := c.CountryByIP(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, []domain.CountryMatch{{Iso2: "DE", Iso3: "DEU", Ison: "276", Country: "Germany"}}, got)
}

func TestValidateEmail(t *testing.T) {
	handler := func(code string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, emailPath, r.URL.Path)
			assert.Equal(t, "1500", r.URL.Query().Get("timeout"))
			writeJSON(w, map[string]any{"Items": []map[string]any{
				{"ResponseCode": code, "EmailAddress": r.URL.Query().Get("email"), "Domain": "example.com"},
			}})
		}
	}

	c := newTestClient(t, handler("Valid_CatchAll"))
	got, err := c.ValidateEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Valid_CatchAll", got.ResponseCode)
	assert.False(t, got.IsValid)

	c = newTestClient(t, handler("Valid_CatchAll"), func(cfg *Config) { cfg.IncludeValidCatchAllEmails = true })
	got, err = c.ValidateEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsValid)
	assert.Equal(t, "a@example.com", got.EmailAddress)
}

func TestValidateEmail_EmptySkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	got, err := c.ValidateEmail(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.EmailValidation{ResponseCode: "Invalid"}, got)
	assert.Zero(t, calls.Load())
}

func TestValidatePhone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, phonePath, r.URL.Path)
		assert.Equal(t, "+441234567890", r.URL.Query().Get("phone"))
		assert.Equal(t, "GB", r.URL.Query().Get("country"))
		writeJSON(w, map[string]any{"Items": []map[string]string{{"IsValid": "Maybe", "NumberType": "Mobile"}}})
	}, func(cfg *Config) { cfg.IncludeMaybePhoneNumbers = true })

	got, err := c.ValidatePhone(context.Background(), "+441234567890", "GB")
	require.NoError(t, err)
	assert.True(t, got.IsValid)
}

func TestValidatePhone_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"Items": []map[string]string{{"IsValid": "Yes"}}})
	})

	got, err := c.ValidatePhone(context.Background(), "+4912345", "DE")
	require.NoError(t, err)
	assert.True(t, got.IsValid)
	assert.Equal(t, int32(2), calls.Load())
}
