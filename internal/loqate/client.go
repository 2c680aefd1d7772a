package loqate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/storefront-validation/internal/domain"
	"github.com/utafrali/storefront-validation/pkg/httpclient"
	"github.com/utafrali/storefront-validation/pkg/tracing"
)

// Source identifies this integration to the provider on every call.
const Source = "CommerceToolsV1.0.0.0"

// DefaultHost is the provider's public API host.
const DefaultHost = "https://api.addressy.com"

const (
	findPath       = "/Capture/Interactive/Find/v1.1/json3.ws"
	verifyPath     = "/Cleansing/International/Batch/v1.00/json4.ws"
	ip2CountryPath = "/Extras/Web/Ip2Country/v1.10/json3.ws"
	emailPath      = "/EmailValidation/Interactive/Validate/v2/json3.ws"
	phonePath      = "/PhoneNumberValidation/Interactive/Validate/v2.2/json3.ws"

	defaultFindLimit = 12
	serviceName      = "loqate"
	tracerName       = "github.com/utafrali/storefront-validation/internal/loqate"
	maxBodyBytes     = 1 << 20
)

// Config configures the provider client.
type Config struct {
	APIKey string
	Host   string
	// GoodMatchThreshold is the minimum match score for a Valid address.
	GoodMatchThreshold         int
	EmailTimeout               time.Duration
	IncludeValidCatchAllEmails bool
	IncludeMaybePhoneNumbers   bool
}

// Client calls the provider's capture, cleansing and validation APIs.
type Client struct {
	cfg    Config
	http   httpclient.Doer
	logger *slog.Logger
}

// NewClient creates a provider client that sends requests through doer.
func NewClient(cfg Config, doer httpclient.Doer, logger *slog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &Client{cfg: cfg, http: doer, logger: logger}
}

// Find returns address suggestions for q. Address items are enriched with
// postcode, city and country parsed from their description and id.
func (c *Client) Find(ctx context.Context, q domain.LookupQuery) (_ []domain.Suggestion, err error) {
	ctx, span := tracing.StartClientSpan(ctx, tracerName, "loqate.Find",
		attribute.String("loqate.country", q.CountryIsoCode),
		attribute.Bool("loqate.container", q.ID != ""),
	)
	defer func() { tracing.EndSpan(span, err) }()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultFindLimit
	}
	params := c.params(map[string]string{
		"text":      q.Text,
		"limit":     strconv.Itoa(limit),
		"countries": q.CountryIsoCode,
		"Container": q.ID,
	})
	if q.City != "" {
		params.Set("filters", "Locality:"+q.City)
	}

	var resp findResponse
	if err := c.get(ctx, findPath, params, &resp); err != nil {
		return nil, fmt.Errorf("find addresses: %w", err)
	}
	if len(resp.Items) > 0 {
		if perr := resp.Items[0].err(); perr != nil {
			return nil, fmt.Errorf("find addresses: %w", perr)
		}
	}

	out := make([]domain.Suggestion, 0, len(resp.Items))
	for _, it := range resp.Items {
		s := domain.Suggestion{
			ID:          it.ID,
			Text:        it.Text,
			Highlight:   it.Highlight,
			Description: it.Description,
			Type:        domain.AddressType(it.Type),
		}
		if s.Type == domain.AddressTypeAddress {
			s.PostCode, s.City = SplitDescription(it.Description)
			s.CountryIsoCode = CountryFromID(it.ID)
		}
		out = append(out, s)
	}
	return out, nil
}

// Verify cleanses req and classifies the best match. Incomplete requests are
// answered locally with IsValid false. Verification is never retried.
func (c *Client) Verify(ctx context.Context, req domain.VerifyAddressRequest) (_ domain.AddressVerification, err error) {
	if !req.Complete() {
		return domain.AddressVerification{IsValid: false}, nil
	}

	ctx, span := tracing.StartClientSpan(ctx, tracerName, "loqate.Verify",
		attribute.String("loqate.country", req.Country),
	)
	defer func() { tracing.EndSpan(span, err) }()

	body, err := json.Marshal(batchRequest{
		Key: c.cfg.APIKey,
		Addresses: []batchAddress{{
			Address1:   req.Address + ", " + req.City,
			PostalCode: req.PostalCode,
			Country:    req.Country,
		}},
	})
	if err != nil {
		return domain.AddressVerification{}, fmt.Errorf("marshal verify request: %w", err)
	}

	u := c.cfg.Host + verifyPath + "?" + url.Values{"source": []string{Source}}.Encode()
	raw, err := c.do(httpclient.WithoutRetry(ctx), http.MethodPost, u, body)
	if err != nil {
		return domain.AddressVerification{}, fmt.Errorf("verify address: %w", err)
	}

	var results []batchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		var perr batchError
		if jerr := json.Unmarshal(raw, &perr); jerr == nil && perr.Description != "" {
			return domain.AddressVerification{}, fmt.Errorf("verify address: %w", perr.err())
		}
		return domain.AddressVerification{}, fmt.Errorf("decode verify response: %w", err)
	}

	if len(results) == 0 || len(results[0].Matches) == 0 {
		return domain.AddressVerification{Status: domain.StatusInvalid}, nil
	}

	m := results[0].Matches[0]
	status, score := ClassifyAVC(m.AVC, c.cfg.GoodMatchThreshold)
	span.SetAttributes(attribute.String("loqate.status", string(status)))
	c.logger.DebugContext(ctx, "address classified",
		slog.String("avc", m.AVC),
		slog.Int("match_score", score),
		slog.String("status", string(status)),
	)

	return domain.AddressVerification{
		Status:             status,
		IsValid:            status == domain.StatusValid,
		Address:            m.Address,
		Address1:           m.Address1,
		Locality:           m.Locality,
		AdministrativeArea: m.AdministrativeArea,
		PostalCode:         m.PostalCode,
		Country:            m.Country,
		AVC:                m.AVC,
		AQI:                m.AQI,
		MatchScore:         score,
	}, nil
}

// CountryByIP resolves ip to candidate countries, best first.
func (c *Client) CountryByIP(ctx context.Context, ip string) (_ []domain.CountryMatch, err error) {
	ctx, span := tracing.StartClientSpan(ctx, tracerName, "loqate.CountryByIP")
	defer func() { tracing.EndSpan(span, err) }()

	var resp ip2CountryResponse
	if err := c.get(ctx, ip2CountryPath, c.params(map[string]string{"ipAddress": ip}), &resp); err != nil {
		return nil, fmt.Errorf("country by ip: %w", err)
	}

	out := make([]domain.CountryMatch, 0, len(resp.Items))
	for _, it := range resp.Items {
		if perr := it.err(); perr != nil {
			return nil, fmt.Errorf("country by ip: %w", perr)
		}
		out = append(out, domain.CountryMatch{Iso2: it.Iso2, Iso3: it.Iso3, Ison: it.Ison, Country: it.Country})
	}
	return out, nil
}

// ValidateEmail checks email. An empty address is Invalid without a call.
func (c *Client) ValidateEmail(ctx context.Context, email string) (_ domain.EmailValidation, err error) {
	if email == "" {
		return domain.EmailValidation{ResponseCode: "Invalid", IsValid: false}, nil
	}

	ctx, span := tracing.StartClientSpan(ctx, tracerName, "loqate.ValidateEmail")
	defer func() { tracing.EndSpan(span, err) }()

	fields := map[string]string{"email": email}
	if c.cfg.EmailTimeout > 0 {
		fields["timeout"] = strconv.FormatInt(c.cfg.EmailTimeout.Milliseconds(), 10)
	}

	var resp emailResponse
	if err := c.get(ctx, emailPath, c.params(fields), &resp); err != nil {
		return domain.EmailValidation{}, fmt.Errorf("validate email: %w", err)
	}
	if len(resp.Items) == 0 {
		return domain.EmailValidation{}, fmt.Errorf("validate email: empty response")
	}

	it := resp.Items[0]
	if perr := it.err(); perr != nil {
		return domain.EmailValidation{}, fmt.Errorf("validate email: %w", perr)
	}
	return domain.EmailValidation{
		ResponseCode:            it.ResponseCode,
		ResponseMessage:         it.ResponseMessage,
		EmailAddress:            it.EmailAddress,
		UserAccount:             it.UserAccount,
		Domain:                  it.Domain,
		IsDisposableOrTemporary: it.IsDisposableOrTemporary,
		IsComplainerOrFraudRisk: it.IsComplainerOrFraudRisk,
		IsValid:                 EmailIsValid(it.ResponseCode, c.cfg.IncludeValidCatchAllEmails),
	}, nil
}

// ValidatePhone checks phone for country. An empty number is invalid without a call.
func (c *Client) ValidatePhone(ctx context.Context, phone, country string) (_ domain.PhoneValidation, err error) {
	if phone == "" {
		return domain.PhoneValidation{IsValid: false}, nil
	}

	ctx, span := tracing.StartClientSpan(ctx, tracerName, "loqate.ValidatePhone",
		attribute.String("loqate.country", country),
	)
	defer func() { tracing.EndSpan(span, err) }()

	var resp phoneResponse
	if err := c.get(ctx, phonePath, c.params(map[string]string{"phone": phone, "country": country}), &resp); err != nil {
		return domain.PhoneValidation{}, fmt.Errorf("validate phone: %w", err)
	}
	if len(resp.Items) == 0 {
		return domain.PhoneValidation{}, fmt.Errorf("validate phone: empty response")
	}

	it := resp.Items[0]
	if perr := it.err(); perr != nil {
		return domain.PhoneValidation{}, fmt.Errorf("validate phone: %w", perr)
	}
	return domain.PhoneValidation{IsValid: PhoneIsValid(it.IsValid, c.cfg.IncludeMaybePhoneNumbers)}, nil
}

// params builds the query string shared by every GET endpoint. Empty values
// are omitted.
func (c *Client) params(fields map[string]string) url.Values {
	v := url.Values{}
	v.Set("key", c.cfg.APIKey)
	v.Set("source", Source)
	for k, val := range fields {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	raw, err := c.do(ctx, http.MethodGet, c.cfg.Host+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}
