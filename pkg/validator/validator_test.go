package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyRequest struct {
	Address        string `json:"address" validate:"required"`
	CountryIsoCode string `json:"countryIsoCode" validate:"required,iso3166_1_alpha2"`
	Limit          int    `json:"limit" validate:"gte=0,lte=100"`
	Internal       string `json:"-"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	err := Validate(verifyRequest{Address: "1 Main St", CountryIsoCode: "GB", Limit: 7})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(verifyRequest{CountryIsoCode: "GB"}))
	assert.Equal(t, "is required", fields["address"])
	assert.NotContains(t, fields, "Address")
}

func TestValidate_CountryCode(t *testing.T) {
	fields := fieldsOf(t, Validate(verifyRequest{Address: "x", CountryIsoCode: "ZZ"}))
	assert.Equal(t, "must be an ISO 3166-1 alpha-2 country code", fields["countryIsoCode"])
}

func TestValidate_OutOfRange(t *testing.T) {
	fields := fieldsOf(t, Validate(verifyRequest{Address: "x", CountryIsoCode: "DE", Limit: 101}))
	assert.Contains(t, fields["limit"], "100")
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(verifyRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'address' is required")
	assert.Contains(t, err.Error(), "field 'countryIsoCode' is required")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("ip", "203.0.113.9", "omitempty,ip"))
	assert.NoError(t, Var("ip", "", "omitempty,ip"))

	fields := fieldsOf(t, Var("ip", "not-an-ip", "omitempty,ip"))
	assert.Equal(t, "must be a valid IP address", fields["ip"])
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"address":"10 Downing St","countryIsoCode":"GB","limit":3}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst verifyRequest
	require.NoError(t, DecodeAndValidate(req, &dst))
	assert.Equal(t, "10 Downing St", dst.Address)
	assert.Equal(t, 3, dst.Limit)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{not json"))

	var dst verifyRequest
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_FailsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"address":"x"}`))

	var dst verifyRequest
	fields := fieldsOf(t, DecodeAndValidate(req, &dst))
	assert.Contains(t, fields, "countryIsoCode")
}
