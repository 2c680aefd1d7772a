package domain

import (
	"strconv"
	"strings"
)

// AddressType distinguishes a drill-down container from a terminal address.
type AddressType string

const (
	AddressTypeContainer AddressType = "Container"
	AddressTypeAddress   AddressType = "Address"
)

// VerificationStatus is the outcome of classifying a verified address.
type VerificationStatus string

const (
	StatusValid        VerificationStatus = "Valid"
	StatusQuestionable VerificationStatus = "Questionable"
	StatusInvalid      VerificationStatus = "Invalid"
)

// Suggestion is one address lookup candidate.
type Suggestion struct {
	ID             string      `json:"id"`
	Text           string      `json:"text"`
	Highlight      string      `json:"highlight"`
	Description    string      `json:"description"`
	Type           AddressType `json:"type"`
	PostCode       string      `json:"postCode,omitempty"`
	City           string      `json:"city,omitempty"`
	CountryIsoCode string      `json:"countryIsoCode,omitempty"`
}

// LookupQuery is the input of an address lookup. ID is the container to
// drill into, empty for a fresh search.
type LookupQuery struct {
	ID             string `json:"id,omitempty"`
	Text           string `json:"text"`
	Limit          int    `json:"limit,omitempty"`
	CountryIsoCode string `json:"countryIsoCode,omitempty"`
	City           string `json:"city,omitempty"`
}

// CacheKey returns a normalised key that is equal for queries which only
// differ in case or surrounding whitespace.
func (q LookupQuery) CacheKey() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return strings.Join([]string{
		norm(q.ID), norm(q.Text), norm(q.CountryIsoCode), norm(q.City), strconv.Itoa(q.Limit),
	}, "|")
}

// VerifyAddressRequest carries the four fields required for verification.
type VerifyAddressRequest struct {
	Country    string `json:"country" validate:"omitempty,max=3"`
	Address    string `json:"address" validate:"max=500"`
	City       string `json:"city" validate:"max=200"`
	PostalCode string `json:"postalCode" validate:"max=40"`
}

// Complete reports whether every field needed for a remote call is present.
func (r VerifyAddressRequest) Complete() bool {
	return r.Country != "" && r.Address != "" && r.City != "" && r.PostalCode != ""
}

// AddressVerification is the result of verifying an address. Status is empty
// when the request was rejected locally for missing fields.
type AddressVerification struct {
	Status             VerificationStatus `json:"status,omitempty"`
	IsValid            bool               `json:"isValid"`
	Address            string             `json:"address,omitempty"`
	Address1           string             `json:"address1,omitempty"`
	Locality           string             `json:"locality,omitempty"`
	AdministrativeArea string             `json:"administrativeArea,omitempty"`
	PostalCode         string             `json:"postalCode,omitempty"`
	Country            string             `json:"country,omitempty"`
	AVC                string             `json:"avc,omitempty"`
	AQI                string             `json:"aqi,omitempty"`
	MatchScore         int                `json:"matchScore,omitempty"`
}

// CountryMatch is one ip-to-country candidate.
type CountryMatch struct {
	Iso2    string `json:"iso2"`
	Iso3    string `json:"iso3,omitempty"`
	Ison    string `json:"ison,omitempty"`
	Country string `json:"country,omitempty"`
}

// EmailValidation is the provider verdict for one email address.
type EmailValidation struct {
	ResponseCode            string `json:"responseCode"`
	ResponseMessage         string `json:"responseMessage,omitempty"`
	EmailAddress            string `json:"emailAddress,omitempty"`
	UserAccount             string `json:"userAccount,omitempty"`
	Domain                  string `json:"domain,omitempty"`
	IsDisposableOrTemporary bool   `json:"isDisposableOrTemporary,omitempty"`
	IsComplainerOrFraudRisk bool   `json:"isComplainerOrFraudRisk,omitempty"`
	IsValid                 bool   `json:"isValid"`
}

// PhoneValidation is the provider verdict for one phone number.
type PhoneValidation struct {
	IsValid bool `json:"isValid"`
}

// RestrictedCountry is a country that must not be offered for selection.
type RestrictedCountry struct {
	RestrictedCountryCode string `json:"restrictedCountryCode"`
}
