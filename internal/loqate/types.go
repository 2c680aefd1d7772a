package loqate

import "fmt"

// Provider payloads are PascalCase. These types are decoded at the boundary
// and mapped onto the camelCase domain types before leaving the package.

type errorFields struct {
	Error       string `json:"Error"`
	Description string `json:"Description"`
	Cause       string `json:"Cause"`
	Resolution  string `json:"Resolution"`
}

func (e errorFields) err() error {
	if e.Error == "" {
		return nil
	}
	return &ProviderError{Code: e.Error, Description: e.Description, Cause: e.Cause, Resolution: e.Resolution}
}

type findResponse struct {
	Items []findItem `json:"Items"`
}

// findItem takes Description from errorFields; error and address items share it.
type findItem struct {
	errorFields
	ID        string `json:"Id"`
	Type      string `json:"Type"`
	Text      string `json:"Text"`
	Highlight string `json:"Highlight"`
}

type batchRequest struct {
	Key       string         `json:"key"`
	Addresses []batchAddress `json:"addresses"`
}

type batchAddress struct {
	Address1   string `json:"address1"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type batchResult struct {
	Matches []batchMatch `json:"Matches"`
}

type batchMatch struct {
	AQI                string `json:"AQI"`
	AVC                string `json:"AVC"`
	Address            string `json:"Address"`
	Address1           string `json:"Address1"`
	Locality           string `json:"Locality"`
	AdministrativeArea string `json:"AdministrativeArea"`
	PostalCode         string `json:"PostalCode"`
	Country            string `json:"Country"`
}

// batchError is the object returned instead of the result array on failure.
type batchError struct {
	Number      any    `json:"Number"`
	Description string `json:"Description"`
	Cause       string `json:"Cause"`
	Resolution  string `json:"Resolution"`
}

func (e batchError) err() error {
	return &ProviderError{Code: fmt.Sprint(e.Number), Description: e.Description, Cause: e.Cause, Resolution: e.Resolution}
}

type ip2CountryResponse struct {
	Items []ip2CountryItem `json:"Items"`
}

type ip2CountryItem struct {
	errorFields
	Iso2    string `json:"Iso2"`
	Iso3    string `json:"Iso3"`
	Ison    string `json:"Ison"`
	Country string `json:"Country"`
}

type emailResponse struct {
	Items []emailItem `json:"Items"`
}

type emailItem struct {
	errorFields
	ResponseCode            string `json:"ResponseCode"`
	ResponseMessage         string `json:"ResponseMessage"`
	EmailAddress            string `json:"EmailAddress"`
	UserAccount             string `json:"UserAccount"`
	Domain                  string `json:"Domain"`
	IsDisposableOrTemporary bool   `json:"IsDisposableOrTemporary"`
	IsComplainerOrFraudRisk bool   `json:"IsComplainerOrFraudRisk"`
}

type phoneResponse struct {
	Items []phoneItem `json:"Items"`
}

type phoneItem struct {
	errorFields
	PhoneNumber    string `json:"PhoneNumber"`
	IsValid        string `json:"IsValid"`
	NetworkCode    string `json:"NetworkCode"`
	NetworkName    string `json:"NetworkName"`
	NetworkCountry string `json:"NetworkCountry"`
	NationalFormat string `json:"NationalFormat"`
	NumberType     string `json:"NumberType"`
}
