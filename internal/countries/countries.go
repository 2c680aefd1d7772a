// Package countries holds the reference list of selectable countries.
package countries

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/utafrali/storefront-validation/internal/domain"
)

//go:embed countries.yaml
var countriesYAML []byte

// Country is one selectable country.
type Country struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Catalog is an immutable list of countries.
type Catalog struct {
	countries []Country
}

// Load parses the embedded country list.
func Load() (*Catalog, error) {
	return Parse(countriesYAML)
}

// Parse builds a catalog from a YAML sequence of {value, label}.
func Parse(data []byte) (*Catalog, error) {
	var list []Country
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse countries: %w", err)
	}
	for i, c := range list {
		if c.Value == "" {
			return nil, fmt.Errorf("parse countries: entry %d has no value", i)
		}
	}
	return &Catalog{countries: list}, nil
}

// All returns a copy of every country.
func (c *Catalog) All() []Country {
	return append([]Country(nil), c.countries...)
}

// Without returns the catalog minus restricted countries.
func (c *Catalog) Without(restricted []domain.RestrictedCountry) []Country {
	return Filter(c.countries, restricted)
}

// Filter drops every country whose code is contained in a restricted code.
// Matching is case-sensitive and blank restricted codes are ignored.
func Filter(list []Country, restricted []domain.RestrictedCountry) []Country {
	codes := make([]string, 0, len(restricted))
	for _, r := range restricted {
		if r.RestrictedCountryCode != "" {
			codes = append(codes, r.RestrictedCountryCode)
		}
	}

	out := make([]Country, 0, len(list))
	for _, country := range list {
		blocked := false
		for _, code := range codes {
			if strings.Contains(code, country.Value) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, country)
		}
	}
	return out
}
