package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-validation/internal/domain"
)

func TestFilter_RemovesRestricted(t *testing.T) {
	list := []Country{{Value: "DE"}, {Value: "FR"}, {Value: "US"}}
	got := Filter(list, []domain.RestrictedCountry{{RestrictedCountryCode: "FR"}})

	assert.Equal(t, []Country{{Value: "DE"}, {Value: "US"}}, got)
}

func TestFilter_ContainsMatchAndBlanks(t *testing.T) {
	list := []Country{{Value: "DE"}, {Value: "FR"}, {Value: "US"}, {Value: "de"}}
	got := Filter(list, []domain.RestrictedCountry{
		{RestrictedCountryCode: ""},
		{RestrictedCountryCode: "DE,US"},
	})

	assert.Equal(t, []Country{{Value: "FR"}, {Value: "de"}}, got)
}

func TestFilter_NoRestrictions(t *testing.T) {
	list := []Country{{Value: "DE"}}
	assert.Equal(t, list, Filter(list, nil))
}

func TestLoad_EmbeddedList(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	all := cat.All()
	assert.Greater(t, len(all), 200)

	byCode := map[string]string{}
	for _, c := range all {
		byCode[c.Value] = c.Label
	}
	assert.Equal(t, "Germany", byCode["DE"])
	assert.Equal(t, "Norway", byCode["NO"])

	filtered := cat.Without([]domain.RestrictedCountry{{RestrictedCountryCode: "DE"}})
	assert.Len(t, filtered, len(all)-1)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("not: [a list"))
	assert.Error(t, err)

	_, err = Parse([]byte("- label: Nowhere\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0 has no value")
}
