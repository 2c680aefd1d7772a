package loqate

import (
	"regexp"
	"strings"
	"unicode"
)

var countryPrefix = regexp.MustCompile(`^([A-Z]{2})\|`)

// SplitDescription separates a suggestion description such as
// "London NW1 6XE" into its postcode ("NW1 6XE") and city ("London").
// Space-separated tokens containing a digit belong to the postcode.
func SplitDescription(description string) (postCode, city string) {
	var pc, c strings.Builder
	for _, part := range strings.Split(description, " ") {
		if strings.IndexFunc(part, unicode.IsDigit) >= 0 {
			pc.WriteString(part)
			pc.WriteByte(' ')
		} else {
			c.WriteString(part)
			c.WriteByte(' ')
		}
	}
	return strings.TrimSpace(pc.String()), strings.TrimSpace(c.String())
}

// CountryFromID returns the ISO alpha-2 prefix of ids like "GB|RM|A|12345",
// or "" when there is none.
func CountryFromID(id string) string {
	if m := countryPrefix.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return ""
}
