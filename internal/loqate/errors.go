package loqate

import "fmt"

// ProviderError is an error reported in a 200 response body, which is how
// the provider signals bad keys, exhausted credit and malformed requests.
type ProviderError struct {
	Code        string
	Description string
	Cause       string
	Resolution  string
}

func (e *ProviderError) Error() string {
	if e.Cause == "" {
		return fmt.Sprintf("loqate error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("loqate error %s: %s (%s)", e.Code, e.Description, e.Cause)
}
