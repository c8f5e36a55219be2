package search

import "fmt"

// StatusError is returned when the search endpoint answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("search endpoint returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("search endpoint returned %d", e.StatusCode)
}

// IsRetryable returns true if the error can be resolved by waiting and retrying.
// DuckDuckGo answers 202 when it suspects automated traffic.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == 202 || e.StatusCode == 429 || e.StatusCode == 503
}
