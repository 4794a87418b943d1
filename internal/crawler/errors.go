package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed wraps transport failures
	ErrFetchFailed = errors.New("fetch failed")
	// ErrBodyTooLarge is returned when a response exceeds the size cap
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrRobotsDisallowed is returned for URLs blocked by robots.txt
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}
