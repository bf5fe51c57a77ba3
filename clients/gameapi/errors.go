package gameapi

import (
	"fmt"
	"net/http"
)

// RequestError is a non-2xx HTTP response: a transport-level failure the
// caller may retry.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the server said the resource does not exist.
func (e *RequestError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// DomainError is a business-rule rejection from the server, e.g. an illegal
// card selection or a bad player count. Never retried automatically; the
// message is surfaced verbatim.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}
