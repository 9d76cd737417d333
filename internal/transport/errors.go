package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a 2xx response body cannot be decoded
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is a non-2xx answer from a collaborator endpoint
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// IsUnauthorized reports whether err signals an unauthenticated caller (401/403)
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
	}
	return false
}

// IsMalformed reports whether the request reached the server but the reply could not be read
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
