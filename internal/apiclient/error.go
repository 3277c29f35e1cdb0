package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

const defaultErrorMessage = "unexpected error"

var (
	ErrRefreshExhausted = errors.New("token refresh failed: max attempts exceeded")
	ErrRefreshRejected  = errors.New("token refresh rejected")
)

// APIError is a non-2xx answer from the remote API.
type APIError struct {
	Status  int
	Message string
	Payload []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
