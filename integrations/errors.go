package integrations

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("trello: invalid credentials")
	ErrUnknownFailure     = errors.New("trello: unknown API failure")
)

// APIError describes a failed Trello call. Err always wraps one of
// ErrInvalidCredentials or ErrUnknownFailure.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newStatusError(method, path string, status int, body []byte) *APIError {
	sentinel := ErrUnknownFailure
	if status == http.StatusUnauthorized {
		sentinel = ErrInvalidCredentials
	}
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       string(body),
		Err:        sentinel,
	}
}

// ErrorMessage turns a client error into the text shown to users.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return "Invalid Trello credentials: check the API key and token"
	}
	return "Unknown error communicating with the Trello API"
}
