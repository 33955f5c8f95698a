package oauth2

import "net/http"

// ErrorCode is an OAuth 2.0 error code as returned in the "error" field.
type ErrorCode string

const (
	InvalidRequest       ErrorCode = "invalid_request"
	InvalidClient        ErrorCode = "invalid_client"
	InvalidGrant         ErrorCode = "invalid_grant"
	UnauthorizedClient   ErrorCode = "unauthorized_client"
	UnsupportedGrantType ErrorCode = "unsupported_grant_type"
	InvalidScope         ErrorCode = "invalid_scope"
	InvalidToken         ErrorCode = "invalid_token"
	ServerError          ErrorCode = "server_error"
)

// Error is an OAuth 2.0 error carrying the HTTP status it is reported with.
// Host model callbacks return *Error to have their code and message
// passed to the caller unchanged.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
	Status      int       `json:"-"`
	cause       error
}

// NewError creates an error with the status implied by the code.
func NewError(code ErrorCode, description string) *Error {
	return &Error{
		Code:        code,
		Description: description,
		Status:      StatusFor(code),
	}
}

// StatusFor returns the HTTP status used for an error code.
func StatusFor(code ErrorCode) int {
	switch code {
	case InvalidRequest, InvalidClient, InvalidGrant, UnauthorizedClient, UnsupportedGrantType, InvalidScope:
		return http.StatusBadRequest
	case InvalidToken:
		return http.StatusUnauthorized
	case ServerError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// WithStatus returns a copy of the error reported with a different status.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.Status = status
	return &c
}
