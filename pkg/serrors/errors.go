package serrors

import (
	"fmt"
	"net/http"
)

// BaseError carries a stable machine-readable code next to the message.
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"-"`
}

func NewError(code, message, details string) *BaseError {
	return &BaseError{Code: code, Message: message, Details: details}
}

// NewHTTPError is NewError bound to an HTTP status.
func NewHTTPError(status int, code, message string) *BaseError {
	return &BaseError{Code: code, Message: message, Status: status}
}

func (e *BaseError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func (e *BaseError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

// Is matches on code so wrapped copies with different details still compare equal.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{Code: e.Code, Message: e.Message, Details: details, Status: e.Status}
}
