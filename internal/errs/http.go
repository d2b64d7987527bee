package errs

import (
	"net/http"
	"strings"
)

// HTTPError is the JSON body written for failed requests.
//
//	{"code":"NOT_FOUND","message":"todo not found","status":404}
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError builds an HTTPError whose code is derived from the status text,
// e.g. 404 -> "NOT_FOUND".
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{
		Code:    MakeUpperCaseWithUnderscores(http.StatusText(status)),
		Message: message,
		Status:  status,
	}
}

func NewBadRequestError(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message)
}

func NewNotFoundError(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message)
}

// NewInternalServerError never exposes the underlying error text.
func NewInternalServerError() *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func NewServiceUnavailableError(message string) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message)
}

// MakeUpperCaseWithUnderscores converts "Bad Request" into "BAD_REQUEST".
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
