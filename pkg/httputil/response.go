package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/portal/pkg/identity"
)

// ErrorResponse is the JSON error body. Message mirrors the identity service's
// own error shape so clients can read either.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteInternalError writes an internal server error (500)
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusInternalServerError, message)
}

// StatusFor maps an error to the status a portal handler should answer with.
// Identity service rejections keep their status, unreachable services become
// 502 and local preconditions 400.
func StatusFor(err error) int {
	var e *identity.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case identity.KindTransport:
		return http.StatusBadGateway
	case identity.KindPrecondition:
		return http.StatusBadRequest
	default:
		if e.StatusCode >= 400 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	}
}

// WriteIdentityError writes err with StatusFor and its operator-facing text
func WriteIdentityError(w http.ResponseWriter, err error) {
	WriteErrorMessage(w, StatusFor(err), identity.Display(err))
}
