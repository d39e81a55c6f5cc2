package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed identity service call
type Kind int

const (
	// KindTransport means no response was received
	KindTransport Kind = iota
	// KindRejected means the service answered with a 4xx or 5xx status
	KindRejected
	// KindPrecondition means the call was refused locally before reaching the network
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

const transportMessage = "No response received from server"

// Friendly messages rendered to operators
const (
	UserMessageUnreachable = "Cannot connect to the server. Please ensure it's running and accessible."
	UserMessageForbidden   = "You do not have permission to access this resource."
	UserMessageNotFound    = "The requested resource was not found."
	UserMessageServer      = "Server error. Please try again later or contact support."
)

// Error is the normalized shape of every identity service failure
type Error struct {
	Kind        Kind
	StatusCode  int
	Message     string
	UserMessage string
	Err         error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind and message, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message && e.StatusCode == t.StatusCode
}

// Display returns the operator-facing text for the failure
func (e *Error) Display() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// ErrNoRefreshToken is returned when a refresh is attempted without a refresh token
var ErrNoRefreshToken = &Error{
	Kind:    KindPrecondition,
	Message: "No refresh token available",
}

func newTransportError(err error) *Error {
	return &Error{
		Kind:        KindTransport,
		Message:     transportMessage,
		UserMessage: UserMessageUnreachable,
		Err:         err,
	}
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newRejectedError(status int, body []byte) *Error {
	e := &Error{
		Kind:       KindRejected,
		StatusCode: status,
		Message:    fmt.Sprintf("Request failed with status code %d", status),
	}

	var payload errorBody
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			e.Message = payload.Message
		case payload.Error != "":
			e.Message = payload.Error
		}
	}

	switch status {
	case http.StatusForbidden:
		e.UserMessage = UserMessageForbidden
	case http.StatusNotFound:
		e.UserMessage = UserMessageNotFound
	case http.StatusInternalServerError:
		e.UserMessage = UserMessageServer
	}

	e.Err = fmt.Errorf("identity service returned %d", status)
	return e
}

// IsKind reports whether err is an identity error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// StatusCode returns the HTTP status of a rejected call, or 0
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the service rejected the call with 401
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Display returns the operator-facing text for any error
func Display(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Display()
	}
	return err.Error()
}
