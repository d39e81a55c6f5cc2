package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthLogout      EventType = "auth.logout"

	// Admin events
	EventTypeAdminUserUpdate EventType = "admin.user_update"
	EventTypeAdminUserDelete EventType = "admin.user_delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// AuditEvent represents a single audit log entry. Tokens and passwords are never recorded.
type AuditEvent struct {
	// Core fields
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Target account for admin events
	ResourceID string `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
