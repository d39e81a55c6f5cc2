package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/portal/pkg/contextkeys"
	"github.com/platinummonkey/portal/pkg/httputil"
	"github.com/platinummonkey/portal/pkg/identity"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// NopLogger discards every event
func NopLogger() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (noOpLogger) Close() error { return nil }

// NewEvent creates an event with the request context populated. A non-nil
// actor fills the user fields.
func NewEvent(r *http.Request, eventType EventType, status EventStatus, actor *identity.Identity) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}

	if actor != nil {
		id := actor.ID
		event.UserID = &id
		event.Username = actor.Username
	}

	if r != nil {
		event.IPAddress = httputil.ClientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
		if reqID, ok := r.Context().Value(contextkeys.RequestIDKey).(string); ok {
			event.RequestID = reqID
		}
	}

	return event
}

