package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// Entry represents an immutable audit log record. Validation happens in the
// constructors; entries are never modified after creation.
type Entry struct {
	ID        uuid.UUID                 `json:"id"`
	Type      EntryType                 `json:"type"`
	Timestamp time.Time                 `json:"timestamp"`
	Context   isolation.ContextSnapshot `json:"context"`

	// Access decision fields
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Action       string `json:"action,omitempty"`
	Granted      *bool  `json:"granted,omitempty"`

	// Operation fields
	Operation string `json:"operation,omitempty"`

	// Security event correlation
	SecurityEventID   *uuid.UUID                  `json:"security_event_id,omitempty"`
	SecurityEventType isolation.SecurityEventType `json:"security_event_type,omitempty"`
	Severity          isolation.Severity          `json:"severity,omitempty"`

	Details map[string]interface{} `json:"details,omitempty"`
}

// NewAccessEntry records an access decision. Both grants and denials are
// recorded; the decision itself is never altered by audit failures.
func NewAccessEntry(ic *isolation.Context, resource isolation.Resource, action string, granted bool) (*Entry, error) {
	if resource.Type == "" {
		return nil, errors.NewValidationError("MISSING_RESOURCE_TYPE", "resource type is required")
	}
	if action == "" {
		return nil, errors.NewValidationError("MISSING_ACTION", "action is required")
	}

	g := granted
	return &Entry{
		ID:           uuid.New(),
		Type:         EntryAccessDecision,
		Timestamp:    time.Now().UTC(),
		Context:      ic.Snapshot(),
		ResourceType: resource.Type,
		ResourceID:   resource.ID,
		Action:       action,
		Granted:      &g,
		Details:      make(map[string]interface{}),
	}, nil
}

// NewOperationEntry records a business operation executed under a context
func NewOperationEntry(ic *isolation.Context, operation string, details map[string]interface{}) (*Entry, error) {
	if operation == "" {
		return nil, errors.NewValidationError("MISSING_OPERATION", "operation is required")
	}
	if details == nil {
		details = make(map[string]interface{})
	}

	return &Entry{
		ID:        uuid.New(),
		Type:      EntryOperation,
		Timestamp: time.Now().UTC(),
		Context:   ic.Snapshot(),
		Operation: operation,
		Details:   details,
	}, nil
}

// NewSecurityEntry records a security event observed by the monitor
func NewSecurityEntry(ev *isolation.SecurityEvent, details map[string]interface{}) (*Entry, error) {
	if ev == nil {
		return nil, errors.NewValidationError("MISSING_EVENT", "security event is required")
	}
	if details == nil {
		details = make(map[string]interface{})
	}

	id := ev.ID
	return &Entry{
		ID:                uuid.New(),
		Type:              EntrySecurityEvent,
		Timestamp:         time.Now().UTC(),
		Context:           ev.Context,
		SecurityEventID:   &id,
		SecurityEventType: ev.Type,
		Severity:          ev.Severity,
		Details:           details,
	}, nil
}

// WasGranted reports the recorded decision; false when the entry is not an
// access decision.
func (e *Entry) WasGranted() bool {
	return e.Granted != nil && *e.Granted
}

// Matches reports whether the entry satisfies every equality filter set on f
func (e *Entry) Matches(f Filter) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.TenantID != "" && e.Context.TenantID != f.TenantID {
		return false
	}
	if f.UserID != "" && e.Context.UserID != f.UserID {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if f.Granted != nil && (e.Granted == nil || *e.Granted != *f.Granted) {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Filter holds equality filters over stored entry fields. Zero values do not
// constrain.
type Filter struct {
	Type         EntryType `json:"type,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	Action       string    `json:"action,omitempty"`
	Operation    string    `json:"operation,omitempty"`
	Granted      *bool     `json:"granted,omitempty"`
	Start        time.Time `json:"start,omitempty"`
	End          time.Time `json:"end,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}
