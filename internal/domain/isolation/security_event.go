package isolation

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
)

// SecurityEventType classifies recorded security events
type SecurityEventType string

const (
	EventAnomalousAccess   SecurityEventType = "ANOMALOUS_ACCESS"
	EventSuspiciousPattern SecurityEventType = "SUSPICIOUS_PATTERN"
	EventRuleViolation     SecurityEventType = "RULE_VIOLATION"
	EventAccessDenied      SecurityEventType = "ACCESS_DENIED"
	EventContextViolation  SecurityEventType = "CONTEXT_VIOLATION"
)

// String returns the string representation of the event type
func (t SecurityEventType) String() string {
	return string(t)
}

// Severity represents the severity of a security event
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// String returns the string representation of the severity
func (s Severity) String() string {
	return string(s)
}

// IsValid returns true for a known severity value
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// AtLeast reports whether the severity is at or above the given floor
func (s Severity) AtLeast(floor Severity) bool {
	return severityRank(s) >= severityRank(floor)
}

func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// SecurityEvent is an append-only record of an anomaly, rule violation, or
// suspicious pattern, with the context snapshot it was observed under.
type SecurityEvent struct {
	ID          uuid.UUID              `json:"id"`
	Type        SecurityEventType      `json:"type"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Context     ContextSnapshot        `json:"context"`
	Timestamp   time.Time              `json:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NewSecurityEvent creates a validated security event bound to a context
// snapshot. The context may be nil (platform-scope events).
func NewSecurityEvent(eventType SecurityEventType, severity Severity, description string, ic *Context) (*SecurityEvent, error) {
	if eventType == "" {
		return nil, errors.NewValidationError("MISSING_EVENT_TYPE", "security event type is required")
	}
	if !severity.IsValid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY",
			"severity must be LOW, MEDIUM, HIGH, or CRITICAL")
	}
	if description == "" {
		return nil, errors.NewValidationError("MISSING_DESCRIPTION", "description is required")
	}

	return &SecurityEvent{
		ID:          uuid.New(),
		Type:        eventType,
		Severity:    severity,
		Description: description,
		Context:     ic.Snapshot(),
		Timestamp:   time.Now().UTC(),
		Details:     make(map[string]interface{}),
	}, nil
}

// WithDetail attaches a free-form detail to the event and returns it
func (e *SecurityEvent) WithDetail(key string, value interface{}) *SecurityEvent {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsCritical reports whether the event must trigger alert dispatch
func (e *SecurityEvent) IsCritical() bool {
	return e.Severity == SeverityCritical
}
