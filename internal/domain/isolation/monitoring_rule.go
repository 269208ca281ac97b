package isolation

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
)

var monitoringValidate = validator.New()

// MonitoringRuleType categorizes which access attempts a monitoring rule
// applies to
type MonitoringRuleType string

const (
	MonitoringTypeAccess     MonitoringRuleType = "ACCESS"
	MonitoringTypePermission MonitoringRuleType = "PERMISSION"
	MonitoringTypeData       MonitoringRuleType = "DATA"
	MonitoringTypeSecurity   MonitoringRuleType = "SECURITY"
)

// IsValid returns true for a known monitoring rule type
func (t MonitoringRuleType) IsValid() bool {
	switch t {
	case MonitoringTypeAccess, MonitoringTypePermission, MonitoringTypeData, MonitoringTypeSecurity:
		return true
	default:
		return false
	}
}

// MonitoringRule is an externally configured rule evaluated on every access
// attempt. Condition names a predicate in the security monitor's registry;
// the built-in vocabulary is intentionally small ("frequency",
// "time_of_day") and extensible without touching the evaluator.
type MonitoringRule struct {
	ID         uuid.UUID          `json:"id"`
	Name       string             `json:"name" validate:"required"`
	Type       MonitoringRuleType `json:"type"`
	Condition  string             `json:"condition" validate:"required"`
	Threshold  float64            `json:"threshold"`
	AlertLevel Severity           `json:"alert_level"`
	Enabled    bool               `json:"enabled"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewMonitoringRule creates a validated monitoring rule
func NewMonitoringRule(name string, ruleType MonitoringRuleType, condition string, threshold float64, alertLevel Severity) (*MonitoringRule, error) {
	rule := &MonitoringRule{
		ID:         uuid.New(),
		Name:       name,
		Type:       ruleType,
		Condition:  condition,
		Threshold:  threshold,
		AlertLevel: alertLevel,
		Enabled:    true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks structural validity of the rule
func (r *MonitoringRule) Validate() error {
	if err := monitoringValidate.Struct(r); err != nil {
		return errors.NewValidationError("INVALID_MONITORING_RULE",
			"monitoring rule validation failed").WithCause(err)
	}
	if !r.Type.IsValid() {
		return errors.NewValidationError("INVALID_MONITORING_TYPE",
			"monitoring rule type must be ACCESS, PERMISSION, DATA, or SECURITY")
	}
	if !r.AlertLevel.IsValid() {
		return errors.NewValidationError("INVALID_ALERT_LEVEL",
			"alert level must be a valid severity")
	}
	return nil
}

// AppliesTo reports whether the rule's type matches an action's monitoring
// category
func (r *MonitoringRule) AppliesTo(category MonitoringRuleType) bool {
	return r.Enabled && r.Type == category
}
