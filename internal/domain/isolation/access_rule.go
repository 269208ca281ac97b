package isolation

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
)

var ruleValidate = validator.New()

// AccessRule is a prioritized, conditional allow/deny statement for a
// (resource type, action) pair. Rules are created by configuration and never
// mutated in place; replacement means remove and re-add.
type AccessRule struct {
	ID           uuid.UUID         `json:"id"`
	ResourceType string            `json:"resource_type" validate:"required"`
	Action       string            `json:"action" validate:"required"`
	Priority     int               `json:"priority"`
	Allow        bool              `json:"allow"`
	Enabled      bool              `json:"enabled"`
	Conditions   map[string]string `json:"conditions,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewAccessRule creates a validated access rule. Higher priority rules are
// evaluated first.
func NewAccessRule(resourceType, action string, priority int, allow bool) (*AccessRule, error) {
	rule := &AccessRule{
		ID:           uuid.New(),
		ResourceType: resourceType,
		Action:       action,
		Priority:     priority,
		Allow:        allow,
		Enabled:      true,
		Conditions:   make(map[string]string),
		CreatedAt:    time.Now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// WithCondition adds a condition to the rule and returns it for chaining.
// All conditions on a rule must match for the rule to apply.
func (r *AccessRule) WithCondition(field, expected string) *AccessRule {
	if r.Conditions == nil {
		r.Conditions = make(map[string]string)
	}
	r.Conditions[field] = expected
	return r
}

// Validate checks structural validity of the rule
func (r *AccessRule) Validate() error {
	if err := ruleValidate.Struct(r); err != nil {
		return errors.NewValidationError("INVALID_ACCESS_RULE",
			"access rule validation failed").WithCause(err)
	}
	return nil
}

// Key returns the rule-store key for this rule
func (r *AccessRule) Key() string {
	return RuleKey(r.ResourceType, r.Action)
}

// RuleKey builds the rule-store key for a (resource type, action) pair
func RuleKey(resourceType, action string) string {
	return fmt.Sprintf("%s:%s", resourceType, action)
}
