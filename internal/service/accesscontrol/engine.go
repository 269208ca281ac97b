package accesscontrol

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// Engine stores prioritized access rules keyed by (resource type, action)
// and evaluates them against isolation contexts. The rule store is
// read-mostly: evaluation takes a read lock, rule mutation a write lock.
// Every boolean check fails closed: internal errors deny, they never
// propagate to the caller.
type Engine struct {
	logger     *zap.Logger
	hierarchy  *isolation.Hierarchy
	conditions *ConditionRegistry

	mu    sync.RWMutex
	rules map[string][]*isolation.AccessRule
}

// NewEngine creates an access control engine. A nil hierarchy gets an empty
// one, which denies all default access until resource types are registered.
func NewEngine(logger *zap.Logger, hierarchy *isolation.Hierarchy) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hierarchy == nil {
		hierarchy = isolation.NewHierarchy()
	}
	return &Engine{
		logger:     logger,
		hierarchy:  hierarchy,
		conditions: NewConditionRegistry(),
		rules:      make(map[string][]*isolation.AccessRule),
	}
}

// Conditions exposes the registry so callers can extend the condition
// vocabulary
func (e *Engine) Conditions() *ConditionRegistry {
	return e.conditions
}

// Hierarchy exposes the resource hierarchy for configuration-time
// registration
func (e *Engine) Hierarchy() *isolation.Hierarchy {
	return e.hierarchy
}

// SetRule adds a rule to the store under its (resource type, action) key.
// Rules stay sorted by priority descending so evaluation never re-sorts.
// The stored slice is replaced, never mutated in place: evaluations that
// snapshotted it under the read lock keep iterating a consistent view.
func (e *Engine) SetRule(rule *isolation.AccessRule) error {
	if rule == nil {
		return errors.NewValidationError("NIL_RULE", "access rule is required")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := rule.Key()
	stored := e.rules[key]
	rules := make([]*isolation.AccessRule, 0, len(stored)+1)
	rules = append(rules, stored...)
	rules = append(rules, rule)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	e.rules[key] = rules

	e.logger.Debug("access rule set",
		zap.String("key", key),
		zap.String("rule_id", rule.ID.String()),
		zap.Int("priority", rule.Priority),
		zap.Bool("allow", rule.Allow))
	return nil
}

// Rules returns a copy of the rules registered for a (resource type,
// action) key, priority descending.
func (e *Engine) Rules(resourceType, action string) []*isolation.AccessRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stored := e.rules[isolation.RuleKey(resourceType, action)]
	out := make([]*isolation.AccessRule, len(stored))
	copy(out, stored)
	return out
}

// RemoveRule deletes a rule by ID from a (resource type, action) key
func (e *Engine) RemoveRule(resourceType, action string, ruleID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := isolation.RuleKey(resourceType, action)
	stored := e.rules[key]
	for i, rule := range stored {
		if rule.ID == ruleID {
			e.rules[key] = append(stored[:i:i], stored[i+1:]...)
			if len(e.rules[key]) == 0 {
				delete(e.rules, key)
			}
			return nil
		}
	}
	return errors.ErrRuleNotFound
}

// CheckResourceAccess evaluates the rules for (resource type, action)
// against the context in priority order. The first enabled rule whose every
// condition matches decides; later rules are not consulted. With no matching
// rule the decision falls back to default hierarchy access. Any panic during
// evaluation is recovered and denies.
func (e *Engine) CheckResourceAccess(ctx context.Context, ic *isolation.Context, resource isolation.Resource, action string) (granted bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("access evaluation panicked, denying",
				zap.Any("panic", r),
				zap.String("resource_type", resource.Type),
				zap.String("action", action))
			granted = false
		}
	}()

	if ic == nil {
		return false
	}

	probe := Probe{Context: ic, Resource: resource, Action: action}

	e.mu.RLock()
	rules := e.rules[isolation.RuleKey(resource.Type, action)]
	e.mu.RUnlock()

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if e.conditions.MatchesAll(rule.Conditions, probe) {
			e.logger.Debug("access rule matched",
				zap.String("rule_id", rule.ID.String()),
				zap.Int("priority", rule.Priority),
				zap.Bool("allow", rule.Allow),
				zap.String("resource_type", resource.Type),
				zap.String("action", action))
			return rule.Allow
		}
	}

	return e.CheckDefaultAccess(ic, resource.Type)
}

// CheckDefaultAccess grants access only when the resource type's registered
// hierarchy level is visible from the context's sharing level. Unregistered
// resource types and invalid sharing levels deny.
func (e *Engine) CheckDefaultAccess(ic *isolation.Context, resourceType string) bool {
	if ic == nil {
		return false
	}
	return e.hierarchy.Visible(ic.SharingLevel, resourceType)
}

// AccessRequest pairs a resource with the action requested on it
type AccessRequest struct {
	Resource isolation.Resource `json:"resource"`
	Action   string             `json:"action"`
}

// BatchResult is the outcome of one item in a batch access check
type BatchResult struct {
	Resource isolation.Resource `json:"resource"`
	Action   string             `json:"action"`
	Granted  bool               `json:"granted"`
}

// CheckBatchAccess evaluates each request independently. A panic or denial
// on one item never aborts evaluation of the rest.
func (e *Engine) CheckBatchAccess(ctx context.Context, ic *isolation.Context, requests []AccessRequest) []BatchResult {
	results := make([]BatchResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, BatchResult{
			Resource: req.Resource,
			Action:   req.Action,
			Granted:  e.CheckResourceAccess(ctx, ic, req.Resource, req.Action),
		})
	}
	return results
}
