package accesscontrol

import (
	"strings"
	"sync"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// Probe carries everything a condition predicate may inspect when deciding
// whether a rule applies.
type Probe struct {
	Context  *isolation.Context
	Resource isolation.Resource
	Action   string
}

// Predicate evaluates one named rule condition against a probe. Predicates
// are registered by name; the evaluator never needs to change when the
// condition vocabulary grows.
type Predicate interface {
	Name() string
	Evaluate(probe Probe, expected string) bool
}

// PredicateFunc adapts a function to the Predicate interface
type PredicateFunc struct {
	name string
	fn   func(probe Probe, expected string) bool
}

func (p PredicateFunc) Name() string { return p.name }

func (p PredicateFunc) Evaluate(probe Probe, expected string) bool {
	return p.fn(probe, expected)
}

// NewPredicate creates a named predicate from a function
func NewPredicate(name string, fn func(probe Probe, expected string) bool) Predicate {
	return PredicateFunc{name: name, fn: fn}
}

// ConditionRegistry maps condition field names to typed predicates. Unknown
// condition names fail the condition, which fails the rule match: an
// unmatchable rule can widen access only through a later rule or the
// default-access fallback, so typos fail closed.
type ConditionRegistry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewConditionRegistry creates a registry preloaded with the built-in
// context-field predicates.
func NewConditionRegistry() *ConditionRegistry {
	r := &ConditionRegistry{predicates: make(map[string]Predicate)}
	for _, p := range builtinPredicates() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a predicate by name
func (r *ConditionRegistry) Register(p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[p.Name()] = p
}

// Evaluate checks a single named condition. Conditions prefixed with "attr."
// match resource attributes; anything else must be a registered predicate.
func (r *ConditionRegistry) Evaluate(name string, probe Probe, expected string) bool {
	if attr, ok := strings.CutPrefix(name, "attr."); ok {
		return probe.Resource.Attribute(attr) == expected
	}

	r.mu.RLock()
	p, ok := r.predicates[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return p.Evaluate(probe, expected)
}

// MatchesAll reports whether every condition in the map holds for the probe.
// An empty condition map always matches.
func (r *ConditionRegistry) MatchesAll(conditions map[string]string, probe Probe) bool {
	for name, expected := range conditions {
		if !r.Evaluate(name, probe, expected) {
			return false
		}
	}
	return true
}

func builtinPredicates() []Predicate {
	return []Predicate{
		NewPredicate("tenant_id", func(p Probe, expected string) bool {
			return p.Context != nil && p.Context.TenantID == expected
		}),
		NewPredicate("organization_id", func(p Probe, expected string) bool {
			return p.Context != nil && p.Context.OrganizationID == expected
		}),
		NewPredicate("department_id", func(p Probe, expected string) bool {
			return p.Context != nil && p.Context.DepartmentID == expected
		}),
		NewPredicate("user_id", func(p Probe, expected string) bool {
			return p.Context != nil && p.Context.UserID == expected
		}),
		NewPredicate("sharing_level", func(p Probe, expected string) bool {
			return p.Context != nil && string(p.Context.SharingLevel) == expected
		}),
		NewPredicate("is_shared", func(p Probe, expected string) bool {
			if p.Context == nil {
				return false
			}
			return (expected == "true") == p.Context.IsShared
		}),
		NewPredicate("action", func(p Probe, expected string) bool {
			return p.Action == expected
		}),
		NewPredicate("resource_id", func(p Probe, expected string) bool {
			return p.Resource.ID == expected
		}),
	}
}
