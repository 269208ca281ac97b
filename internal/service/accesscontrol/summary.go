package accesscontrol

import (
	"sort"

	"github.com/samber/lo"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// PermissionSummary aggregates the effective permissions of a context
// across every registered rule, plus the coarse permission tier derived
// from its sharing level.
type PermissionSummary struct {
	SharingLevel        isolation.SharingLevel   `json:"sharing_level"`
	PermissionLevel     isolation.PermissionTier `json:"permission_level"`
	AllowedActions      []string                 `json:"allowed_actions"`
	DeniedActions       []string                 `json:"denied_actions"`
	ResourcePermissions map[string][]string      `json:"resource_permissions"`
}

// PermissionSummary walks every rule in the store, evaluates its conditions
// against the context with an empty resource probe, and records the winning
// decision per (resource type, action). Rules that cannot match this context
// contribute nothing.
func (e *Engine) PermissionSummary(ic *isolation.Context) *PermissionSummary {
	summary := &PermissionSummary{
		ResourcePermissions: make(map[string][]string),
	}
	if ic == nil {
		return summary
	}
	summary.SharingLevel = ic.SharingLevel
	summary.PermissionLevel = ic.SharingLevel.Tier()

	e.mu.RLock()
	keys := lo.Keys(e.rules)
	sort.Strings(keys)

	allowed := make(map[string]struct{})
	denied := make(map[string]struct{})

	for _, key := range keys {
		for _, rule := range e.rules[key] {
			if !rule.Enabled {
				continue
			}
			probe := Probe{
				Context:  ic,
				Resource: isolation.NewResource(rule.ResourceType, ""),
				Action:   rule.Action,
			}
			if !e.conditions.MatchesAll(rule.Conditions, probe) {
				continue
			}
			if rule.Allow {
				allowed[rule.Action] = struct{}{}
				summary.ResourcePermissions[rule.ResourceType] = append(
					summary.ResourcePermissions[rule.ResourceType], rule.Action)
			} else {
				denied[rule.Action] = struct{}{}
			}
			// Highest priority match decides for this key
			break
		}
	}
	e.mu.RUnlock()

	summary.AllowedActions = lo.Keys(allowed)
	summary.DeniedActions = lo.Keys(denied)
	sort.Strings(summary.AllowedActions)
	sort.Strings(summary.DeniedActions)
	for resourceType := range summary.ResourcePermissions {
		sort.Strings(summary.ResourcePermissions[resourceType])
	}
	return summary
}
