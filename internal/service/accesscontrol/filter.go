package accesscontrol

import (
	"github.com/samber/lo"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// FilterData returns only the items visible from the context: for every
// identifier the context has set, the item's corresponding field must be
// equal. Identifiers absent on the context act as wildcards. A nil context
// filters everything out (fail closed).
func FilterData[T isolation.Scoped](items []T, ic *isolation.Context) []T {
	if ic == nil {
		return []T{}
	}
	scope := ic.ScopeIDs()
	return lo.Filter(items, func(item T, _ int) bool {
		return scopeMatches(scope, item.ScopeIDs())
	})
}

func scopeMatches(want, got isolation.ScopeIDs) bool {
	if want.TenantID != "" && got.TenantID != want.TenantID {
		return false
	}
	if want.OrganizationID != "" && got.OrganizationID != want.OrganizationID {
		return false
	}
	if want.DepartmentID != "" && got.DepartmentID != want.DepartmentID {
		return false
	}
	if want.UserID != "" && got.UserID != want.UserID {
		return false
	}
	return true
}

// QueryFilter is a storage-agnostic predicate map pushed down to a
// persistence adapter
type QueryFilter map[string]interface{}

// ApplyIsolationFilter returns a copy of the query with each non-empty
// context identifier merged in, so storage enforces the same scoping the
// engine enforces post-hoc. The input query is never mutated.
func ApplyIsolationFilter(query QueryFilter, ic *isolation.Context) QueryFilter {
	out := make(QueryFilter, len(query)+4)
	for k, v := range query {
		out[k] = v
	}
	if ic == nil {
		return out
	}
	if ic.TenantID != "" {
		out["tenant_id"] = ic.TenantID
	}
	if ic.OrganizationID != "" {
		out["organization_id"] = ic.OrganizationID
	}
	if ic.DepartmentID != "" {
		out["department_id"] = ic.DepartmentID
	}
	if ic.UserID != "" {
		out["user_id"] = ic.UserID
	}
	return out
}
