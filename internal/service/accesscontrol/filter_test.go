package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

type record struct {
	name  string
	scope isolation.ScopeIDs
}

func (r record) ScopeIDs() isolation.ScopeIDs { return r.scope }

func TestFilterData(t *testing.T) {
	items := []record{
		{name: "a", scope: isolation.ScopeIDs{TenantID: "t1", UserID: "u1"}},
		{name: "b", scope: isolation.ScopeIDs{TenantID: "t1", UserID: "u2"}},
		{name: "c", scope: isolation.ScopeIDs{TenantID: "t2"}},
	}

	t.Run("platform context passes everything", func(t *testing.T) {
		out := FilterData(items, isolation.NewPlatformContext())
		assert.Len(t, out, 3)
	})

	t.Run("tenant context keeps its tenant only", func(t *testing.T) {
		ic, err := isolation.NewContext("t1", "", "", "")
		require.NoError(t, err)
		out := FilterData(items, ic)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].name)
		assert.Equal(t, "b", out[1].name)
	})

	t.Run("user context matches the exact user", func(t *testing.T) {
		ic, err := isolation.NewContext("t1", "o1", "d1", "u2")
		require.NoError(t, err)
		// Items carry no org/dept, which the non-empty context identifiers reject
		out := FilterData(items, ic)
		assert.Empty(t, out)

		scoped := []record{{name: "mine", scope: isolation.ScopeIDs{
			TenantID: "t1", OrganizationID: "o1", DepartmentID: "d1", UserID: "u2",
		}}}
		out = FilterData(scoped, ic)
		require.Len(t, out, 1)
		assert.Equal(t, "mine", out[0].name)
	})

	t.Run("nil context filters everything", func(t *testing.T) {
		out := FilterData(items, nil)
		assert.Empty(t, out)
	})
}

func TestApplyIsolationFilter(t *testing.T) {
	ic, err := isolation.NewContext("t1", "o1", "", "")
	require.NoError(t, err)

	query := QueryFilter{"status": "active"}
	out := ApplyIsolationFilter(query, ic)

	assert.Equal(t, "active", out["status"])
	assert.Equal(t, "t1", out["tenant_id"])
	assert.Equal(t, "o1", out["organization_id"])
	assert.NotContains(t, out, "department_id")
	assert.NotContains(t, out, "user_id")

	t.Run("input query not mutated", func(t *testing.T) {
		assert.Len(t, query, 1)
	})

	t.Run("platform context adds nothing", func(t *testing.T) {
		out := ApplyIsolationFilter(QueryFilter{"status": "active"}, isolation.NewPlatformContext())
		assert.Len(t, out, 1)
	})

	t.Run("nil context returns a copy", func(t *testing.T) {
		out := ApplyIsolationFilter(query, nil)
		assert.Equal(t, QueryFilter{"status": "active"}, out)
	})
}
