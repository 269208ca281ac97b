package accesscontrol

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	hierarchy := isolation.NewHierarchy()
	require.NoError(t, hierarchy.Register("document", isolation.SharingLevelTenant))
	require.NoError(t, hierarchy.Register("report", isolation.SharingLevelOrganization))
	return NewEngine(zap.NewNop(), hierarchy)
}

func tenantContext(t *testing.T, tenantID string) *isolation.Context {
	t.Helper()
	ic, err := isolation.NewContext(tenantID, "", "", "")
	require.NoError(t, err)
	return ic
}

func mustRule(t *testing.T, resourceType, action string, priority int, allow bool) *isolation.AccessRule {
	t.Helper()
	rule, err := isolation.NewAccessRule(resourceType, action, priority, allow)
	require.NoError(t, err)
	return rule
}

func TestEngine_SetRule(t *testing.T) {
	e := newTestEngine(t)

	assert.Error(t, e.SetRule(nil))
	assert.Error(t, e.SetRule(&isolation.AccessRule{}))

	require.NoError(t, e.SetRule(mustRule(t, "document", "read", 10, true)))
	require.NoError(t, e.SetRule(mustRule(t, "document", "read", 100, false)))
	require.NoError(t, e.SetRule(mustRule(t, "document", "read", 50, true)))

	rules := e.Rules("document", "read")
	require.Len(t, rules, 3)
	assert.Equal(t, 100, rules[0].Priority)
	assert.Equal(t, 50, rules[1].Priority)
	assert.Equal(t, 10, rules[2].Priority)
}

func TestEngine_RemoveRule(t *testing.T) {
	e := newTestEngine(t)
	rule := mustRule(t, "document", "read", 10, true)
	require.NoError(t, e.SetRule(rule))

	require.NoError(t, e.RemoveRule("document", "read", rule.ID))
	assert.Empty(t, e.Rules("document", "read"))

	err := e.RemoveRule("document", "read", uuid.New())
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestEngine_CheckResourceAccess_HighestPriorityWins(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")
	doc := isolation.NewResource("document", "doc-1")

	// Default access would grant; the high-priority deny overrides it
	require.NoError(t, e.SetRule(mustRule(t, "document", "read", 10, true)))
	require.NoError(t, e.SetRule(mustRule(t, "document", "read", 100, false)))

	assert.False(t, e.CheckResourceAccess(context.Background(), ic, doc, "read"))
}

func TestEngine_CheckResourceAccess_DisabledRulesSkipped(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")
	doc := isolation.NewResource("document", "doc-1")

	deny := mustRule(t, "document", "read", 100, false)
	deny.Enabled = false
	require.NoError(t, e.SetRule(deny))
	require.NoError(t, e.SetRule(mustRule(t, "document", "read", 10, true)))

	assert.True(t, e.CheckResourceAccess(context.Background(), ic, doc, "read"))
}

func TestEngine_CheckResourceAccess_Conditions(t *testing.T) {
	e := newTestEngine(t)
	secret := isolation.NewResource("secret", "s-1")

	// "secret" is unregistered, so default access denies; only the rule grants
	rule := mustRule(t, "secret", "read", 10, true)
	rule.WithCondition("tenant_id", "t1")
	require.NoError(t, e.SetRule(rule))

	assert.True(t, e.CheckResourceAccess(context.Background(), tenantContext(t, "t1"), secret, "read"))
	assert.False(t, e.CheckResourceAccess(context.Background(), tenantContext(t, "t2"), secret, "read"))
}

func TestEngine_CheckResourceAccess_AttributeConditions(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")

	rule := mustRule(t, "secret", "read", 10, true)
	rule.WithCondition("attr.classification", "public")
	require.NoError(t, e.SetRule(rule))

	public := isolation.Resource{Type: "secret", ID: "s-1", Attributes: map[string]string{"classification": "public"}}
	private := isolation.Resource{Type: "secret", ID: "s-2", Attributes: map[string]string{"classification": "internal"}}

	assert.True(t, e.CheckResourceAccess(context.Background(), ic, public, "read"))
	assert.False(t, e.CheckResourceAccess(context.Background(), ic, private, "read"))
}

func TestEngine_CheckResourceAccess_UnknownConditionFailsClosed(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")

	rule := mustRule(t, "secret", "read", 10, true)
	rule.WithCondition("no_such_predicate", "whatever")
	require.NoError(t, e.SetRule(rule))

	// The rule cannot match, so the unregistered type falls back to default deny
	assert.False(t, e.CheckResourceAccess(context.Background(), ic, isolation.NewResource("secret", "s-1"), "read"))
}

func TestEngine_CheckResourceAccess_FallsBackToDefault(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")

	// No rules registered at all
	assert.True(t, e.CheckResourceAccess(context.Background(), ic, isolation.NewResource("document", "d-1"), "read"))
	assert.False(t, e.CheckResourceAccess(context.Background(), ic, isolation.NewResource("report", "r-1"), "read"))
	assert.False(t, e.CheckResourceAccess(context.Background(), ic, isolation.NewResource("secret", "s-1"), "read"))
}

func TestEngine_CheckResourceAccess_NilContextDenies(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.CheckResourceAccess(context.Background(), nil, isolation.NewResource("document", "d-1"), "read"))
}

func TestEngine_CheckResourceAccess_RecoverDenies(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")

	e.Conditions().Register(NewPredicate("exploding", func(Probe, string) bool {
		panic("predicate bug")
	}))
	rule := mustRule(t, "document", "read", 10, true)
	rule.WithCondition("exploding", "x")
	require.NoError(t, e.SetRule(rule))

	assert.NotPanics(t, func() {
		assert.False(t, e.CheckResourceAccess(context.Background(), ic, isolation.NewResource("document", "d-1"), "read"))
	})
}

func TestEngine_CheckDefaultAccess(t *testing.T) {
	e := newTestEngine(t)

	platform := isolation.NewPlatformContext()
	assert.True(t, e.CheckDefaultAccess(platform, "document"))
	assert.True(t, e.CheckDefaultAccess(platform, "unregistered"))

	tenant := tenantContext(t, "t1")
	assert.True(t, e.CheckDefaultAccess(tenant, "document"))
	assert.False(t, e.CheckDefaultAccess(tenant, "report"))
	assert.False(t, e.CheckDefaultAccess(tenant, "unregistered"))

	assert.False(t, e.CheckDefaultAccess(nil, "document"))
}

func TestEngine_ConcurrentMutationAndEvaluation(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")
	doc := isolation.NewResource("document", "d-1")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					e.CheckResourceAccess(context.Background(), ic, doc, "read")
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		rule := mustRule(t, "document", "read", i%7, false)
		rule.WithCondition("tenant_id", "nobody")
		require.NoError(t, e.SetRule(rule))
	}
	close(stop)
	wg.Wait()

	// None of the inserted rules can match, so the default decision holds
	assert.True(t, e.CheckResourceAccess(context.Background(), ic, doc, "read"))
}

func TestEngine_CheckBatchAccess(t *testing.T) {
	e := newTestEngine(t)
	ic := tenantContext(t, "t1")

	results := e.CheckBatchAccess(context.Background(), ic, []AccessRequest{
		{Resource: isolation.NewResource("document", "d-1"), Action: "read"},
		{Resource: isolation.NewResource("secret", "s-1"), Action: "read"},
		{Resource: isolation.NewResource("document", "d-2"), Action: "write"},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Granted)
	assert.False(t, results[1].Granted)
	assert.True(t, results[2].Granted)
	assert.Equal(t, "d-2", results[2].Resource.ID)
}
