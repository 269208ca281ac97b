package auditlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

type stubRepo struct {
	stored       []*audit.Entry
	storedEvents []*isolation.SecurityEvent
	queried      []audit.Filter
	storeErr     error
	queryResult  []*audit.Entry
}

func (r *stubRepo) Store(_ context.Context, entry *audit.Entry) error {
	if r.storeErr != nil {
		return r.storeErr
	}
	r.stored = append(r.stored, entry)
	return nil
}

func (r *stubRepo) Query(_ context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	r.queried = append(r.queried, filter)
	return r.queryResult, nil
}

func (r *stubRepo) StoreSecurityEvent(_ context.Context, event *isolation.SecurityEvent) error {
	if r.storeErr != nil {
		return r.storeErr
	}
	r.storedEvents = append(r.storedEvents, event)
	return nil
}

func (r *stubRepo) Ping(_ context.Context) error { return nil }

type stubPublisher struct {
	accept    bool
	published []*audit.Entry
}

func (p *stubPublisher) TryPublish(entry *audit.Entry) bool {
	if !p.accept {
		return false
	}
	p.published = append(p.published, entry)
	return true
}

func auditContext(t *testing.T, tenantID string) *isolation.Context {
	t.Helper()
	ic, err := isolation.NewContext(tenantID, "", "", "")
	require.NoError(t, err)
	return ic
}

func TestService_LogAccess_InMemory(t *testing.T) {
	s := NewService(zap.NewNop(), nil, nil, DefaultConfig())
	ctx := context.Background()
	ic := auditContext(t, "t1")
	doc := isolation.NewResource("document", "doc-1")

	s.LogAccess(ctx, ic, doc, "read", true)
	s.LogAccess(ctx, ic, doc, "delete", false)

	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first
	assert.Equal(t, "delete", entries[0].Action)
	assert.False(t, entries[0].WasGranted())
	assert.Equal(t, "read", entries[1].Action)
	assert.True(t, entries[1].WasGranted())
}

func TestService_Query_FiltersAndLimits(t *testing.T) {
	s := NewService(zap.NewNop(), nil, nil, DefaultConfig())
	ctx := context.Background()
	doc := isolation.NewResource("document", "doc-1")

	s.LogAccess(ctx, auditContext(t, "t1"), doc, "read", true)
	s.LogAccess(ctx, auditContext(t, "t2"), doc, "read", true)
	s.LogAccess(ctx, auditContext(t, "t1"), doc, "write", true)

	entries, err := s.Query(ctx, audit.Filter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "write", entries[0].Action)

	limited, err := s.Query(ctx, audit.Filter{TenantID: "t1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "write", limited[0].Action)
}

func TestService_LevelGate(t *testing.T) {
	config := DefaultConfig()
	config.Level = audit.LevelSecurity
	s := NewService(zap.NewNop(), nil, nil, config)
	ctx := context.Background()
	ic := auditContext(t, "t1")

	s.LogAccess(ctx, ic, isolation.NewResource("document", "d-1"), "read", true)
	s.LogOperation(ctx, ic, "export.started", nil)

	event, err := isolation.NewSecurityEvent(isolation.EventRuleViolation, isolation.SeverityLow, "minor", ic)
	require.NoError(t, err)
	s.LogSecurityEvent(ctx, event, nil)

	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EntrySecurityEvent, entries[0].Type)
}

func TestService_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false
	s := NewService(zap.NewNop(), nil, nil, config)
	ctx := context.Background()

	s.LogAccess(ctx, auditContext(t, "t1"), isolation.NewResource("document", "d-1"), "read", true)

	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_BestEffortOnRepoFailure(t *testing.T) {
	repo := &stubRepo{storeErr: assert.AnError}
	s := NewService(zap.NewNop(), repo, nil, DefaultConfig())
	ctx := context.Background()
	ic := auditContext(t, "t1")

	assert.NotPanics(t, func() {
		s.LogAccess(ctx, ic, isolation.NewResource("document", "d-1"), "read", true)
	})

	event, err := isolation.NewSecurityEvent(isolation.EventRuleViolation, isolation.SeverityLow, "minor", ic)
	require.NoError(t, err)
	assert.NotPanics(t, func() { s.LogSecurityEvent(ctx, event, nil) })
}

func TestService_PublisherPreferredOverRepo(t *testing.T) {
	repo := &stubRepo{}
	pub := &stubPublisher{accept: true}
	s := NewService(zap.NewNop(), repo, pub, DefaultConfig())
	ctx := context.Background()

	s.LogAccess(ctx, auditContext(t, "t1"), isolation.NewResource("document", "d-1"), "read", true)

	assert.Len(t, pub.published, 1)
	assert.Empty(t, repo.stored)
}

func TestService_PublisherDropSwallowed(t *testing.T) {
	pub := &stubPublisher{accept: false}
	s := NewService(zap.NewNop(), nil, pub, DefaultConfig())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		s.LogAccess(ctx, auditContext(t, "t1"), isolation.NewResource("document", "d-1"), "read", true)
	})

	// The in-memory log still has the entry
	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_LogSecurityEvent_PersistsEvent(t *testing.T) {
	repo := &stubRepo{}
	s := NewService(zap.NewNop(), repo, nil, DefaultConfig())
	ctx := context.Background()
	ic := auditContext(t, "t1")

	event, err := isolation.NewSecurityEvent(isolation.EventAnomalousAccess, isolation.SeverityHigh, "burst", ic)
	require.NoError(t, err)
	s.LogSecurityEvent(ctx, event, map[string]interface{}{"count": int64(42)})

	require.Len(t, repo.stored, 1)
	assert.Equal(t, audit.EntrySecurityEvent, repo.stored[0].Type)
	require.Len(t, repo.storedEvents, 1)
	assert.Same(t, event, repo.storedEvents[0])
}

func TestService_QueryDelegatesToRepo(t *testing.T) {
	repo := &stubRepo{}
	s := NewService(zap.NewNop(), repo, nil, DefaultConfig())

	filter := audit.Filter{TenantID: "t1"}
	_, err := s.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, repo.queried, 1)
	assert.Equal(t, filter, repo.queried[0])
}

func TestService_Configure(t *testing.T) {
	s := NewService(zap.NewNop(), nil, nil, DefaultConfig())
	ctx := context.Background()
	ic := auditContext(t, "t1")

	config := DefaultConfig()
	config.Level = audit.LevelSecurity
	s.Configure(config)

	s.LogOperation(ctx, ic, "export.started", nil)
	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_MemoryBound(t *testing.T) {
	config := DefaultConfig()
	config.MemoryLimit = 2
	s := NewService(zap.NewNop(), nil, nil, config)
	ctx := context.Background()
	ic := auditContext(t, "t1")
	doc := isolation.NewResource("document", "doc-1")

	s.LogAccess(ctx, ic, doc, "read", true)
	s.LogAccess(ctx, ic, doc, "write", true)
	s.LogAccess(ctx, ic, doc, "delete", true)

	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "delete", entries[0].Action)
	assert.Equal(t, "write", entries[1].Action)
}
