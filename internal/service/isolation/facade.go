package isolation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
	"github.com/davidleathers/tenant-isolation-core/internal/metrics"
	"github.com/davidleathers/tenant-isolation-core/internal/service/accesscontrol"
	"github.com/davidleathers/tenant-isolation-core/internal/service/auditlog"
	"github.com/davidleathers/tenant-isolation-core/internal/service/contextmgr"
	"github.com/davidleathers/tenant-isolation-core/internal/service/security"
)

// Service is the isolation facade consumed by request handlers: establish a
// context for a unit of work, gate every resource access, post-filter
// result sets, and inject isolation predicates into downstream queries.
// Every access decision is unconditionally reported to both the audit log
// and the security monitor, regardless of outcome.
type Service struct {
	logger   *zap.Logger
	contexts *contextmgr.Manager
	engine   *accesscontrol.Engine
	monitor  *security.Monitor
	auditor  *auditlog.Service
	metrics  *metrics.Registry
}

// NewService composes the isolation facade from its collaborators
func NewService(
	logger *zap.Logger,
	contexts *contextmgr.Manager,
	engine *accesscontrol.Engine,
	monitor *security.Monitor,
	auditor *auditlog.Service,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:   logger,
		contexts: contexts,
		engine:   engine,
		monitor:  monitor,
		auditor:  auditor,
	}
}

// CreateContext creates a validated isolation context
func (s *Service) CreateContext(tenantID, organizationID, departmentID, userID string) (*isolation.Context, error) {
	return isolation.NewContext(tenantID, organizationID, departmentID, userID)
}

// WithMetrics attaches a metrics registry; decisions and anomalies are
// recorded from then on
func (s *Service) WithMetrics(registry *metrics.Registry) *Service {
	s.metrics = registry
	return s
}

// SetCurrentContext installs the current context for a sequential unit of
// work, pushing the prior one onto the bounded history
func (s *Service) SetCurrentContext(ic *isolation.Context) error {
	if err := s.contexts.Set(ic); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordContextSwitch(context.Background())
	}
	return nil
}

// CurrentContext returns the current sequential context, or nil
func (s *Service) CurrentContext() *isolation.Context {
	return s.contexts.Current()
}

// ClearContext discards the current sequential context
func (s *Service) ClearContext() {
	s.contexts.Clear()
}

// WithContext runs fn with ic installed as the current context, restoring
// the prior context on every exit path
func (s *Service) WithContext(ic *isolation.Context, fn func() error) error {
	return s.contexts.WithContext(ic, fn)
}

// Bind attaches the isolation context to a context.Context for concurrent
// propagation
func (s *Service) Bind(ctx context.Context, ic *isolation.Context) context.Context {
	return contextmgr.With(ctx, ic)
}

// ValidateAccess evaluates an access decision for an explicit context, then
// unconditionally records the attempt in the audit log and the security
// monitor. A denial is as interesting as a grant.
func (s *Service) ValidateAccess(ctx context.Context, ic *isolation.Context, resource isolation.Resource, action string) bool {
	start := time.Now()
	granted := s.engine.CheckResourceAccess(ctx, ic, resource, action)

	if s.metrics != nil {
		s.metrics.RecordAccessDecision(ctx, resource.Type, action, granted, time.Since(start))
	}

	s.auditor.LogAccess(ctx, ic, resource, action, granted)
	s.monitor.MonitorAccess(ctx, ic, resource, action)

	return granted
}

// ValidateBatchAccess evaluates each request independently, recording every
// item's decision in the audit log and the security monitor
func (s *Service) ValidateBatchAccess(ctx context.Context, ic *isolation.Context, requests []accesscontrol.AccessRequest) []accesscontrol.BatchResult {
	results := make([]accesscontrol.BatchResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, accesscontrol.BatchResult{
			Resource: req.Resource,
			Action:   req.Action,
			Granted:  s.ValidateAccess(ctx, ic, req.Resource, req.Action),
		})
	}
	return results
}

// ValidateAccessWithContext evaluates an access decision under the ambient
// context. It fails with ErrNoIsolationContext when no context is carried
// on ctx and none is set on the manager, fatal to the calling operation.
func (s *Service) ValidateAccessWithContext(ctx context.Context, resource isolation.Resource, action string) (bool, error) {
	ic, err := s.ambient(ctx)
	if err != nil {
		return false, err
	}
	return s.ValidateAccess(ctx, ic, resource, action), nil
}

// CheckPermissionWithContext summarizes the ambient context's effective
// permissions. Fails with ErrNoIsolationContext when no context is
// available.
func (s *Service) CheckPermissionWithContext(ctx context.Context) (*accesscontrol.PermissionSummary, error) {
	ic, err := s.ambient(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.PermissionSummary(ic), nil
}

// ApplyIsolationFilter injects the context's identifiers into a storage
// query for pushdown
func (s *Service) ApplyIsolationFilter(query accesscontrol.QueryFilter, ic *isolation.Context) accesscontrol.QueryFilter {
	return accesscontrol.ApplyIsolationFilter(query, ic)
}

// LogOperation records a business operation under a context
func (s *Service) LogOperation(ctx context.Context, ic *isolation.Context, operation string, details map[string]interface{}) {
	s.auditor.LogOperation(ctx, ic, operation, details)
}

// LogSecurityEvent records a security event through the monitor, which
// persists, logs, and alerts as severity requires
func (s *Service) LogSecurityEvent(ctx context.Context, event *isolation.SecurityEvent) {
	if s.metrics != nil && event != nil {
		s.metrics.RecordSecurityEvent(ctx, event.Type.String(), event.Severity.String())
	}
	s.monitor.RecordSecurityEvent(ctx, event)
}

// DetectAnomalies checks the live attempt counters and heuristics for the
// context/resource pair
func (s *Service) DetectAnomalies(ctx context.Context, ic *isolation.Context, resource isolation.Resource) bool {
	anomalous := s.monitor.DetectAnomalousAccess(ctx, ic, resource)
	if anomalous && s.metrics != nil && ic != nil {
		s.metrics.RecordAnomaly(ctx, ic.TenantID)
	}
	return anomalous
}

// Engine exposes the access control engine for rule configuration
func (s *Service) Engine() *accesscontrol.Engine {
	return s.engine
}

// Monitor exposes the security monitor for rule configuration and reports
func (s *Service) Monitor() *security.Monitor {
	return s.monitor
}

// Audit exposes the audit log for queries and reconfiguration
func (s *Service) Audit() *auditlog.Service {
	return s.auditor
}

// ambient resolves the isolation context for operations that require one:
// the context.Context value wins, the manager's current context is the
// sequential fallback, and absence is the named fatal error.
func (s *Service) ambient(ctx context.Context) (*isolation.Context, error) {
	if ic, ok := contextmgr.From(ctx); ok {
		return ic, nil
	}
	if ic := s.contexts.Current(); ic != nil {
		return ic, nil
	}
	return nil, errors.ErrNoIsolationContext
}

// FilterData returns only the items visible from the context. Identifiers
// absent on the context act as wildcards.
func FilterData[T isolation.Scoped](items []T, ic *isolation.Context) []T {
	return accesscontrol.FilterData(items, ic)
}
