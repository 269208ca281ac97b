package security

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// AnomalyThresholds configures when repeated access attempts are flagged
type AnomalyThresholds struct {
	MaxAccessAttempts int64              `json:"max_access_attempts"`
	TimeWindow        time.Duration      `json:"time_window"`
	RiskLevels        map[string]float64 `json:"risk_levels,omitempty"`
}

// Config holds the security monitor configuration
type Config struct {
	Thresholds AnomalyThresholds

	// AllowedHourStart/End define the expected time-of-day access window
	// (hours, 0-23). Equal values disable the heuristic.
	AllowedHourStart int
	AllowedHourEnd   int

	// EventHistorySize bounds the in-memory security event log
	EventHistorySize int

	// FlaggedKeyLimit bounds the threshold-crossing dedup cache
	FlaggedKeyLimit int
}

// DefaultConfig returns monitor defaults
func DefaultConfig() Config {
	return Config{
		Thresholds: AnomalyThresholds{
			MaxAccessAttempts: 100,
			TimeWindow:        1 * time.Minute,
			RiskLevels: map[string]float64{
				"low":      0.3,
				"medium":   0.6,
				"high":     0.8,
				"critical": 0.95,
			},
		},
		EventHistorySize: 10000,
		FlaggedKeyLimit:  4096,
	}
}

// AuditSink persists security events. Implementations are best-effort and
// must never return storage failures into the monitoring path.
type AuditSink interface {
	LogSecurityEvent(ctx context.Context, event *isolation.SecurityEvent, details map[string]interface{})
}

// AlertDispatcher delivers alerts for critical events
type AlertDispatcher interface {
	Dispatch(ctx context.Context, event *isolation.SecurityEvent) error
}

// Monitor tracks access-attempt counters, evaluates monitoring rules,
// detects anomalies, and records security events. All recording paths are
// advisory: failures are logged and swallowed, never escalated to the
// access decision.
type Monitor struct {
	logger  *zap.Logger
	config  Config
	counter AttemptCounter
	audit   AuditSink
	alerts  AlertDispatcher
	now     func() time.Time

	rulesMu sync.RWMutex
	rules   []*isolation.MonitoringRule

	eventsMu sync.Mutex
	events   []*isolation.SecurityEvent

	// flagged dedups threshold crossings so each crossing records exactly
	// one event per window
	flagged *lru.Cache[string, time.Time]
}

// NewMonitor creates a security monitor. The audit sink and alert
// dispatcher may be nil; a nil counter gets an in-memory one.
func NewMonitor(logger *zap.Logger, config Config, counter AttemptCounter, audit AuditSink, alerts AlertDispatcher) (*Monitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Thresholds.MaxAccessAttempts <= 0 {
		config.Thresholds.MaxAccessAttempts = DefaultConfig().Thresholds.MaxAccessAttempts
	}
	if config.Thresholds.TimeWindow <= 0 {
		config.Thresholds.TimeWindow = DefaultConfig().Thresholds.TimeWindow
	}
	if config.EventHistorySize <= 0 {
		config.EventHistorySize = DefaultConfig().EventHistorySize
	}
	if config.FlaggedKeyLimit <= 0 {
		config.FlaggedKeyLimit = DefaultConfig().FlaggedKeyLimit
	}
	if counter == nil {
		var err error
		counter, err = NewMemoryCounter(config.FlaggedKeyLimit)
		if err != nil {
			return nil, errors.NewInternalError("failed to create attempt counter").WithCause(err)
		}
	}
	flagged, err := lru.New[string, time.Time](config.FlaggedKeyLimit)
	if err != nil {
		return nil, errors.NewInternalError("failed to create dedup cache").WithCause(err)
	}

	return &Monitor{
		logger:  logger,
		config:  config,
		counter: counter,
		audit:   audit,
		alerts:  alerts,
		now:     time.Now,
		flagged: flagged,
	}, nil
}

// AddRule registers a monitoring rule evaluated on matching access attempts
func (m *Monitor) AddRule(rule *isolation.MonitoringRule) error {
	if rule == nil {
		return errors.NewValidationError("NIL_RULE", "monitoring rule is required")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

// Rules returns a copy of the registered monitoring rules
func (m *Monitor) Rules() []*isolation.MonitoringRule {
	m.rulesMu.RLock()
	defer m.rulesMu.RUnlock()
	out := make([]*isolation.MonitoringRule, len(m.rules))
	copy(out, m.rules)
	return out
}

// MonitorAccess records an access attempt: increments the per-key counter,
// evaluates monitoring rules whose type matches the action's category, and
// unconditionally logs the attempt.
func (m *Monitor) MonitorAccess(ctx context.Context, ic *isolation.Context, resource isolation.Resource, action string) {
	if ic == nil {
		return
	}

	key := attemptKey(ic, resource, action)
	count, err := m.counter.Increment(ctx, key, m.config.Thresholds.TimeWindow)
	if err != nil {
		m.logger.Warn("attempt counter increment failed",
			zap.String("key", key.String()),
			zap.Error(err))
	}

	// Aggregate counter across actions feeds anomaly detection
	if _, err := m.counter.Increment(ctx, aggregateKey(ic, resource), m.config.Thresholds.TimeWindow); err != nil {
		m.logger.Warn("aggregate counter increment failed", zap.Error(err))
	}

	category := ActionCategory(action)
	m.rulesMu.RLock()
	rules := make([]*isolation.MonitoringRule, len(m.rules))
	copy(rules, m.rules)
	m.rulesMu.RUnlock()

	for _, rule := range rules {
		if !rule.AppliesTo(category) {
			continue
		}
		m.evaluateRule(ctx, rule, ic, resource, action, count)
	}

	m.logger.Debug("access attempt monitored",
		zap.String("tenant_id", ic.TenantID),
		zap.String("user_id", ic.UserID),
		zap.String("resource_type", resource.Type),
		zap.String("resource_id", resource.ID),
		zap.String("action", action),
		zap.Int64("window_count", count))
}

// DetectAnomalousAccess returns true when the aggregate attempt counter for
// the context/resource key exceeds the configured maximum, recording one
// HIGH-severity event per threshold crossing, or when a secondary heuristic
// (access outside the expected time-of-day window) triggers, recording a
// MEDIUM-severity event.
func (m *Monitor) DetectAnomalousAccess(ctx context.Context, ic *isolation.Context, resource isolation.Resource) bool {
	if ic == nil {
		return false
	}

	key := aggregateKey(ic, resource)
	count, err := m.counter.Count(ctx, key, m.config.Thresholds.TimeWindow)
	if err != nil {
		m.logger.Warn("attempt counter read failed", zap.Error(err))
		return false
	}

	if count > m.config.Thresholds.MaxAccessAttempts {
		if m.flagOnce("anomaly:" + key.String()) {
			event, err := isolation.NewSecurityEvent(
				isolation.EventAnomalousAccess,
				isolation.SeverityHigh,
				"access attempt count exceeded anomaly threshold",
				ic,
			)
			if err == nil {
				event.WithDetail("resource_type", resource.Type).
					WithDetail("resource_id", resource.ID).
					WithDetail("attempt_count", count).
					WithDetail("max_attempts", m.config.Thresholds.MaxAccessAttempts).
					WithDetail("window", m.config.Thresholds.TimeWindow.String())
				m.RecordSecurityEvent(ctx, event)
			}
		}
		return true
	}

	if m.outsideAllowedHours() {
		if m.flagOnce("hours:" + key.String()) {
			event, err := isolation.NewSecurityEvent(
				isolation.EventSuspiciousPattern,
				isolation.SeverityMedium,
				"access outside expected time-of-day window",
				ic,
			)
			if err == nil {
				event.WithDetail("resource_type", resource.Type).
					WithDetail("hour", m.now().UTC().Hour()).
					WithDetail("allowed_start", m.config.AllowedHourStart).
					WithDetail("allowed_end", m.config.AllowedHourEnd)
				m.RecordSecurityEvent(ctx, event)
			}
		}
		return true
	}

	return false
}

// RecordSecurityEvent appends the event to the bounded in-memory log,
// persists it through the audit sink, logs it, and dispatches an alert when
// the severity is CRITICAL. Dispatch failures are caught and logged.
func (m *Monitor) RecordSecurityEvent(ctx context.Context, event *isolation.SecurityEvent) {
	if event == nil {
		return
	}

	m.eventsMu.Lock()
	m.events = append(m.events, event)
	if len(m.events) > m.config.EventHistorySize {
		m.events = m.events[len(m.events)-m.config.EventHistorySize:]
	}
	m.eventsMu.Unlock()

	if m.audit != nil {
		m.audit.LogSecurityEvent(ctx, event, event.Details)
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.Type.String()),
		zap.String("severity", event.Severity.String()),
		zap.String("tenant_id", event.Context.TenantID),
		zap.String("user_id", event.Context.UserID),
	}
	switch event.Severity {
	case isolation.SeverityCritical, isolation.SeverityHigh:
		m.logger.Warn(event.Description, fields...)
	default:
		m.logger.Info(event.Description, fields...)
	}

	if event.IsCritical() && m.alerts != nil {
		if err := m.alerts.Dispatch(ctx, event); err != nil {
			m.logger.Error("alert dispatch failed",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}
}

// Events returns a copy of the in-memory security event log, oldest first
func (m *Monitor) Events() []*isolation.SecurityEvent {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	out := make([]*isolation.SecurityEvent, len(m.events))
	copy(out, m.events)
	return out
}

// evaluateRule applies one monitoring rule to a live attempt count
func (m *Monitor) evaluateRule(ctx context.Context, rule *isolation.MonitoringRule, ic *isolation.Context, resource isolation.Resource, action string, count int64) {
	switch rule.Condition {
	case "frequency":
		if float64(count) <= rule.Threshold {
			return
		}
		dedupKey := "rule:" + rule.ID.String() + ":" + attemptKey(ic, resource, action).String()
		if !m.flagOnce(dedupKey) {
			return
		}
		event, err := isolation.NewSecurityEvent(
			isolation.EventRuleViolation,
			rule.AlertLevel,
			"monitoring rule threshold exceeded: "+rule.Name,
			ic,
		)
		if err != nil {
			return
		}
		event.WithDetail("rule_id", rule.ID.String()).
			WithDetail("rule_name", rule.Name).
			WithDetail("condition", rule.Condition).
			WithDetail("threshold", rule.Threshold).
			WithDetail("observed", count).
			WithDetail("resource_type", resource.Type).
			WithDetail("action", action)
		m.RecordSecurityEvent(ctx, event)

	case "time_of_day":
		if !m.outsideAllowedHours() {
			return
		}
		dedupKey := "rule:" + rule.ID.String() + ":" + aggregateKey(ic, resource).String()
		if !m.flagOnce(dedupKey) {
			return
		}
		event, err := isolation.NewSecurityEvent(
			isolation.EventRuleViolation,
			rule.AlertLevel,
			"monitoring rule time window violated: "+rule.Name,
			ic,
		)
		if err != nil {
			return
		}
		event.WithDetail("rule_id", rule.ID.String()).
			WithDetail("rule_name", rule.Name).
			WithDetail("condition", rule.Condition)
		m.RecordSecurityEvent(ctx, event)

	default:
		m.logger.Debug("unknown monitoring condition skipped",
			zap.String("rule_name", rule.Name),
			zap.String("condition", rule.Condition))
	}
}

// flagOnce returns true the first time a key is flagged within the
// configured time window
func (m *Monitor) flagOnce(key string) bool {
	now := m.now()
	if last, ok := m.flagged.Get(key); ok && now.Sub(last) < m.config.Thresholds.TimeWindow {
		return false
	}
	m.flagged.Add(key, now)
	return true
}

func (m *Monitor) outsideAllowedHours() bool {
	start, end := m.config.AllowedHourStart, m.config.AllowedHourEnd
	if start == end {
		return false
	}
	hour := m.now().UTC().Hour()
	if start < end {
		return hour < start || hour >= end
	}
	// Window wraps midnight
	return hour < start && hour >= end
}

// ActionCategory maps an action name to the monitoring rule type it falls
// under
func ActionCategory(action string) isolation.MonitoringRuleType {
	switch {
	case strings.HasPrefix(action, "permission") || action == "grant" || action == "revoke":
		return isolation.MonitoringTypePermission
	case action == "read" || action == "list" || action == "query" || action == "export":
		return isolation.MonitoringTypeData
	case strings.HasPrefix(action, "security"):
		return isolation.MonitoringTypeSecurity
	default:
		return isolation.MonitoringTypeAccess
	}
}

func attemptKey(ic *isolation.Context, resource isolation.Resource, action string) AttemptKey {
	return AttemptKey{
		TenantID:     ic.TenantID,
		UserID:       ic.UserID,
		ResourceType: resource.Type,
		Action:       action,
	}
}

// aggregateKey collapses the action dimension so anomaly detection sees the
// whole attempt stream for a context/resource pair
func aggregateKey(ic *isolation.Context, resource isolation.Resource) AttemptKey {
	return AttemptKey{
		TenantID:     ic.TenantID,
		UserID:       ic.UserID,
		ResourceType: resource.Type,
		Action:       "*",
	}
}
