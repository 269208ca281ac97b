package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

func seedEvent(t *testing.T, m *Monitor, eventType isolation.SecurityEventType, severity isolation.Severity, tenantID string) *isolation.SecurityEvent {
	t.Helper()
	var ic *isolation.Context
	if tenantID != "" {
		var err error
		ic, err = isolation.NewContext(tenantID, "", "", "")
		require.NoError(t, err)
	}
	event, err := isolation.NewSecurityEvent(eventType, severity, "seeded event", ic)
	require.NoError(t, err)
	m.RecordSecurityEvent(context.Background(), event)
	return event
}

func TestMonitor_EventStats(t *testing.T) {
	m, _, _ := newTestMonitor(t, testMonitorConfig())

	seedEvent(t, m, isolation.EventAnomalousAccess, isolation.SeverityHigh, "t1")
	seedEvent(t, m, isolation.EventAnomalousAccess, isolation.SeverityHigh, "t1")
	seedEvent(t, m, isolation.EventRuleViolation, isolation.SeverityLow, "t2")

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	stats := m.EventStats(start, end)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.BySeverity[isolation.SeverityHigh])
	assert.Equal(t, 1, stats.BySeverity[isolation.SeverityLow])
	assert.Equal(t, 2, stats.ByType[isolation.EventAnomalousAccess])
	assert.Equal(t, 2, stats.ByTenant["t1"])
	assert.Equal(t, 1, stats.ByTenant["t2"])
}

func TestMonitor_EventStats_WindowFiltering(t *testing.T) {
	m, _, _ := newTestMonitor(t, testMonitorConfig())
	seedEvent(t, m, isolation.EventRuleViolation, isolation.SeverityLow, "t1")

	past := m.EventStats(time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	assert.Equal(t, 0, past.Total)
}

func TestMonitor_AnomalousAccessReport(t *testing.T) {
	m, _, _ := newTestMonitor(t, testMonitorConfig())

	high := seedEvent(t, m, isolation.EventAnomalousAccess, isolation.SeverityHigh, "t1")
	seedEvent(t, m, isolation.EventRuleViolation, isolation.SeverityLow, "t1")
	critical := seedEvent(t, m, isolation.EventSuspiciousPattern, isolation.SeverityCritical, "t2")

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	report := m.AnomalousAccessReport(start, end)

	assert.Equal(t, 3, report.Stats.Total)
	require.Len(t, report.HighRiskAccess, 2)
	assert.Contains(t, report.HighRiskAccess, high)
	assert.Contains(t, report.HighRiskAccess, critical)
	assert.NotEmpty(t, report.Recommendations)
}

func TestMonitor_AnomalousAccessReport_NoAnomalies(t *testing.T) {
	m, _, _ := newTestMonitor(t, testMonitorConfig())
	seedEvent(t, m, isolation.EventRuleViolation, isolation.SeverityLow, "t1")

	report := m.AnomalousAccessReport(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	assert.Empty(t, report.HighRiskAccess)
	assert.Empty(t, report.Recommendations)
}
