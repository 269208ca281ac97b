package security

import (
	"time"

	"github.com/samber/lo"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// EventStats aggregates security events within a time window
type EventStats struct {
	Start      time.Time                           `json:"start"`
	End        time.Time                           `json:"end"`
	Total      int                                 `json:"total"`
	BySeverity map[isolation.Severity]int          `json:"by_severity"`
	ByType     map[isolation.SecurityEventType]int `json:"by_type"`
	ByTenant   map[string]int                      `json:"by_tenant"`
}

// AnomalousAccessReport extends the stats with high-risk entries and
// remediation recommendations
type AnomalousAccessReport struct {
	Stats           EventStats                 `json:"stats"`
	HighRiskAccess  []*isolation.SecurityEvent `json:"high_risk_access"`
	Recommendations []string                   `json:"recommendations"`
}

// EventStats aggregates the in-memory event log over [start, end] by
// severity, type, and tenant.
func (m *Monitor) EventStats(start, end time.Time) EventStats {
	events := m.eventsInWindow(start, end)

	return EventStats{
		Start:      start,
		End:        end,
		Total:      len(events),
		BySeverity: lo.CountValuesBy(events, func(e *isolation.SecurityEvent) isolation.Severity { return e.Severity }),
		ByType:     lo.CountValuesBy(events, func(e *isolation.SecurityEvent) isolation.SecurityEventType { return e.Type }),
		ByTenant:   lo.CountValuesBy(events, func(e *isolation.SecurityEvent) string { return e.Context.TenantID }),
	}
}

// AnomalousAccessReport builds the anomaly report for [start, end]: the
// aggregate stats, every HIGH/CRITICAL event as a high-risk access entry,
// and static remediation recommendations when any anomaly is present.
func (m *Monitor) AnomalousAccessReport(start, end time.Time) AnomalousAccessReport {
	events := m.eventsInWindow(start, end)

	highRisk := lo.Filter(events, func(e *isolation.SecurityEvent, _ int) bool {
		return e.Severity.AtLeast(isolation.SeverityHigh)
	})

	anomalies := lo.Filter(events, func(e *isolation.SecurityEvent, _ int) bool {
		return e.Type == isolation.EventAnomalousAccess || e.Type == isolation.EventSuspiciousPattern
	})

	report := AnomalousAccessReport{
		Stats:          m.EventStats(start, end),
		HighRiskAccess: highRisk,
	}
	if len(anomalies) > 0 {
		report.Recommendations = remediationRecommendations()
	}
	return report
}

func (m *Monitor) eventsInWindow(start, end time.Time) []*isolation.SecurityEvent {
	all := m.Events()
	return lo.Filter(all, func(e *isolation.SecurityEvent, _ int) bool {
		if !start.IsZero() && e.Timestamp.Before(start) {
			return false
		}
		if !end.IsZero() && e.Timestamp.After(end) {
			return false
		}
		return true
	})
}

func remediationRecommendations() []string {
	return []string{
		"Review access rules for the affected resource types and tighten conditions",
		"Rotate credentials for users involved in anomalous access",
		"Lower the anomaly threshold or shorten the time window if flooding persists",
		"Verify the time-of-day window matches the tenant's expected usage hours",
	}
}
