package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the isolation layer's metrics
type Registry struct {
	meter metric.Meter

	// Access control
	AccessGrantedCounter metric.Int64Counter
	AccessDeniedCounter  metric.Int64Counter
	EvaluationDuration   metric.Float64Histogram

	// Security monitoring
	AnomalyCounter       metric.Int64Counter
	SecurityEventCounter metric.Int64Counter

	// Context lifecycle
	ContextSwitchCounter metric.Int64Counter
}

// NewRegistry creates the metrics registry on the named meter
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error
	if r.AccessGrantedCounter, err = meter.Int64Counter("isolation.access.granted",
		metric.WithDescription("Access decisions that granted the request")); err != nil {
		return nil, err
	}
	if r.AccessDeniedCounter, err = meter.Int64Counter("isolation.access.denied",
		metric.WithDescription("Access decisions that denied the request")); err != nil {
		return nil, err
	}
	if r.EvaluationDuration, err = meter.Float64Histogram("isolation.access.evaluation_duration",
		metric.WithDescription("Duration of access rule evaluation"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if r.AnomalyCounter, err = meter.Int64Counter("isolation.security.anomalies",
		metric.WithDescription("Anomalous access patterns detected")); err != nil {
		return nil, err
	}
	if r.SecurityEventCounter, err = meter.Int64Counter("isolation.security.events",
		metric.WithDescription("Security events recorded")); err != nil {
		return nil, err
	}
	if r.ContextSwitchCounter, err = meter.Int64Counter("isolation.context.switches",
		metric.WithDescription("Isolation context installations")); err != nil {
		return nil, err
	}

	return r, nil
}

// RecordAccessDecision records one access decision and its evaluation time
func (r *Registry) RecordAccessDecision(ctx context.Context, resourceType, action string, granted bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("resource_type", resourceType),
		attribute.String("action", action),
	)
	if granted {
		r.AccessGrantedCounter.Add(ctx, 1, attrs)
	} else {
		r.AccessDeniedCounter.Add(ctx, 1, attrs)
	}
	r.EvaluationDuration.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
}

// RecordAnomaly records a detected anomaly for a tenant
func (r *Registry) RecordAnomaly(ctx context.Context, tenantID string) {
	r.AnomalyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

// RecordSecurityEvent records one security event by type and severity
func (r *Registry) RecordSecurityEvent(ctx context.Context, eventType, severity string) {
	r.SecurityEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("severity", severity),
	))
}

// RecordContextSwitch records an isolation context installation
func (r *Registry) RecordContextSwitch(ctx context.Context) {
	r.ContextSwitchCounter.Add(ctx, 1)
}
