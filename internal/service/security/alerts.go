package security

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// LogAlertDispatcher is the default AlertDispatcher: it writes critical
// alerts to the structured log, throttled so an event storm cannot flood
// the sink. Throttled alerts return an error which the monitor catches and
// logs; alert delivery is never allowed to escalate.
type LogAlertDispatcher struct {
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewLogAlertDispatcher creates a dispatcher allowing alertsPerSecond with
// the given burst
func NewLogAlertDispatcher(logger *zap.Logger, alertsPerSecond float64, burst int) *LogAlertDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alertsPerSecond <= 0 {
		alertsPerSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &LogAlertDispatcher{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(alertsPerSecond), burst),
	}
}

// Dispatch delivers one alert, or reports throttling
func (d *LogAlertDispatcher) Dispatch(_ context.Context, event *isolation.SecurityEvent) error {
	if !d.limiter.Allow() {
		return errors.NewExternalError("alerting", "alert rate limit exceeded, alert dropped")
	}

	d.logger.Error("SECURITY ALERT",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.Type.String()),
		zap.String("severity", event.Severity.String()),
		zap.String("description", event.Description),
		zap.String("tenant_id", event.Context.TenantID),
		zap.String("user_id", event.Context.UserID),
		zap.Any("details", event.Details))
	return nil
}
