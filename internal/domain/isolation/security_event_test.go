package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecurityEvent(t *testing.T) {
	ic, err := NewContext("t1", "", "", "")
	require.NoError(t, err)

	event, err := NewSecurityEvent(EventAnomalousAccess, SeverityHigh, "too many attempts", ic)
	require.NoError(t, err)
	assert.Equal(t, "t1", event.Context.TenantID)
	assert.False(t, event.IsCritical())

	t.Run("nil context yields platform-scope snapshot", func(t *testing.T) {
		event, err := NewSecurityEvent(EventRuleViolation, SeverityLow, "something", nil)
		require.NoError(t, err)
		assert.Equal(t, ContextSnapshot{}, event.Context)
	})

	t.Run("missing type rejected", func(t *testing.T) {
		_, err := NewSecurityEvent("", SeverityHigh, "desc", ic)
		assert.Error(t, err)
	})

	t.Run("unknown severity rejected", func(t *testing.T) {
		_, err := NewSecurityEvent(EventAnomalousAccess, Severity("EXTREME"), "desc", ic)
		assert.Error(t, err)
	})

	t.Run("missing description rejected", func(t *testing.T) {
		_, err := NewSecurityEvent(EventAnomalousAccess, SeverityHigh, "", ic)
		assert.Error(t, err)
	})
}

func TestSecurityEvent_WithDetail(t *testing.T) {
	event, err := NewSecurityEvent(EventSuspiciousPattern, SeverityMedium, "odd hours", nil)
	require.NoError(t, err)

	event.Details = nil
	event.WithDetail("hour", 3).WithDetail("resource_type", "document")
	assert.Equal(t, 3, event.Details["hour"])
	assert.Equal(t, "document", event.Details["resource_type"])
}

func TestSecurityEvent_IsCritical(t *testing.T) {
	event, err := NewSecurityEvent(EventContextViolation, SeverityCritical, "context forged", nil)
	require.NoError(t, err)
	assert.True(t, event.IsCritical())
}

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityLow.AtLeast(SeverityLow))
	assert.False(t, Severity("BOGUS").AtLeast(SeverityLow))
}
