package audit

// EntryType represents the category of audit entry
type EntryType string

const (
	EntryAccessDecision EntryType = "access.decision"
	EntryOperation      EntryType = "operation.executed"
	EntrySecurityEvent  EntryType = "security.event"
	EntryContextChange  EntryType = "context.changed"
)

// String returns the string representation of the entry type
func (t EntryType) String() string {
	return string(t)
}

// Level controls which entries the audit log records
type Level string

const (
	// LevelAll records every entry
	LevelAll Level = "all"
	// LevelDecisions records access decisions and security events only
	LevelDecisions Level = "decisions"
	// LevelSecurity records security events only
	LevelSecurity Level = "security"
)

// Includes reports whether entries of the given type are recorded at this level
func (l Level) Includes(t EntryType) bool {
	switch l {
	case LevelSecurity:
		return t == EntrySecurityEvent
	case LevelDecisions:
		return t == EntrySecurityEvent || t == EntryAccessDecision
	default:
		return true
	}
}
