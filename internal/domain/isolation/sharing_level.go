package isolation

import "strings"

// SharingLevel represents the derived granularity of an isolation context.
// It is always computed from which identifiers are present on the context,
// never set directly.
type SharingLevel string

const (
	SharingLevelPlatform     SharingLevel = "PLATFORM"
	SharingLevelTenant       SharingLevel = "TENANT"
	SharingLevelOrganization SharingLevel = "ORGANIZATION"
	SharingLevelDepartment   SharingLevel = "DEPARTMENT"
	SharingLevelUser         SharingLevel = "USER"
)

// String returns the string representation of the sharing level
func (s SharingLevel) String() string {
	return string(s)
}

// IsValid returns true if the sharing level is a known value
func (s SharingLevel) IsValid() bool {
	switch s {
	case SharingLevelPlatform, SharingLevelTenant, SharingLevelOrganization,
		SharingLevelDepartment, SharingLevelUser:
		return true
	default:
		return false
	}
}

// ParseSharingLevel converts a string to a SharingLevel, case-insensitive.
// Returns false for unknown values.
func ParseSharingLevel(s string) (SharingLevel, bool) {
	level := SharingLevel(strings.ToUpper(strings.TrimSpace(s)))
	return level, level.IsValid()
}

// Rank returns the specificity rank of the sharing level. Platform is the
// broadest (0), user the most specific (4).
func (s SharingLevel) Rank() int {
	switch s {
	case SharingLevelPlatform:
		return 0
	case SharingLevelTenant:
		return 1
	case SharingLevelOrganization:
		return 2
	case SharingLevelDepartment:
		return 3
	case SharingLevelUser:
		return 4
	default:
		return -1
	}
}

// PermissionTier is the coarse permission level derived from a sharing level
type PermissionTier string

const (
	PermissionTierOwner PermissionTier = "OWNER"
	PermissionTierAdmin PermissionTier = "ADMIN"
	PermissionTierWrite PermissionTier = "WRITE"
	PermissionTierRead  PermissionTier = "READ"
)

// Tier maps a sharing level to its coarse permission tier: platform contexts
// own everything, tenant contexts administer their tenant, organization
// contexts may write, anything more specific is read-only by default.
func (s SharingLevel) Tier() PermissionTier {
	switch s {
	case SharingLevelPlatform:
		return PermissionTierOwner
	case SharingLevelTenant:
		return PermissionTierAdmin
	case SharingLevelOrganization:
		return PermissionTierWrite
	default:
		return PermissionTierRead
	}
}

// deriveSharingLevel computes the sharing level from the most specific
// identifier present.
func deriveSharingLevel(tenantID, organizationID, departmentID, userID string) SharingLevel {
	switch {
	case userID != "":
		return SharingLevelUser
	case departmentID != "":
		return SharingLevelDepartment
	case organizationID != "":
		return SharingLevelOrganization
	case tenantID != "":
		return SharingLevelTenant
	default:
		return SharingLevelPlatform
	}
}
