package isolation

import (
	"time"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
)

// Context represents the tenant/organization/department/user scope under
// which an operation executes. Contexts are immutable value objects:
// "updates" always produce a new context via Clone or Merge, and the sharing
// level is recomputed from the identifiers on every construction path.
type Context struct {
	TenantID       string       `json:"tenant_id,omitempty"`
	OrganizationID string       `json:"organization_id,omitempty"`
	DepartmentID   string       `json:"department_id,omitempty"`
	UserID         string       `json:"user_id,omitempty"`
	SharingLevel   SharingLevel `json:"sharing_level"`
	IsShared       bool         `json:"is_shared"`
	AccessRules    []AccessRule `json:"access_rules,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewContext creates a new isolation context. Identifiers must be supplied
// outside-in: a more specific identifier without its parent is rejected.
// Empty strings mean "not set". No identifiers at all yields a platform
// context.
func NewContext(tenantID, organizationID, departmentID, userID string) (*Context, error) {
	if err := validateHierarchy(tenantID, organizationID, departmentID, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Context{
		TenantID:       tenantID,
		OrganizationID: organizationID,
		DepartmentID:   departmentID,
		UserID:         userID,
		SharingLevel:   deriveSharingLevel(tenantID, organizationID, departmentID, userID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewPlatformContext creates a context with no identifiers set
func NewPlatformContext() *Context {
	ctx, _ := NewContext("", "", "", "")
	return ctx
}

// Validate checks the structural invariants of the context: consistent
// identifier hierarchy, a derived sharing level matching the identifiers,
// and UpdatedAt never before CreatedAt.
func (c *Context) Validate() error {
	if c == nil {
		return errors.NewValidationError("NIL_CONTEXT", "isolation context is nil")
	}
	if err := validateHierarchy(c.TenantID, c.OrganizationID, c.DepartmentID, c.UserID); err != nil {
		return err
	}
	if derived := deriveSharingLevel(c.TenantID, c.OrganizationID, c.DepartmentID, c.UserID); c.SharingLevel != derived {
		return errors.NewValidationError("SHARING_LEVEL_MISMATCH",
			"sharing level does not match identifiers")
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		return errors.NewValidationError("INCONSISTENT_TIMESTAMPS",
			"updated_at must not precede created_at")
	}
	return nil
}

// IsPlatform returns true if the context has no identifiers set
func (c *Context) IsPlatform() bool {
	return c.SharingLevel == SharingLevelPlatform
}

// Clone creates a deep copy of the context. The copy carries a fresh
// UpdatedAt so a subsequent mutation-by-copy keeps the timestamp invariant.
func (c *Context) Clone() *Context {
	clone := *c
	clone.UpdatedAt = time.Now().UTC()
	if c.AccessRules != nil {
		clone.AccessRules = make([]AccessRule, len(c.AccessRules))
		copy(clone.AccessRules, c.AccessRules)
	}
	return &clone
}

// Patch describes overrides applied when cloning a context. Nil fields leave
// the base value untouched; non-nil empty strings clear the field.
type Patch struct {
	TenantID       *string
	OrganizationID *string
	DepartmentID   *string
	UserID         *string
	IsShared       *bool
}

// CloneWith produces a new context from the base with the patch applied.
// The sharing level is recomputed and the hierarchy revalidated.
func (c *Context) CloneWith(patch Patch) (*Context, error) {
	clone := c.Clone()
	if patch.TenantID != nil {
		clone.TenantID = *patch.TenantID
	}
	if patch.OrganizationID != nil {
		clone.OrganizationID = *patch.OrganizationID
	}
	if patch.DepartmentID != nil {
		clone.DepartmentID = *patch.DepartmentID
	}
	if patch.UserID != nil {
		clone.UserID = *patch.UserID
	}
	if patch.IsShared != nil {
		clone.IsShared = *patch.IsShared
	}
	if err := validateHierarchy(clone.TenantID, clone.OrganizationID, clone.DepartmentID, clone.UserID); err != nil {
		return nil, err
	}
	clone.SharingLevel = deriveSharingLevel(clone.TenantID, clone.OrganizationID, clone.DepartmentID, clone.UserID)
	return clone, nil
}

// Merge produces a new context where every non-empty identifier of override
// replaces the corresponding field of base. The sharing level is recomputed
// from the merged result, never copied from either input.
func Merge(base, override *Context) (*Context, error) {
	if base == nil || override == nil {
		return nil, errors.NewValidationError("NIL_CONTEXT", "both contexts are required for merge")
	}

	merged := base.Clone()
	if override.TenantID != "" {
		merged.TenantID = override.TenantID
	}
	if override.OrganizationID != "" {
		merged.OrganizationID = override.OrganizationID
	}
	if override.DepartmentID != "" {
		merged.DepartmentID = override.DepartmentID
	}
	if override.UserID != "" {
		merged.UserID = override.UserID
	}
	if override.IsShared {
		merged.IsShared = true
	}
	if len(override.AccessRules) > 0 {
		merged.AccessRules = append(merged.AccessRules, override.AccessRules...)
	}

	if err := validateHierarchy(merged.TenantID, merged.OrganizationID, merged.DepartmentID, merged.UserID); err != nil {
		return nil, err
	}
	merged.SharingLevel = deriveSharingLevel(merged.TenantID, merged.OrganizationID, merged.DepartmentID, merged.UserID)
	return merged, nil
}

// ScopeIDs returns the identifier tuple of the context for data filtering
func (c *Context) ScopeIDs() ScopeIDs {
	return ScopeIDs{
		TenantID:       c.TenantID,
		OrganizationID: c.OrganizationID,
		DepartmentID:   c.DepartmentID,
		UserID:         c.UserID,
	}
}

// Snapshot captures the identifying fields of the context at a point in
// time, for embedding in security events and audit entries.
func (c *Context) Snapshot() ContextSnapshot {
	if c == nil {
		return ContextSnapshot{}
	}
	return ContextSnapshot{
		TenantID:       c.TenantID,
		OrganizationID: c.OrganizationID,
		DepartmentID:   c.DepartmentID,
		UserID:         c.UserID,
		SharingLevel:   c.SharingLevel,
	}
}

// ContextSnapshot is the immutable record of a context embedded in events
type ContextSnapshot struct {
	TenantID       string       `json:"tenant_id,omitempty"`
	OrganizationID string       `json:"organization_id,omitempty"`
	DepartmentID   string       `json:"department_id,omitempty"`
	UserID         string       `json:"user_id,omitempty"`
	SharingLevel   SharingLevel `json:"sharing_level,omitempty"`
}

// ScopeIDs is the identifier tuple used when filtering data sets against a
// context. Implemented by domain entities that carry isolation identifiers.
type ScopeIDs struct {
	TenantID       string `json:"tenant_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	DepartmentID   string `json:"department_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// Scoped is implemented by anything that can report its isolation scope
type Scoped interface {
	ScopeIDs() ScopeIDs
}

// validateHierarchy rejects identifier sets supplied inside-out: every
// identifier implies its parent must also be present.
func validateHierarchy(tenantID, organizationID, departmentID, userID string) error {
	if tenantID == "" && (organizationID != "" || departmentID != "" || userID != "") {
		return errors.NewValidationError("MISSING_TENANT_ID",
			"tenant ID is required when more specific identifiers are set")
	}
	if organizationID == "" && (departmentID != "" || userID != "") {
		return errors.ErrInvalidHierarchy
	}
	if departmentID == "" && userID != "" {
		return errors.ErrInvalidHierarchy
	}
	return nil
}
