package isolation

import (
	"sync"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
)

// Resource is a typed descriptor for anything an access decision is made
// about. Attributes carry the fields rule conditions can probe beyond the
// context itself.
type Resource struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewResource creates a resource descriptor
func NewResource(resourceType, id string) Resource {
	return Resource{Type: resourceType, ID: id}
}

// Attribute returns the named attribute, or "" when absent
func (r Resource) Attribute(name string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[name]
}

// Hierarchy maps resource types to the sharing level at which they live.
// It replaces the implicit "tenant:"/"org:" name-prefix convention with an
// explicit mapping validated at registration time. Resource types that were
// never registered deny by default.
type Hierarchy struct {
	mu     sync.RWMutex
	levels map[string]SharingLevel
}

// NewHierarchy creates an empty resource hierarchy
func NewHierarchy() *Hierarchy {
	return &Hierarchy{levels: make(map[string]SharingLevel)}
}

// Register declares the hierarchy level of a resource type. Registering the
// same type twice with a different level is a configuration conflict.
func (h *Hierarchy) Register(resourceType string, level SharingLevel) error {
	if resourceType == "" {
		return errors.NewValidationError("MISSING_RESOURCE_TYPE", "resource type is required")
	}
	if !level.IsValid() {
		return errors.NewValidationError("INVALID_HIERARCHY_LEVEL",
			"unknown hierarchy level: "+level.String())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.levels[resourceType]; ok && existing != level {
		return errors.NewConflictError("resource type already registered at a different level")
	}
	h.levels[resourceType] = level
	return nil
}

// Level returns the registered hierarchy level of a resource type
func (h *Hierarchy) Level(resourceType string) (SharingLevel, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	level, ok := h.levels[resourceType]
	return level, ok
}

// Visible reports whether a context at the given sharing level may see
// resources of the given type under default access. Platform contexts see
// everything; other contexts see resource types at their own level or any
// broader non-platform level.
func (h *Hierarchy) Visible(contextLevel SharingLevel, resourceType string) bool {
	if !contextLevel.IsValid() {
		return false
	}
	if contextLevel == SharingLevelPlatform {
		return true
	}

	resourceLevel, ok := h.Level(resourceType)
	if !ok {
		return false
	}
	if resourceLevel == SharingLevelPlatform {
		return false
	}
	return resourceLevel.Rank() <= contextLevel.Rank()
}
