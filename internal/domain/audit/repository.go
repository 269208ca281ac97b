package audit

import (
	"context"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// Repository is the persistence collaborator for audit entries and security
// events. Implementations live in infrastructure; all callers treat writes
// as best-effort and never propagate storage failures into the business
// operation that triggered the write.
type Repository interface {
	// Store persists a single audit entry
	Store(ctx context.Context, entry *Entry) error

	// Query returns entries matching the equality filters, newest first
	Query(ctx context.Context, filter Filter) ([]*Entry, error)

	// StoreSecurityEvent persists a security event
	StoreSecurityEvent(ctx context.Context, event *isolation.SecurityEvent) error

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}
