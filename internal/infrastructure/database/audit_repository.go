package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// AuditRepository implements audit.Repository on PostgreSQL. Audit entries
// and security events land in separate tables; both carry the isolation
// context snapshot denormalized into indexed columns for filtered queries.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a PostgreSQL audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the audit tables when they do not exist
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id UUID PRIMARY KEY,
			entry_type TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			tenant_id TEXT NOT NULL DEFAULT '',
			organization_id TEXT NOT NULL DEFAULT '',
			department_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			sharing_level TEXT NOT NULL DEFAULT '',
			resource_type TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '',
			granted BOOLEAN,
			operation TEXT NOT NULL DEFAULT '',
			security_event_id UUID,
			security_event_type TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT '',
			details JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_tenant_time
			ON audit_entries (tenant_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_type
			ON audit_entries (entry_type)`,
		`CREATE TABLE IF NOT EXISTS security_events (
			id UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			tenant_id TEXT NOT NULL DEFAULT '',
			organization_id TEXT NOT NULL DEFAULT '',
			department_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			sharing_level TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			details JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_tenant_time
			ON security_events (tenant_id, timestamp DESC)`,
	}

	for _, stmt := range ddl {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return errors.NewInternalError("failed to ensure audit schema").WithCause(err)
		}
	}
	return nil
}

// Store persists a single audit entry
func (r *AuditRepository) Store(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return errors.NewValidationError("MISSING_ENTRY", "entry is required")
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal entry details").WithCause(err)
	}

	query := `
		INSERT INTO audit_entries (
			id, entry_type, timestamp,
			tenant_id, organization_id, department_id, user_id, sharing_level,
			resource_type, resource_id, action, granted, operation,
			security_event_id, security_event_type, severity, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		string(entry.Type),
		entry.Timestamp,
		entry.Context.TenantID,
		entry.Context.OrganizationID,
		entry.Context.DepartmentID,
		entry.Context.UserID,
		string(entry.Context.SharingLevel),
		entry.ResourceType,
		entry.ResourceID,
		entry.Action,
		entry.Granted,
		entry.Operation,
		entry.SecurityEventID,
		string(entry.SecurityEventType),
		string(entry.Severity),
		detailsJSON,
	)
	if err != nil {
		return errors.NewInternalError("failed to store audit entry").WithCause(err)
	}

	return nil
}

// Query returns entries matching the filter, newest first
func (r *AuditRepository) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Type != "" {
		addCondition("entry_type", string(filter.Type))
	}
	if filter.TenantID != "" {
		addCondition("tenant_id", filter.TenantID)
	}
	if filter.UserID != "" {
		addCondition("user_id", filter.UserID)
	}
	if filter.ResourceType != "" {
		addCondition("resource_type", filter.ResourceType)
	}
	if filter.Action != "" {
		addCondition("action", filter.Action)
	}
	if filter.Operation != "" {
		addCondition("operation", filter.Operation)
	}
	if filter.Granted != nil {
		addCondition("granted", *filter.Granted)
	}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start)
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End)
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `
		SELECT
			id, entry_type, timestamp,
			tenant_id, organization_id, department_id, user_id, sharing_level,
			resource_type, resource_id, action, granted, operation,
			security_event_id, security_event_type, severity, details
		FROM audit_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to query audit entries").WithCause(err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read audit entries").WithCause(err)
	}

	return entries, nil
}

// StoreSecurityEvent persists a security event
func (r *AuditRepository) StoreSecurityEvent(ctx context.Context, event *isolation.SecurityEvent) error {
	if event == nil {
		return errors.NewValidationError("MISSING_EVENT", "security event is required")
	}

	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal event details").WithCause(err)
	}

	query := `
		INSERT INTO security_events (
			id, event_type, severity, description,
			tenant_id, organization_id, department_id, user_id, sharing_level,
			timestamp, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err = r.db.Exec(ctx, query,
		event.ID,
		string(event.Type),
		string(event.Severity),
		event.Description,
		event.Context.TenantID,
		event.Context.OrganizationID,
		event.Context.DepartmentID,
		event.Context.UserID,
		string(event.Context.SharingLevel),
		event.Timestamp,
		detailsJSON,
	)
	if err != nil {
		return errors.NewInternalError("failed to store security event").WithCause(err)
	}

	return nil
}

// Ping verifies database connectivity
func (r *AuditRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanEntry(rows pgx.Rows) (*audit.Entry, error) {
	var entry audit.Entry
	var entryType, sharingLevel, eventType, severity string
	var detailsJSON []byte

	err := rows.Scan(
		&entry.ID,
		&entryType,
		&entry.Timestamp,
		&entry.Context.TenantID,
		&entry.Context.OrganizationID,
		&entry.Context.DepartmentID,
		&entry.Context.UserID,
		&sharingLevel,
		&entry.ResourceType,
		&entry.ResourceID,
		&entry.Action,
		&entry.Granted,
		&entry.Operation,
		&entry.SecurityEventID,
		&eventType,
		&severity,
		&detailsJSON,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to scan audit entry").WithCause(err)
	}

	entry.Type = audit.EntryType(entryType)
	entry.Context.SharingLevel = isolation.SharingLevel(sharingLevel)
	entry.SecurityEventType = isolation.SecurityEventType(eventType)
	entry.Severity = isolation.Severity(severity)

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, errors.NewInternalError("failed to unmarshal entry details").WithCause(err)
		}
	}

	return &entry, nil
}
