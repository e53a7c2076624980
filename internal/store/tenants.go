// ABOUTME: Tenant snapshot store methods for activation state and quotas
// ABOUTME: The validator reads this table on every webhook call via LookupCredential

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateTenant creates a new tenant record.
// Generates ID and CreatedAt if not set. Status defaults to active.
func (s *SQLiteStore) CreateTenant(ctx context.Context, tenant *Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	if tenant.Status == "" {
		tenant.Status = StatusActive
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tenants (tenant_id, name, status, quota_per_minute, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Status,
		tenant.QuotaPerMinute,
		tenant.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("tenant %q: %w", tenant.ID, ErrConflict)
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}

	s.logger.Debug("created tenant", "id", tenant.ID, "name", tenant.Name, "quota", tenant.QuotaPerMinute)
	return nil
}

// GetTenant retrieves a tenant by ID.
// Returns ErrNotFound if the tenant doesn't exist.
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	query := `
		SELECT tenant_id, name, status, quota_per_minute, created_at
		FROM tenants
		WHERE tenant_id = ?
	`

	var tenant Tenant
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Status,
		&tenant.QuotaPerMinute,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}

	tenant.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &tenant, nil
}

// SetTenantStatus updates a tenant's activation status.
// Returns ErrNotFound if the tenant doesn't exist.
func (s *SQLiteStore) SetTenantStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tenants SET status = ? WHERE tenant_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating tenant status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated tenant status", "id", id, "status", status)
	return nil
}
