// ABOUTME: Integration store methods for tenant/agent/channel bindings
// ABOUTME: Integrations are soft-deleted only because audit history references them

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateIntegration creates a new integration record.
// Generates ID and CreatedAt if not set. Status defaults to active.
// The owning tenant must exist.
func (s *SQLiteStore) CreateIntegration(ctx context.Context, integration *Integration) error {
	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}
	if integration.Status == "" {
		integration.Status = StatusActive
	}
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO integrations (integration_id, tenant_id, agent_id, channel_kind, status, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
	`

	_, err := s.db.ExecContext(ctx, query,
		integration.ID,
		integration.TenantID,
		integration.AgentID,
		integration.ChannelKind,
		integration.Status,
		integration.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("integration %q: %w", integration.ID, ErrConflict)
		}
		return fmt.Errorf("inserting integration: %w", err)
	}

	s.logger.Debug("created integration",
		"id", integration.ID,
		"tenant_id", integration.TenantID,
		"agent_id", integration.AgentID,
		"channel_kind", integration.ChannelKind,
	)
	return nil
}

// GetIntegration retrieves an integration by ID.
// Returns ErrNotFound if the integration doesn't exist.
func (s *SQLiteStore) GetIntegration(ctx context.Context, id string) (*Integration, error) {
	query := `
		SELECT integration_id, tenant_id, agent_id, channel_kind, status, created_at, last_used_at
		FROM integrations
		WHERE integration_id = ?
	`

	integration, err := scanIntegration(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying integration: %w", err)
	}

	return integration, nil
}

// ListIntegrations returns all integrations, newest first.
// If tenantID is non-empty, only that tenant's integrations are returned.
func (s *SQLiteStore) ListIntegrations(ctx context.Context, tenantID string) ([]*Integration, error) {
	query := `
		SELECT integration_id, tenant_id, agent_id, channel_kind, status, created_at, last_used_at
		FROM integrations
		WHERE (? = '' OR tenant_id = ?)
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var integrations []*Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration row: %w", err)
		}
		integrations = append(integrations, integration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integration rows: %w", err)
	}

	return integrations, nil
}

// SetIntegrationStatus updates an integration's activation status.
// Returns ErrNotFound if the integration doesn't exist.
func (s *SQLiteStore) SetIntegrationStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE integrations SET status = ? WHERE integration_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating integration status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated integration status", "id", id, "status", status)
	return nil
}

// TouchIntegration updates an integration's last_used_at timestamp.
func (s *SQLiteStore) TouchIntegration(ctx context.Context, id string, when time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET last_used_at = ? WHERE integration_id = ?`,
		when.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching integration: %w", err)
	}
	return nil
}

// scanIntegration scans a row into an Integration.
func scanIntegration(scanner interface{ Scan(dest ...any) error }) (*Integration, error) {
	var integration Integration
	var createdAt string
	var lastUsedAt sql.NullString

	if err := scanner.Scan(
		&integration.ID,
		&integration.TenantID,
		&integration.AgentID,
		&integration.ChannelKind,
		&integration.Status,
		&createdAt,
		&lastUsedAt,
	); err != nil {
		return nil, err
	}

	var err error
	integration.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if lastUsedAt.Valid {
		parsed, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		integration.LastUsedAt = &parsed
	}

	return &integration, nil
}
