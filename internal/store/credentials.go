// ABOUTME: Credential store methods including the atomic revoke-and-reissue transition
// ABOUTME: Only salted secret hashes are persisted, never plaintext secrets

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertCredential stores a new credential row.
// Returns ErrCredentialExists if the integration already has a
// non-revoked credential (enforced by a partial unique index).
func (s *SQLiteStore) InsertCredential(ctx context.Context, cred *Credential) error {
	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO credentials (token_id, integration_id, secret_hash, salt, issued_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`

	_, err := s.db.ExecContext(ctx, query,
		cred.TokenID,
		cred.IntegrationID,
		cred.SecretHash,
		cred.Salt,
		cred.IssuedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrCredentialExists
		}
		return fmt.Errorf("inserting credential: %w", err)
	}

	s.logger.Debug("inserted credential", "token_id", cred.TokenID, "integration_id", cred.IntegrationID)
	return nil
}

// ActiveCredential returns the non-revoked credential for an integration.
// Returns ErrNotFound if none exists.
func (s *SQLiteStore) ActiveCredential(ctx context.Context, integrationID string) (*Credential, error) {
	query := `
		SELECT token_id, integration_id, secret_hash, salt, issued_at, revoked_at
		FROM credentials
		WHERE integration_id = ? AND revoked_at IS NULL
	`

	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, integrationID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying active credential: %w", err)
	}

	return cred, nil
}

// RotateCredential atomically revokes the integration's current credential
// and inserts the next one in a single transaction. There is no instant at
// which the integration has two valid credentials, or none while active.
// Returns the revoked token ID, or ErrNotFound if no non-revoked
// credential exists.
func (s *SQLiteStore) RotateCredential(ctx context.Context, integrationID string, next *Credential) (string, error) {
	if next.IssuedAt.IsZero() {
		next.IssuedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning rotate transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var revokedTokenID string
	err = tx.QueryRowContext(ctx,
		`UPDATE credentials SET revoked_at = ? WHERE integration_id = ? AND revoked_at IS NULL RETURNING token_id`,
		next.IssuedAt.Format(time.RFC3339), integrationID,
	).Scan(&revokedTokenID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("revoking current credential: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (token_id, integration_id, secret_hash, salt, issued_at, revoked_at)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		next.TokenID,
		next.IntegrationID,
		next.SecretHash,
		next.Salt,
		next.IssuedAt.Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("inserting replacement credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing rotate transaction: %w", err)
	}

	s.logger.Debug("rotated credential",
		"integration_id", integrationID,
		"revoked_token_id", revokedTokenID,
		"new_token_id", next.TokenID,
	)
	return revokedTokenID, nil
}

// RevokeCredential marks the integration's current credential revoked.
// Idempotent: returns an empty token ID and no error when no non-revoked
// credential exists.
func (s *SQLiteStore) RevokeCredential(ctx context.Context, integrationID string, when time.Time) (string, error) {
	var revokedTokenID string
	err := s.db.QueryRowContext(ctx,
		`UPDATE credentials SET revoked_at = ? WHERE integration_id = ? AND revoked_at IS NULL RETURNING token_id`,
		when.UTC().Format(time.RFC3339), integrationID,
	).Scan(&revokedTokenID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("revoking credential: %w", err)
	}

	s.logger.Debug("revoked credential", "integration_id", integrationID, "token_id", revokedTokenID)
	return revokedTokenID, nil
}

// LookupCredential resolves a token ID to its non-revoked credential,
// joined with the integration and the owning tenant's snapshot.
// Returns ErrNotFound if no non-revoked credential has this token ID.
func (s *SQLiteStore) LookupCredential(ctx context.Context, tokenID string) (*CredentialLookup, error) {
	query := `
		SELECT c.token_id, c.secret_hash, c.salt,
		       i.integration_id, i.tenant_id, i.agent_id, i.channel_kind, i.status, i.created_at, i.last_used_at,
		       t.status, t.quota_per_minute
		FROM credentials c
		JOIN integrations i ON i.integration_id = c.integration_id
		JOIN tenants t ON t.tenant_id = i.tenant_id
		WHERE c.token_id = ? AND c.revoked_at IS NULL
	`

	var lk CredentialLookup
	var createdAt string
	var lastUsedAt sql.NullString

	err := s.db.QueryRowContext(ctx, query, tokenID).Scan(
		&lk.TokenID,
		&lk.SecretHash,
		&lk.Salt,
		&lk.Integration.ID,
		&lk.Integration.TenantID,
		&lk.Integration.AgentID,
		&lk.Integration.ChannelKind,
		&lk.Integration.Status,
		&createdAt,
		&lastUsedAt,
		&lk.TenantStatus,
		&lk.TenantQuota,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential lookup: %w", err)
	}

	lk.Integration.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if lastUsedAt.Valid {
		parsed, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		lk.Integration.LastUsedAt = &parsed
	}

	return &lk, nil
}

// scanCredential scans a row into a Credential.
func scanCredential(scanner interface{ Scan(dest ...any) error }) (*Credential, error) {
	var cred Credential
	var issuedAt string
	var revokedAt sql.NullString

	if err := scanner.Scan(
		&cred.TokenID,
		&cred.IntegrationID,
		&cred.SecretHash,
		&cred.Salt,
		&issuedAt,
		&revokedAt,
	); err != nil {
		return nil, err
	}

	var err error
	cred.IssuedAt, err = time.Parse(time.RFC3339, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing issued_at: %w", err)
	}
	if revokedAt.Valid {
		parsed, err := time.Parse(time.RFC3339, revokedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing revoked_at: %w", err)
		}
		cred.RevokedAt = &parsed
	}

	return &cred, nil
}
