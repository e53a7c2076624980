// ABOUTME: Token Manager issuing, regenerating and revoking webhook credentials
// ABOUTME: Every operation writes a management audit record and invalidates cached lookups

package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookgate/hookgate/internal/store"
)

// CredentialStore is the subset of the store the manager needs.
type CredentialStore interface {
	GetIntegration(ctx context.Context, id string) (*store.Integration, error)
	SetIntegrationStatus(ctx context.Context, id, status string) error
	InsertCredential(ctx context.Context, cred *store.Credential) error
	ActiveCredential(ctx context.Context, integrationID string) (*store.Credential, error)
	RotateCredential(ctx context.Context, integrationID string, next *store.Credential) (string, error)
	RevokeCredential(ctx context.Context, integrationID string, when time.Time) (string, error)
	AppendAudit(ctx context.Context, rec *store.AuditRecord) error
}

// Invalidator removes cached credential lookups so revocation takes
// effect in the same process immediately, not after the cache TTL.
type Invalidator interface {
	InvalidateToken(tokenID string)
}

// Manager issues, regenerates and revokes integration credentials.
type Manager struct {
	store      CredentialStore
	pepper     []byte
	invalidate Invalidator // may be nil when no cache is wired
	logger     *slog.Logger
}

// NewManager creates a token manager hashing secrets with the given pepper.
func NewManager(s CredentialStore, pepper []byte, invalidate Invalidator, logger *slog.Logger) *Manager {
	return &Manager{
		store:      s,
		pepper:     pepper,
		invalidate: invalidate,
		logger:     logger.With("component", "token-manager"),
	}
}

// Issue generates a credential for an integration that has none.
// Returns the plaintext secret exactly once. Fails with store.ErrNotFound
// if the integration does not exist and store.ErrCredentialExists if a
// non-revoked credential is already present (use Regenerate instead).
// Issuing against an inactive integration re-activates it.
func (m *Manager) Issue(ctx context.Context, integrationID, actor string) (string, error) {
	integration, err := m.store.GetIntegration(ctx, integrationID)
	if err != nil {
		return "", err
	}

	cred, plaintext, err := m.newCredential(integrationID)
	if err != nil {
		return "", err
	}

	if err := m.store.InsertCredential(ctx, cred); err != nil {
		return "", err
	}

	// Fresh issue is the only path from inactive back to active
	if integration.Status != store.StatusActive {
		if err := m.store.SetIntegrationStatus(ctx, integrationID, store.StatusActive); err != nil {
			return "", fmt.Errorf("re-activating integration: %w", err)
		}
	}

	m.audit(ctx, integration, store.OutcomeTokenIssued, actor, "token_id="+cred.TokenID)
	m.logger.Info("issued credential", "integration_id", integrationID, "token_id", cred.TokenID)
	return plaintext, nil
}

// Regenerate atomically revokes the current credential and issues a new
// one in a single store transaction. The prior secret stops validating
// the instant the transaction commits. Fails with store.ErrNotFound if
// the integration does not exist, is inactive, or has no current
// credential.
func (m *Manager) Regenerate(ctx context.Context, integrationID, actor string) (string, error) {
	integration, err := m.store.GetIntegration(ctx, integrationID)
	if err != nil {
		return "", err
	}
	if integration.Status != store.StatusActive {
		return "", fmt.Errorf("integration %s is inactive: %w", integrationID, store.ErrNotFound)
	}

	next, plaintext, err := m.newCredential(integrationID)
	if err != nil {
		return "", err
	}

	revokedTokenID, err := m.store.RotateCredential(ctx, integrationID, next)
	if err != nil {
		return "", err
	}

	// Synchronous cache invalidation keeps the immediate-invalidation
	// guarantee even with lookup caching enabled.
	if m.invalidate != nil {
		m.invalidate.InvalidateToken(revokedTokenID)
	}

	m.audit(ctx, integration, store.OutcomeTokenRegenerated, actor,
		fmt.Sprintf("revoked_token_id=%s new_token_id=%s", revokedTokenID, next.TokenID))
	m.logger.Info("regenerated credential",
		"integration_id", integrationID,
		"revoked_token_id", revokedTokenID,
		"token_id", next.TokenID,
	)
	return plaintext, nil
}

// Revoke marks the current credential revoked and the integration
// inactive. Idempotent: revoking an already-revoked integration succeeds.
// Fails with store.ErrNotFound if the integration does not exist.
func (m *Manager) Revoke(ctx context.Context, integrationID, actor string) error {
	integration, err := m.store.GetIntegration(ctx, integrationID)
	if err != nil {
		return err
	}

	revokedTokenID, err := m.store.RevokeCredential(ctx, integrationID, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := m.store.SetIntegrationStatus(ctx, integrationID, store.StatusInactive); err != nil {
		return fmt.Errorf("deactivating integration: %w", err)
	}

	if m.invalidate != nil && revokedTokenID != "" {
		m.invalidate.InvalidateToken(revokedTokenID)
	}

	detail := "no active credential"
	if revokedTokenID != "" {
		detail = "token_id=" + revokedTokenID
	}
	m.audit(ctx, integration, store.OutcomeTokenRevoked, actor, detail)
	m.logger.Info("revoked credential", "integration_id", integrationID, "token_id", revokedTokenID)
	return nil
}

// newCredential builds a hashed credential row and its plaintext secret.
func (m *Manager) newCredential(integrationID string) (*store.Credential, string, error) {
	tokenID, plaintext, err := NewSecret()
	if err != nil {
		return nil, "", err
	}
	salt, err := NewSalt()
	if err != nil {
		return nil, "", err
	}

	_, secret, ok := ParseSecret(plaintext)
	if !ok {
		return nil, "", errors.New("generated secret failed self-parse")
	}

	return &store.Credential{
		TokenID:       tokenID,
		IntegrationID: integrationID,
		SecretHash:    HashSecret(m.pepper, salt, secret),
		Salt:          salt,
		IssuedAt:      time.Now().UTC(),
	}, plaintext, nil
}

// audit writes a management event record. Best effort: a failed audit
// write is logged, not returned, so it cannot roll back the credential
// change it describes.
func (m *Manager) audit(ctx context.Context, integration *store.Integration, outcome store.Outcome, actor, detail string) {
	rec := &store.AuditRecord{
		IntegrationID: &integration.ID,
		TenantID:      &integration.TenantID,
		Outcome:       outcome,
		SourceIP:      actor,
		Detail:        detail,
	}
	if err := m.store.AppendAudit(ctx, rec); err != nil {
		m.logger.Error("failed to append management audit record", "outcome", outcome, "error", err)
	}
}
