// ABOUTME: Store interface and data types for hookgate persistence
// ABOUTME: Defines Tenant, Integration, Credential structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation conflicts with existing state
var ErrConflict = errors.New("conflict")

// ErrCredentialExists is returned when issuing a credential for an
// integration that already has a non-revoked one
var ErrCredentialExists = errors.New("integration already has an active credential")

// Entity status values shared by tenants and integrations
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Channel kinds for integrations
const (
	ChannelGeneric        = "generic"
	ChannelChatPlatform   = "chat-platform"
	ChannelAutomationTool = "automation-tool"
)

// ValidChannelKind reports whether kind is a known channel kind.
func ValidChannelKind(kind string) bool {
	switch kind {
	case ChannelGeneric, ChannelChatPlatform, ChannelAutomationTool:
		return true
	}
	return false
}

// Tenant is the activation/quota snapshot for one owning account.
// The validator consults it on every webhook call.
type Tenant struct {
	ID             string
	Name           string
	Status         string // "active" or "inactive"
	QuotaPerMinute int
	CreatedAt      time.Time
}

// Integration binds one tenant's agent to one external channel.
// Integrations are soft-deleted only (status flips to inactive) because
// audit history references them.
type Integration struct {
	ID          string
	TenantID    string
	AgentID     string
	ChannelKind string
	Status      string // "active" or "inactive"
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// Credential is one bearer secret for an integration. Only the salted
// hash is stored; the plaintext leaves the system exactly once at issue
// time. At most one credential per integration has RevokedAt == nil.
type Credential struct {
	TokenID       string
	IntegrationID string
	SecretHash    string
	Salt          string
	IssuedAt      time.Time
	RevokedAt     *time.Time
}

// CredentialLookup is the joined row the request validator needs to
// authenticate a webhook call: the non-revoked credential, its
// integration, and the owning tenant's status and quota.
type CredentialLookup struct {
	TokenID      string
	SecretHash   string
	Salt         string
	Integration  Integration
	TenantStatus string
	TenantQuota  int
}

// Store defines the interface for hookgate persistence
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	SetTenantStatus(ctx context.Context, id, status string) error

	// Integrations
	CreateIntegration(ctx context.Context, integration *Integration) error
	GetIntegration(ctx context.Context, id string) (*Integration, error)
	ListIntegrations(ctx context.Context, tenantID string) ([]*Integration, error)
	SetIntegrationStatus(ctx context.Context, id, status string) error
	TouchIntegration(ctx context.Context, id string, when time.Time) error

	// Credentials
	InsertCredential(ctx context.Context, cred *Credential) error
	ActiveCredential(ctx context.Context, integrationID string) (*Credential, error)
	RotateCredential(ctx context.Context, integrationID string, next *Credential) (revokedTokenID string, err error)
	RevokeCredential(ctx context.Context, integrationID string, when time.Time) (revokedTokenID string, err error)
	LookupCredential(ctx context.Context, tokenID string) (*CredentialLookup, error)

	// Audit records
	AppendAudit(ctx context.Context, rec *AuditRecord) error
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditRecord, error)

	// Rate windows
	IncrementWindow(ctx context.Context, tenantID string, windowStart int64) (int64, error)
	WindowCount(ctx context.Context, tenantID string, windowStart int64) (int64, error)
	ReclaimWindows(ctx context.Context, olderThan int64) error

	// Close releases any resources held by the store
	Close() error
}
