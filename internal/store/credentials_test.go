// ABOUTME: Tests for credential persistence and the atomic rotate transition
// ABOUTME: Covers the single-active-credential invariant and the lookup join

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCredential builds a credential row for an integration.
func testCredential(integrationID, tokenID string) *Credential {
	return &Credential{
		TokenID:       tokenID,
		IntegrationID: integrationID,
		SecretHash:    "hash-" + tokenID,
		Salt:          "salt-" + tokenID,
	}
}

func TestStore_InsertCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	err := store.InsertCredential(ctx, testCredential(integration.ID, "tok-1"))
	require.NoError(t, err)

	cred, err := store.ActiveCredential(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cred.TokenID)
	assert.Nil(t, cred.RevokedAt)
}

func TestStore_InsertCredential_SecondActiveRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-1")))

	err := store.InsertCredential(ctx, testCredential(integration.ID, "tok-2"))
	assert.ErrorIs(t, err, ErrCredentialExists)
}

func TestStore_RotateCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-old")))

	revoked, err := store.RotateCredential(ctx, integration.ID, testCredential(integration.ID, "tok-new"))
	require.NoError(t, err)
	assert.Equal(t, "tok-old", revoked)

	// Exactly one active credential remains, and it is the new one
	cred, err := store.ActiveCredential(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", cred.TokenID)

	// The old token no longer resolves
	_, err = store.LookupCredential(ctx, "tok-old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RotateCredential_NoActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	_, err := store.RotateCredential(ctx, integration.ID, testCredential(integration.ID, "tok-new"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RevokeCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-1")))

	revoked, err := store.RevokeCredential(ctx, integration.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", revoked)

	_, err = store.ActiveCredential(ctx, integration.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Revoking again is a no-op, not an error
	revoked, err = store.RevokeCredential(ctx, integration.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, revoked)
}

func TestStore_RevokeThenReissue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-1")))
	_, err := store.RevokeCredential(ctx, integration.ID, time.Now().UTC())
	require.NoError(t, err)

	// A fresh insert is allowed once the old credential is revoked
	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-2")))

	cred, err := store.ActiveCredential(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", cred.TokenID)
}

func TestStore_LookupCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 120)
	integration := createTestIntegration(t, store, tenant.ID, "support-bot")

	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-1")))

	lk, err := store.LookupCredential(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", lk.TokenID)
	assert.Equal(t, "hash-tok-1", lk.SecretHash)
	assert.Equal(t, "salt-tok-1", lk.Salt)
	assert.Equal(t, integration.ID, lk.Integration.ID)
	assert.Equal(t, "support-bot", lk.Integration.AgentID)
	assert.Equal(t, StatusActive, lk.TenantStatus)
	assert.Equal(t, 120, lk.TenantQuota)
}

func TestStore_LookupCredential_Unknown(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.LookupCredential(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RotateCredential_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	require.NoError(t, store.InsertCredential(ctx, testCredential(integration.ID, "tok-0")))

	// Sequential rotations always leave exactly one active credential
	for i := 1; i <= 5; i++ {
		next := testCredential(integration.ID, fmt.Sprintf("tok-%d", i))
		revoked, err := store.RotateCredential(ctx, integration.ID, next)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("tok-%d", i-1), revoked)
	}

	cred, err := store.ActiveCredential(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-5", cred.TokenID)
}
