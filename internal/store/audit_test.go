// ABOUTME: Tests for the append-only audit log
// ABOUTME: Covers defaults, filters, ordering and the limit cap

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAudit_Defaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &AuditRecord{
		Outcome:  OutcomeInvalidToken,
		SourceIP: "203.0.113.7",
		Detail:   "bearer did not match a credential",
	}
	err := store.AppendAudit(ctx, rec)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID, "ID should be generated")
	assert.False(t, rec.Timestamp.IsZero(), "timestamp should be set")
}

func TestStore_AppendAudit_NilAttribution(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Unresolvable tokens have no integration or tenant to attribute
	err := store.AppendAudit(ctx, &AuditRecord{
		Outcome:  OutcomeInvalidToken,
		SourceIP: "203.0.113.7",
	})
	require.NoError(t, err)

	records, err := store.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].IntegrationID)
	assert.Nil(t, records[0].TenantID)
}

func TestStore_ListAudit_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store, 60)
	integration := createTestIntegration(t, store, tenant.ID, "agent")

	other := createTestIntegration(t, store, tenant.ID, "other-agent")

	for i, outcome := range []Outcome{OutcomeAccepted, OutcomeRateLimited, OutcomeAccepted} {
		require.NoError(t, store.AppendAudit(ctx, &AuditRecord{
			IntegrationID: &integration.ID,
			TenantID:      &tenant.ID,
			Outcome:       outcome,
			SourceIP:      fmt.Sprintf("198.51.100.%d", i),
		}))
	}
	require.NoError(t, store.AppendAudit(ctx, &AuditRecord{
		IntegrationID: &other.ID,
		TenantID:      &tenant.ID,
		Outcome:       OutcomeAccepted,
		SourceIP:      "198.51.100.9",
	}))

	// By integration
	records, err := store.ListAudit(ctx, AuditFilter{IntegrationID: &integration.ID})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// By outcome
	rateLimited := OutcomeRateLimited
	records, err = store.ListAudit(ctx, AuditFilter{Outcome: &rateLimited})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, OutcomeRateLimited, records[0].Outcome)

	// By tenant
	records, err = store.ListAudit(ctx, AuditFilter{TenantID: &tenant.ID})
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestStore_ListAudit_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendAudit(ctx, &AuditRecord{
			Outcome:   OutcomeAccepted,
			SourceIP:  "198.51.100.1",
			Detail:    fmt.Sprintf("event-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := store.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "event-2", records[0].Detail)
	assert.Equal(t, "event-0", records[2].Detail)
}

func TestStore_ListAudit_Since(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.AppendAudit(ctx, &AuditRecord{
			Outcome:   OutcomeAccepted,
			SourceIP:  "198.51.100.1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	since := base.Add(2 * time.Minute)
	records, err := store.ListAudit(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStore_ListAudit_LimitDefaults(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-5))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
	assert.Equal(t, 25, normalizeAuditLimit(25))
}

func TestStore_ListAudit_Empty(t *testing.T) {
	store := setupTestStore(t)

	records, err := store.ListAudit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
