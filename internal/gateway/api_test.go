// ABOUTME: Tests for the management API handlers
// ABOUTME: Provisioning, auth gating, usage, simulate and tenant deactivation

package gateway

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookgate/hookgate/internal/auth"
)

func TestAPI_RequiresJWT(t *testing.T) {
	tg := setupGateway(t, echoExecutor())

	rec := tg.do(http.MethodGet, "/api/integrations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = tg.do(http.MethodGet, "/api/integrations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ViewerCannotMutate(t *testing.T) {
	tg := setupGateway(t, echoExecutor())

	viewer, err := auth.NewJWTVerifier([]byte(testJWTSecret)).Generate("auditor", auth.RoleViewer, time.Hour)
	require.NoError(t, err)

	rec := tg.do(http.MethodPost, "/api/tenants", viewer, map[string]string{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reads are allowed
	rec = tg.do(http.MethodGet, "/api/integrations", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_CreateTenant_Validation(t *testing.T) {
	tg := setupGateway(t, echoExecutor())

	rec := tg.api(http.MethodPost, "/api/tenants", map[string]any{"quota_per_minute": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")

	// Zero quota falls back to the configured default
	rec = tg.api(http.MethodPost, "/api/tenants", map[string]any{"name": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tenant struct {
		QuotaPerMinute int    `json:"quota_per_minute"`
		Status         string `json:"status"`
	}
	decode(t, rec, &tenant)
	assert.Equal(t, 60, tenant.QuotaPerMinute)
	assert.Equal(t, "active", tenant.Status)
}

func TestAPI_CreateIntegration_Validation(t *testing.T) {
	tg := setupGateway(t, echoExecutor())

	rec := tg.api(http.MethodPost, "/api/tenants", map[string]any{"name": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tenant struct {
		ID string `json:"id"`
	}
	decode(t, rec, &tenant)

	// Missing agent_id
	rec = tg.api(http.MethodPost, "/api/integrations", map[string]string{"tenant_id": tenant.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown channel kind
	rec = tg.api(http.MethodPost, "/api/integrations", map[string]string{
		"tenant_id":    tenant.ID,
		"agent_id":     "bot",
		"channel_kind": "carrier-pigeon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown tenant
	rec = tg.api(http.MethodPost, "/api/integrations", map[string]string{
		"tenant_id": "nonexistent",
		"agent_id":  "bot",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Default channel kind is generic
	rec = tg.api(http.MethodPost, "/api/integrations", map[string]string{
		"tenant_id": tenant.ID,
		"agent_id":  "bot",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var integration struct {
		ChannelKind string `json:"channel_kind"`
	}
	decode(t, rec, &integration)
	assert.Equal(t, "generic", integration.ChannelKind)
}

func TestAPI_ListIntegrations(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	tg.provision(t, 10, "bot-one")
	tg.provision(t, 10, "bot-two")

	rec := tg.api(http.MethodGet, "/api/integrations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Integrations []struct {
			AgentID string `json:"agent_id"`
			Status  string `json:"status"`
		} `json:"integrations"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Integrations, 2)
}

func TestAPI_IssueToken_SecondConflicts(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	integrationID, _ := tg.provision(t, 10, "support-bot")

	rec := tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/token", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_IssueToken_UnknownIntegration(t *testing.T) {
	tg := setupGateway(t, echoExecutor())

	rec := tg.api(http.MethodPost, "/api/integrations/nonexistent/token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RevokeIdempotent(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	integrationID, _ := tg.provision(t, 10, "support-bot")

	rec := tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/revoke", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/revoke", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "second revoke succeeds")
}

func TestAPI_ReissueAfterRevokeReactivates(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	integrationID, _ := tg.provision(t, 10, "support-bot")

	rec := tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/revoke", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/token", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var issued struct {
		Secret string `json:"secret"`
	}
	decode(t, rec, &issued)

	// The fresh credential validates again
	rec = tg.do(http.MethodPost, "/webhook/support-bot", issued.Secret, `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_TenantUsage(t *testing.T) {
	tg := setupGateway(t, echoExecutor())

	rec := tg.api(http.MethodPost, "/api/tenants", map[string]any{"name": "acme", "quota_per_minute": 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tenant struct {
		ID string `json:"id"`
	}
	decode(t, rec, &tenant)

	rec = tg.api(http.MethodPost, "/api/integrations", map[string]string{
		"tenant_id": tenant.ID,
		"agent_id":  "bot",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var integration struct {
		ID string `json:"id"`
	}
	decode(t, rec, &integration)

	rec = tg.api(http.MethodPost, "/api/integrations/"+integration.ID+"/token", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var issued struct {
		Secret string `json:"secret"`
	}
	decode(t, rec, &issued)

	for i := 0; i < 3; i++ {
		r := tg.do(http.MethodPost, "/webhook/bot", issued.Secret, `{}`)
		require.Equal(t, http.StatusOK, r.Code)
	}

	rec = tg.api(http.MethodGet, "/api/tenants/"+tenant.ID+"/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var usage struct {
		Limit     int   `json:"limit"`
		Used      int64 `json:"used"`
		Remaining int   `json:"remaining"`
		ResetAt   int64 `json:"reset_at"`
	}
	decode(t, rec, &usage)
	assert.Equal(t, 10, usage.Limit)
	assert.Equal(t, int64(3), usage.Used)
	assert.Equal(t, 7, usage.Remaining)
	assert.NotZero(t, usage.ResetAt)
}

func TestAPI_DeactivateTenant(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	_, secret := tg.provision(t, 10, "support-bot")

	rec := tg.do(http.MethodPost, "/webhook/support-bot", secret, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Find the tenant via the integration list
	rec = tg.api(http.MethodGet, "/api/integrations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Integrations []struct {
			TenantID string `json:"tenant_id"`
		} `json:"integrations"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Integrations)
	tenantID := resp.Integrations[0].TenantID

	rec = tg.api(http.MethodPost, "/api/tenants/"+tenantID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// All the tenant's integrations stop validating immediately
	rec = tg.do(http.MethodPost, "/webhook/support-bot", secret, `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_Simulate(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	integrationID, secret := tg.provision(t, 2, "support-bot")

	rec := tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/simulate", `{"probe":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Echo     map[string]any `json:"echo"`
		Simulate bool           `json:"simulate"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Simulate, "executor sees the simulate flag")
	assert.Equal(t, true, resp.Echo["probe"])

	// Simulation never counted against quota: both real calls still fit
	for i := 0; i < 2; i++ {
		r := tg.do(http.MethodPost, "/webhook/support-bot", secret, `{}`)
		require.Equal(t, http.StatusOK, r.Code)
	}

	// And the audit log distinguishes the dry run
	rec = tg.api(http.MethodGet, "/api/integrations/"+integrationID+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit struct {
		Records []struct {
			Outcome string `json:"outcome"`
		} `json:"records"`
	}
	decode(t, rec, &audit)

	outcomes := make(map[string]int)
	for _, r := range audit.Records {
		outcomes[r.Outcome]++
	}
	assert.Equal(t, 1, outcomes["simulated"])
	assert.Equal(t, 2, outcomes["accepted"])
}

func TestAPI_SimulateInactiveIntegration(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	integrationID, _ := tg.provision(t, 10, "support-bot")

	rec := tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/revoke", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = tg.api(http.MethodPost, "/api/integrations/"+integrationID+"/simulate", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_AuditBadLimit(t *testing.T) {
	tg := setupGateway(t, echoExecutor())
	integrationID, _ := tg.provision(t, 10, "support-bot")

	rec := tg.api(http.MethodGet, "/api/integrations/"+integrationID+"/audit?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
