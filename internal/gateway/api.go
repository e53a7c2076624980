// ABOUTME: Management API handlers for tenants, integrations, credentials and audit
// ABOUTME: Mutations require the admin role; every mutation writes an audit record

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hookgate/hookgate/internal/auth"
	"github.com/hookgate/hookgate/internal/store"
	"github.com/hookgate/hookgate/internal/validate"
)

// apiRoutes registers the management surface on its own mux.
func (g *Gateway) apiRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tenants", g.handleCreateTenant)
	mux.HandleFunc("POST /api/tenants/{id}/deactivate", g.handleDeactivateTenant)
	mux.HandleFunc("GET /api/tenants/{id}/usage", g.handleTenantUsage)

	mux.HandleFunc("POST /api/integrations", g.handleCreateIntegration)
	mux.HandleFunc("GET /api/integrations", g.handleListIntegrations)
	mux.HandleFunc("POST /api/integrations/{id}/token", g.handleIssueToken)
	mux.HandleFunc("POST /api/integrations/{id}/token/regenerate", g.handleRegenerateToken)
	mux.HandleFunc("POST /api/integrations/{id}/revoke", g.handleRevoke)
	mux.HandleFunc("GET /api/integrations/{id}/audit", g.handleIntegrationAudit)
	mux.HandleFunc("POST /api/integrations/{id}/simulate", g.handleSimulate)

	return mux
}

// tenantResponse is the wire shape of a tenant.
type tenantResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	QuotaPerMinute int       `json:"quota_per_minute"`
	CreatedAt      time.Time `json:"created_at"`
}

// integrationResponse is the wire shape of an integration.
type integrationResponse struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	AgentID     string     `json:"agent_id"`
	ChannelKind string     `json:"channel_kind"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// auditResponse is the wire shape of one audit record.
type auditResponse struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	IntegrationID *string   `json:"integration_id,omitempty"`
	TenantID      *string   `json:"tenant_id,omitempty"`
	Outcome       string    `json:"outcome"`
	SourceIP      string    `json:"source_ip"`
	Detail        string    `json:"detail,omitempty"`
}

func tenantToResponse(t *store.Tenant) tenantResponse {
	return tenantResponse{
		ID:             t.ID,
		Name:           t.Name,
		Status:         t.Status,
		QuotaPerMinute: t.QuotaPerMinute,
		CreatedAt:      t.CreatedAt,
	}
}

func integrationToResponse(i *store.Integration) integrationResponse {
	return integrationResponse{
		ID:          i.ID,
		TenantID:    i.TenantID,
		AgentID:     i.AgentID,
		ChannelKind: i.ChannelKind,
		Status:      i.Status,
		CreatedAt:   i.CreatedAt,
		LastUsedAt:  i.LastUsedAt,
	}
}

// requireAdmin gates mutations on the admin role. Open when the
// management API runs without JWT auth (local development).
func (g *Gateway) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		return true
	}
	if ac.Role != auth.RoleAdmin {
		sendJSONError(w, http.StatusForbidden, "admin role required", "")
		return false
	}
	return true
}

// actor identifies who performed a management mutation, for audit records.
func actor(r *http.Request) string {
	if ac, ok := auth.FromContext(r.Context()); ok {
		return "api:" + ac.Subject
	}
	return "api"
}

// handleCreateTenant is POST /api/tenants.
func (g *Gateway) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	if !g.requireAdmin(w, r) {
		return
	}

	var req struct {
		Name           string `json:"name"`
		QuotaPerMinute int    `json:"quota_per_minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		sendJSONError(w, http.StatusBadRequest, "name is required", "")
		return
	}
	if req.QuotaPerMinute <= 0 {
		req.QuotaPerMinute = g.cfg.RateLimit.DefaultQuota
	}

	tenant := &store.Tenant{Name: req.Name, QuotaPerMinute: req.QuotaPerMinute}
	if err := g.store.CreateTenant(r.Context(), tenant); err != nil {
		if errors.Is(err, store.ErrConflict) {
			sendJSONError(w, http.StatusConflict, "tenant already exists", "")
			return
		}
		g.internalError(w, "creating tenant", err)
		return
	}

	g.auditManagement(r, store.OutcomeTenantCreated, nil, &tenant.ID, "name="+tenant.Name)
	sendJSON(w, http.StatusCreated, tenantToResponse(tenant))
}

// handleDeactivateTenant is POST /api/tenants/{id}/deactivate. All of
// the tenant's integrations stop validating; the credential cache is
// flushed so the change takes effect immediately in this process.
func (g *Gateway) handleDeactivateTenant(w http.ResponseWriter, r *http.Request) {
	if !g.requireAdmin(w, r) {
		return
	}

	id := r.PathValue("id")
	if err := g.store.SetTenantStatus(r.Context(), id, store.StatusInactive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "tenant not found", "")
			return
		}
		g.internalError(w, "deactivating tenant", err)
		return
	}

	g.validator.FlushCache()
	g.auditManagement(r, store.OutcomeTenantDeactivated, nil, &id, "")
	sendJSON(w, http.StatusOK, map[string]string{"id": id, "status": store.StatusInactive})
}

// handleTenantUsage is GET /api/tenants/{id}/usage.
func (g *Gateway) handleTenantUsage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tenant, err := g.store.GetTenant(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "tenant not found", "")
			return
		}
		g.internalError(w, "loading tenant", err)
		return
	}

	rate, err := g.limiter.Usage(r.Context(), tenant.ID, tenant.QuotaPerMinute)
	if err != nil {
		g.internalError(w, "reading usage", err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenant.ID,
		"limit":     rate.Limit,
		"used":      rate.Count,
		"remaining": rate.Remaining,
		"reset_at":  rate.ResetAt.Unix(),
	})
}

// handleCreateIntegration is POST /api/integrations.
func (g *Gateway) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	if !g.requireAdmin(w, r) {
		return
	}

	var req struct {
		TenantID    string `json:"tenant_id"`
		AgentID     string `json:"agent_id"`
		ChannelKind string `json:"channel_kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TenantID == "" || req.AgentID == "" {
		sendJSONError(w, http.StatusBadRequest, "tenant_id and agent_id are required", "")
		return
	}
	if req.ChannelKind == "" {
		req.ChannelKind = store.ChannelGeneric
	}
	if !store.ValidChannelKind(req.ChannelKind) {
		sendJSONError(w, http.StatusBadRequest, "unknown channel_kind", req.ChannelKind)
		return
	}

	if _, err := g.store.GetTenant(r.Context(), req.TenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "tenant not found", "")
			return
		}
		g.internalError(w, "loading tenant", err)
		return
	}

	integration := &store.Integration{
		TenantID:    req.TenantID,
		AgentID:     req.AgentID,
		ChannelKind: req.ChannelKind,
	}
	if err := g.store.CreateIntegration(r.Context(), integration); err != nil {
		if errors.Is(err, store.ErrConflict) {
			sendJSONError(w, http.StatusConflict, "integration already exists", "")
			return
		}
		g.internalError(w, "creating integration", err)
		return
	}

	g.auditManagement(r, store.OutcomeIntegrationCreated, &integration.ID, &integration.TenantID,
		"agent_id="+integration.AgentID)
	sendJSON(w, http.StatusCreated, integrationToResponse(integration))
}

// handleListIntegrations is GET /api/integrations with optional ?tenant_id=.
func (g *Gateway) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := g.store.ListIntegrations(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		g.internalError(w, "listing integrations", err)
		return
	}

	out := make([]integrationResponse, 0, len(integrations))
	for _, i := range integrations {
		out = append(out, integrationToResponse(i))
	}
	sendJSON(w, http.StatusOK, map[string]any{"integrations": out})
}

// handleIssueToken is POST /api/integrations/{id}/token. The plaintext
// secret appears in this response and nowhere else, ever.
func (g *Gateway) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !g.requireAdmin(w, r) {
		return
	}

	plaintext, err := g.tokens.Issue(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		g.writeTokenError(w, err)
		return
	}

	managementEvents.WithLabelValues(string(store.OutcomeTokenIssued)).Inc()
	sendJSON(w, http.StatusCreated, map[string]string{
		"secret": plaintext,
		"note":   "store this secret now; it cannot be retrieved again",
	})
}

// handleRegenerateToken is POST /api/integrations/{id}/token/regenerate.
func (g *Gateway) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	if !g.requireAdmin(w, r) {
		return
	}

	plaintext, err := g.tokens.Regenerate(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		g.writeTokenError(w, err)
		return
	}

	managementEvents.WithLabelValues(string(store.OutcomeTokenRegenerated)).Inc()
	sendJSON(w, http.StatusOK, map[string]string{
		"secret": plaintext,
		"note":   "store this secret now; it cannot be retrieved again",
	})
}

// handleRevoke is POST /api/integrations/{id}/revoke.
func (g *Gateway) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if !g.requireAdmin(w, r) {
		return
	}

	if err := g.tokens.Revoke(r.Context(), r.PathValue("id"), actor(r)); err != nil {
		g.writeTokenError(w, err)
		return
	}

	managementEvents.WithLabelValues(string(store.OutcomeTokenRevoked)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// writeTokenError maps token manager errors onto HTTP statuses.
func (g *Gateway) writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrCredentialExists):
		sendJSONError(w, http.StatusConflict, "integration already has an active credential", "use regenerate")
	case errors.Is(err, store.ErrNotFound):
		sendJSONError(w, http.StatusNotFound, "integration not found or has no active credential", "")
	default:
		g.internalError(w, "credential operation", err)
	}
}

// handleIntegrationAudit is GET /api/integrations/{id}/audit?limit=.
func (g *Gateway) handleIntegrationAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	records, err := g.store.ListAudit(r.Context(), store.AuditFilter{
		IntegrationID: &id,
		Limit:         limit,
	})
	if err != nil {
		g.internalError(w, "listing audit records", err)
		return
	}

	out := make([]auditResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditResponse{
			ID:            rec.ID,
			Timestamp:     rec.Timestamp,
			IntegrationID: rec.IntegrationID,
			TenantID:      rec.TenantID,
			Outcome:       string(rec.Outcome),
			SourceIP:      rec.SourceIP,
			Detail:        rec.Detail,
		})
	}
	sendJSON(w, http.StatusOK, map[string]any{"records": out})
}

// handleSimulate is POST /api/integrations/{id}/simulate. The response
// is shaped exactly like a real webhook call but the request never
// counts against quota: the limiter is only read for headers.
func (g *Gateway) handleSimulate(w http.ResponseWriter, r *http.Request) {
	integration, err := g.store.GetIntegration(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "integration not found", "")
			return
		}
		g.internalError(w, "loading integration", err)
		return
	}

	tenant, err := g.store.GetTenant(r.Context(), integration.TenantID)
	if err != nil {
		g.internalError(w, "loading tenant", err)
		return
	}

	if integration.Status != store.StatusActive || tenant.Status != store.StatusActive {
		sendJSONError(w, http.StatusForbidden, "inactive", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		sendJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "")
		return
	}
	payload := json.RawMessage(`{}`)
	if len(body) > 0 {
		if !json.Valid(body) {
			sendJSONError(w, http.StatusBadRequest, "malformed_payload", "body is not valid JSON")
			return
		}
		payload = json.RawMessage(body)
	}

	rate, err := g.limiter.Usage(r.Context(), tenant.ID, tenant.QuotaPerMinute)
	if err == nil {
		setRateHeaders(w, &rate)
	} else {
		g.logger.Warn("failed to read usage for simulate", "tenant_id", tenant.ID, "error", err)
	}

	authz := &validate.Authorized{
		Integration: *integration,
		TenantQuota: tenant.QuotaPerMinute,
		Rate:        rate,
		Payload:     payload,
	}

	result, derr := g.dispatcher.Simulate(r.Context(), authz, clientIP(r))
	if derr != nil {
		sendJSONError(w, http.StatusBadGateway, "execution_error", derr.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	_, _ = w.Write(result)
}

// auditManagement writes a management audit record attributed to the caller.
func (g *Gateway) auditManagement(r *http.Request, outcome store.Outcome, integrationID, tenantID *string, detail string) {
	managementEvents.WithLabelValues(string(outcome)).Inc()
	rec := &store.AuditRecord{
		IntegrationID: integrationID,
		TenantID:      tenantID,
		Outcome:       outcome,
		SourceIP:      actor(r),
		Detail:        detail,
	}
	if err := g.store.AppendAudit(r.Context(), rec); err != nil {
		g.logger.Error("failed to append management audit record", "outcome", outcome, "error", err)
	}
}

// internalError logs and returns a generic 500.
func (g *Gateway) internalError(w http.ResponseWriter, msg string, err error) {
	g.logger.Error(msg, "error", err)
	sendJSONError(w, http.StatusInternalServerError, "internal error", "")
}
