// ABOUTME: Request Validator pipeline authenticating every inbound webhook call
// ABOUTME: Bearer parse, constant-time credential check, status checks, quota, one audit record per attempt

package validate

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hookgate/hookgate/internal/ratelimit"
	"github.com/hookgate/hookgate/internal/store"
	"github.com/hookgate/hookgate/internal/token"
)

// CredentialSource is the subset of the store the validator reads.
type CredentialSource interface {
	LookupCredential(ctx context.Context, tokenID string) (*store.CredentialLookup, error)
	TouchIntegration(ctx context.Context, id string, when time.Time) error
}

// AuditSink records access attempts.
type AuditSink interface {
	AppendAudit(ctx context.Context, rec *store.AuditRecord) error
}

// Request carries everything the validator needs about an inbound call.
type Request struct {
	AgentID    string
	AuthHeader string
	SourceIP   string
	Body       []byte
}

// Authorized is the successful validation result handed to the dispatcher.
type Authorized struct {
	Integration store.Integration
	TenantQuota int
	Rate        ratelimit.Result
	Payload     json.RawMessage
}

// Rejection is a terminal validation failure. It carries the audit
// outcome, the HTTP status and error code to surface, and the rate
// result when the tenant was resolved (for rate headers).
type Rejection struct {
	Outcome store.Outcome
	Code    string
	Status  int
	Detail  string
	Rate    *ratelimit.Result
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return string(r.Outcome) + ": " + r.Detail
}

// Validator authenticates inbound webhook calls. Steps run in order and
// short-circuit; every rejection writes exactly one audit record. The
// final acceptance record is written by the dispatcher once the
// execution outcome is known.
type Validator struct {
	creds    CredentialSource
	audit    AuditSink
	limiter  ratelimit.Limiter
	cache    *credentialCache
	suspects *suspectTracker
	pepper   []byte
	logger   *slog.Logger
}

// New creates a validator. cacheTTL bounds how long a cached credential
// lookup may be served; revoke/regenerate invalidate synchronously via
// InvalidateToken.
func New(creds CredentialSource, audit AuditSink, limiter ratelimit.Limiter, pepper []byte, cacheTTL time.Duration, logger *slog.Logger) *Validator {
	return &Validator{
		creds:    creds,
		audit:    audit,
		limiter:  limiter,
		cache:    newCredentialCache(cacheTTL),
		suspects: newSuspectTracker(),
		pepper:   pepper,
		logger:   logger.With("component", "validator"),
	}
}

// InvalidateToken removes a token's cached lookup. Called by the token
// manager inside revoke/regenerate.
func (v *Validator) InvalidateToken(tokenID string) {
	v.cache.InvalidateToken(tokenID)
}

// FlushCache drops all cached lookups. Called on tenant-level state
// changes where the affected token IDs are not known.
func (v *Validator) FlushCache() {
	v.cache.Flush()
}

// Close releases the cache's background goroutine.
func (v *Validator) Close() {
	v.cache.Close()
}

// Validate runs the authentication pipeline for one inbound call.
// On failure the returned error is a *Rejection already recorded in the
// audit log; infrastructure failures reject closed as execution_error.
func (v *Validator) Validate(ctx context.Context, req Request) (*Authorized, error) {
	// Step 1: parse the bearer secret. Absent or malformed rejects
	// without a store lookup.
	tokenID, secret, ok := parseBearer(req.AuthHeader)
	if !ok {
		return nil, v.rejectInvalidToken(ctx, req, "missing or malformed bearer credential")
	}

	// Step 2: resolve a non-revoked credential and compare in constant
	// time. Unknown token IDs burn the same hashing work so timing does
	// not reveal whether the token ID exists.
	lk, err := v.lookup(ctx, tokenID)
	if errors.Is(err, store.ErrNotFound) {
		token.DummyVerify(v.pepper, secret)
		return nil, v.rejectInvalidToken(ctx, req, "bearer did not match a credential")
	}
	if err != nil {
		return nil, v.rejectClosed(ctx, req, "credential store unavailable", err)
	}

	if !token.VerifySecret(v.pepper, lk.Salt, secret, lk.SecretHash) {
		return nil, v.rejectInvalidToken(ctx, req, "secret mismatch for token "+tokenID)
	}
	if subtle.ConstantTimeCompare([]byte(lk.Integration.AgentID), []byte(req.AgentID)) != 1 {
		return nil, v.rejectInvalidToken(ctx, req, "credential does not authorize agent "+req.AgentID)
	}

	// Step 3: activation checks on the integration and its tenant.
	if lk.Integration.Status != store.StatusActive || lk.TenantStatus != store.StatusActive {
		detail := "integration inactive"
		if lk.TenantStatus != store.StatusActive {
			detail = "tenant inactive"
		}
		return nil, v.reject(ctx, req, &Rejection{
			Outcome: store.OutcomeInactive,
			Code:    "inactive",
			Status:  http.StatusForbidden,
			Detail:  detail,
			Rate:    v.usageFor(ctx, lk),
		}, &lk.Integration)
	}

	// Step 4: count the request against the tenant's quota.
	rate, err := v.limiter.IncrementAndCheck(ctx, lk.Integration.TenantID, lk.TenantQuota)
	if err != nil {
		return nil, v.rejectClosed(ctx, req, "rate limiter unavailable", err)
	}
	if !rate.Allowed {
		return nil, v.reject(ctx, req, &Rejection{
			Outcome: store.OutcomeRateLimited,
			Code:    "rate_limited",
			Status:  http.StatusTooManyRequests,
			Detail:  "tenant quota exceeded",
			Rate:    &rate,
		}, &lk.Integration)
	}

	// Step 5: accept. Parse the payload, record usage, hand off to the
	// dispatcher (which writes the single audit record for the attempt).
	payload, perr := parsePayload(req.Body)
	if perr != nil {
		return nil, v.reject(ctx, req, &Rejection{
			Outcome: store.OutcomeExecutionError,
			Code:    "malformed_payload",
			Status:  http.StatusBadRequest,
			Detail:  "body is not valid JSON",
			Rate:    &rate,
		}, &lk.Integration)
	}

	if err := v.creds.TouchIntegration(ctx, lk.Integration.ID, time.Now().UTC()); err != nil {
		v.logger.Warn("failed to update last_used_at", "integration_id", lk.Integration.ID, "error", err)
	}
	v.suspects.RecordSuccess(req.SourceIP)

	return &Authorized{
		Integration: lk.Integration,
		TenantQuota: lk.TenantQuota,
		Rate:        rate,
		Payload:     payload,
	}, nil
}

// lookup serves a credential lookup from cache, falling back to the store.
func (v *Validator) lookup(ctx context.Context, tokenID string) (*store.CredentialLookup, error) {
	if lk := v.cache.Get(tokenID); lk != nil {
		return lk, nil
	}

	lk, err := v.creds.LookupCredential(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	v.cache.Put(tokenID, lk)
	return lk, nil
}

// rejectInvalidToken records an invalid_token rejection, flagging the
// source as suspicious after repeated consecutive failures.
func (v *Validator) rejectInvalidToken(ctx context.Context, req Request, detail string) *Rejection {
	if v.suspects.RecordFailure(req.SourceIP, time.Now().UTC()) {
		detail += " [suspicious: repeated invalid tokens from source]"
	}
	rej := &Rejection{
		Outcome: store.OutcomeInvalidToken,
		Code:    "invalid_token",
		Status:  http.StatusForbidden,
		Detail:  detail,
	}
	// Token unresolved, so no integration/tenant attribution
	return v.reject(ctx, req, rej, nil)
}

// rejectClosed fails closed on infrastructure errors in the validation path.
func (v *Validator) rejectClosed(ctx context.Context, req Request, detail string, err error) *Rejection {
	v.logger.Error("validation infrastructure failure", "detail", detail, "error", err)
	return v.reject(ctx, req, &Rejection{
		Outcome: store.OutcomeExecutionError,
		Code:    "execution_error",
		Status:  http.StatusBadGateway,
		Detail:  detail,
	}, nil)
}

// reject writes the attempt's single audit record and returns the rejection.
func (v *Validator) reject(ctx context.Context, req Request, rej *Rejection, integration *store.Integration) *Rejection {
	rec := &store.AuditRecord{
		Outcome:  rej.Outcome,
		SourceIP: req.SourceIP,
		Detail:   rej.Detail,
	}
	if integration != nil {
		rec.IntegrationID = &integration.ID
		rec.TenantID = &integration.TenantID
	}
	if err := v.audit.AppendAudit(ctx, rec); err != nil {
		v.logger.Error("failed to append audit record", "outcome", rej.Outcome, "error", err)
	}
	return rej
}

// usageFor reads the tenant's current window for rate headers on
// rejections that never reach the counter. Best effort.
func (v *Validator) usageFor(ctx context.Context, lk *store.CredentialLookup) *ratelimit.Result {
	rate, err := v.limiter.Usage(ctx, lk.Integration.TenantID, lk.TenantQuota)
	if err != nil {
		v.logger.Warn("failed to read rate usage", "tenant_id", lk.Integration.TenantID, "error", err)
		return nil
	}
	return &rate
}

// parseBearer extracts and parses the webhook secret from an
// Authorization header value.
func parseBearer(header string) (tokenID, secret string, ok bool) {
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", "", false
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" {
		return "", "", false
	}
	return token.ParseSecret(raw)
}

// parsePayload validates the request body as JSON. Empty bodies are
// treated as an empty object so callers can trigger agents without
// arguments.
func parsePayload(body []byte) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, errors.New("invalid JSON")
	}
	return json.RawMessage(trimmed), nil
}
