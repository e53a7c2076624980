// Package gateway orchestrates the hookgate server components.
//
// # Overview
//
// The gateway package is the central coordinator. It owns and wires the
// major components: SQLite store, rate limiter (SQLite or Redis backed),
// request validator, token manager, dispatcher and the HTTP server.
//
// # HTTP API
//
// Public webhook ingress (bearer = integration secret):
//
//   - POST /webhook/{agent_id} - Validate and dispatch to the executor
//
// Management API (bearer = JWT, admin role for mutations):
//
//   - POST /api/tenants - Create a tenant
//   - POST /api/tenants/{id}/deactivate - Deactivate a tenant
//   - GET  /api/tenants/{id}/usage - Current window usage
//   - POST /api/integrations - Create an integration
//   - GET  /api/integrations - List integrations
//   - POST /api/integrations/{id}/token - Issue the first credential
//   - POST /api/integrations/{id}/token/regenerate - Rotate atomically
//   - POST /api/integrations/{id}/revoke - Revoke and deactivate
//   - GET  /api/integrations/{id}/audit - Recent audit records
//   - POST /api/integrations/{id}/simulate - Dry run, never counted
//   - GET  /health - Liveness check
//   - GET  /metrics - Prometheus metrics (when enabled)
//
// Every webhook response where the tenant was resolved carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx)
//
// Run blocks until ctx is cancelled, then shuts the HTTP server down
// gracefully and releases the store, cache and limiter.
package gateway
