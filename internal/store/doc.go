// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// SQLiteStore is the exclusive owner of all gateway state. The Store
// interface covers five concerns:
//
//   - Tenants: activation/quota snapshot consulted on every webhook call
//   - Integrations: tenant + agent + channel bindings (soft-delete only)
//   - Credentials: salted secret hashes, at most one non-revoked per
//     integration (enforced by a partial unique index)
//   - Audit records: append-only access and management event log
//   - Rate windows: shared fixed-window counters incremented atomically
//
// # Data Models
//
//   - Tenant: owning account with status and quota_per_minute
//   - Integration: binds one tenant's agent to one external channel
//   - Credential: token_id, secret_hash, salt, issued_at, revoked_at
//   - CredentialLookup: the credential/integration/tenant join the
//     validator needs for one authentication decision
//   - AuditRecord: one row per webhook attempt or management event
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as RFC3339 text. Rate window increments use a
// single upsert-returning statement so replicas sharing the database
// never lose a count.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrConflict: operation conflicts with existing state
//   - ErrCredentialExists: integration already has a non-revoked credential
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewSQLiteStore with a t.TempDir() path, or ":memory:" for
// in-memory integration tests.
package store
