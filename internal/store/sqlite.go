// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides integration/credential/audit persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Wait out writer contention instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			tenant_id        TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			status           TEXT NOT NULL,
			quota_per_minute INTEGER NOT NULL,
			created_at       TEXT NOT NULL,

			CHECK (status IN ('active', 'inactive'))
		);

		CREATE TABLE IF NOT EXISTS integrations (
			integration_id TEXT PRIMARY KEY,
			tenant_id      TEXT NOT NULL REFERENCES tenants(tenant_id),
			agent_id       TEXT NOT NULL,
			channel_kind   TEXT NOT NULL,
			status         TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			last_used_at   TEXT,

			CHECK (channel_kind IN ('generic', 'chat-platform', 'automation-tool')),
			CHECK (status IN ('active', 'inactive'))
		);

		CREATE INDEX IF NOT EXISTS idx_integrations_tenant ON integrations(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_integrations_agent ON integrations(agent_id);

		CREATE TABLE IF NOT EXISTS credentials (
			token_id       TEXT PRIMARY KEY,
			integration_id TEXT NOT NULL REFERENCES integrations(integration_id),
			secret_hash    TEXT NOT NULL,
			salt           TEXT NOT NULL,
			issued_at      TEXT NOT NULL,
			revoked_at     TEXT
		);

		-- At most one non-revoked credential per integration
		CREATE UNIQUE INDEX IF NOT EXISTS idx_credentials_active
			ON credentials(integration_id) WHERE revoked_at IS NULL;

		CREATE TABLE IF NOT EXISTS audit_records (
			audit_id       TEXT PRIMARY KEY,
			ts             TEXT NOT NULL,
			integration_id TEXT,
			tenant_id      TEXT,
			outcome        TEXT NOT NULL,
			source_ip      TEXT NOT NULL,
			detail         TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_records(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_integration ON audit_records(integration_id);
		CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_records(tenant_id);

		CREATE TABLE IF NOT EXISTS rate_windows (
			tenant_id    TEXT NOT NULL,
			window_start INTEGER NOT NULL,
			count        INTEGER NOT NULL,

			PRIMARY KEY (tenant_id, window_start)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullString converts an empty string to a NULL-able sql value.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isConstraintViolation reports whether err is a SQLite constraint error.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint")
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
