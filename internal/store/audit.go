// ABOUTME: Audit record entity and store methods for the append-only access log
// ABOUTME: Every webhook attempt and every management event produces exactly one record

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies an audit record.
type Outcome string

// Access-attempt outcomes, written once per webhook request.
const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeSimulated      Outcome = "simulated"
	OutcomeInvalidToken   Outcome = "invalid_token"
	OutcomeInactive       Outcome = "inactive"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeExecutionError Outcome = "execution_error"
)

// Management-event outcomes, disjoint from the access-attempt set.
const (
	OutcomeTenantCreated          Outcome = "tenant_created"
	OutcomeTenantDeactivated      Outcome = "tenant_deactivated"
	OutcomeIntegrationCreated     Outcome = "integration_created"
	OutcomeIntegrationDeactivated Outcome = "integration_deactivated"
	OutcomeTokenIssued            Outcome = "token_issued"
	OutcomeTokenRegenerated       Outcome = "token_regenerated"
	OutcomeTokenRevoked           Outcome = "token_revoked"
)

// AuditRecord is a single append-only access or management event.
// IntegrationID and TenantID are nil when the bearer token could not
// be resolved to an integration.
type AuditRecord struct {
	ID            string
	Timestamp     time.Time
	IntegrationID *string
	TenantID      *string
	Outcome       Outcome
	SourceIP      string
	Detail        string
}

// AuditFilter specifies filtering options for listing audit records.
type AuditFilter struct {
	IntegrationID *string
	TenantID      *string
	Outcome       *Outcome
	Since         *time.Time
	Limit         int // max results (default 100, max 1000)
}

// AppendAudit appends a record to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_records (audit_id, ts, integration_id, tenant_id, outcome, source_ip, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.IntegrationID,
		rec.TenantID,
		string(rec.Outcome),
		rec.SourceIP,
		nullString(rec.Detail),
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	s.logger.Debug("appended audit record",
		"id", rec.ID,
		"outcome", rec.Outcome,
		"source_ip", rec.SourceIP,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditListQuery = `
	SELECT audit_id, ts, integration_id, tenant_id, outcome, source_ip, detail
	FROM audit_records
	WHERE (? IS NULL OR integration_id = ?)
	  AND (? IS NULL OR tenant_id = ?)
	  AND (? IS NULL OR outcome = ?)
	  AND (? IS NULL OR ts >= ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAudit returns audit records matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAudit(ctx context.Context, f AuditFilter) ([]AuditRecord, error) {
	limit := normalizeAuditLimit(f.Limit)

	var outcomeStr, sinceStr *string
	if f.Outcome != nil {
		o := string(*f.Outcome)
		outcomeStr = &o
	}
	if f.Since != nil {
		t := f.Since.UTC().Format(time.RFC3339Nano)
		sinceStr = &t
	}

	rows, err := s.db.QueryContext(ctx, auditListQuery,
		f.IntegrationID, f.IntegrationID,
		f.TenantID, f.TenantID,
		outcomeStr, outcomeStr,
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []AuditRecord
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}

	if records == nil {
		records = []AuditRecord{}
	}
	return records, nil
}

// scanAuditRecord scans a row into an AuditRecord.
func scanAuditRecord(scanner interface{ Scan(dest ...any) error }) (AuditRecord, error) {
	var rec AuditRecord
	var tsStr, outcomeStr string
	var detail sql.NullString

	if err := scanner.Scan(
		&rec.ID,
		&tsStr,
		&rec.IntegrationID,
		&rec.TenantID,
		&outcomeStr,
		&rec.SourceIP,
		&detail,
	); err != nil {
		return rec, fmt.Errorf("scanning audit record: %w", err)
	}

	rec.Outcome = Outcome(outcomeStr)
	if detail.Valid {
		rec.Detail = detail.String
	}

	var err error
	rec.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return rec, fmt.Errorf("parsing timestamp: %w", err)
	}

	return rec, nil
}
