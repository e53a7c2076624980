// ABOUTME: Fixed-window rate counter rows with a single-statement atomic increment
// ABOUTME: Shared across gateway replicas; never read-modify-write from process memory

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// IncrementWindow atomically increments the counter for (tenantID,
// windowStart) and returns the post-increment count. The upsert is a
// single statement, so concurrent callers across replicas sharing the
// database never lose an increment.
func (s *SQLiteStore) IncrementWindow(ctx context.Context, tenantID string, windowStart int64) (int64, error) {
	query := `
		INSERT INTO rate_windows (tenant_id, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT (tenant_id, window_start) DO UPDATE SET count = count + 1
		RETURNING count
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, tenantID, windowStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing rate window: %w", err)
	}

	return count, nil
}

// WindowCount returns the current count for (tenantID, windowStart)
// without incrementing. Missing windows count as zero.
func (s *SQLiteStore) WindowCount(ctx context.Context, tenantID string, windowStart int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM rate_windows WHERE tenant_id = ? AND window_start = ?`,
		tenantID, windowStart,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying rate window: %w", err)
	}

	return count, nil
}

// ReclaimWindows deletes windows that started before olderThan.
// Called lazily by the limiter; stale windows are harmless in the interim.
func (s *SQLiteStore) ReclaimWindows(ctx context.Context, olderThan int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_windows WHERE window_start < ?`, olderThan)
	if err != nil {
		return fmt.Errorf("reclaiming rate windows: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("reclaimed rate windows", "count", n, "older_than", olderThan)
	}
	return nil
}
