// ABOUTME: Fixed-window rate limiting keyed by tenant and window start
// ABOUTME: Increment-and-check is one atomic operation against a shared store

package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Result is the outcome of one limiter consultation. ResetAt is the end
// of the current window; callers surface it so clients can back off.
type Result struct {
	Count     int64
	Limit     int
	Remaining int
	Allowed   bool
	ResetAt   time.Time
}

// Limiter is a fixed-window counter shared by all gateway replicas.
// Counting is fixed-window, not sliding: a burst of up to 2x quota is
// possible straddling a window boundary. Accepted trade-off for O(1)
// bookkeeping.
type Limiter interface {
	// IncrementAndCheck counts one request for the tenant and reports
	// whether it is within quota.
	IncrementAndCheck(ctx context.Context, tenantID string, quota int) (Result, error)

	// Usage reports the current window without counting a request.
	Usage(ctx context.Context, tenantID string, quota int) (Result, error)
}

// windowStart floors t to the start of its window, as a unix timestamp.
func windowStart(t time.Time, window time.Duration) int64 {
	secs := int64(window.Seconds())
	return t.Unix() - t.Unix()%secs
}

// WindowStore is the persistence the store-backed limiter needs.
type WindowStore interface {
	IncrementWindow(ctx context.Context, tenantID string, windowStart int64) (int64, error)
	WindowCount(ctx context.Context, tenantID string, windowStart int64) (int64, error)
	ReclaimWindows(ctx context.Context, olderThan int64) error
}

// StoreLimiter counts against the shared SQLite store. Every replica
// pointed at the same database sees the same counts.
type StoreLimiter struct {
	windows WindowStore
	window  time.Duration
	logger  *slog.Logger

	// last window for which reclamation ran, to keep cleanup lazy
	reclaimed atomic.Int64
}

// NewStoreLimiter creates a limiter backed by the shared window store.
func NewStoreLimiter(windows WindowStore, window time.Duration, logger *slog.Logger) *StoreLimiter {
	return &StoreLimiter{
		windows: windows,
		window:  window,
		logger:  logger.With("component", "ratelimit"),
	}
}

// IncrementAndCheck atomically increments the tenant's current window
// and compares against quota. Windows older than two periods are
// reclaimed lazily, at most once per window per process.
func (l *StoreLimiter) IncrementAndCheck(ctx context.Context, tenantID string, quota int) (Result, error) {
	now := time.Now().UTC()
	ws := windowStart(now, l.window)

	count, err := l.windows.IncrementWindow(ctx, tenantID, ws)
	if err != nil {
		return Result{}, err
	}

	l.maybeReclaim(ctx, ws)

	return buildResult(count, quota, ws, l.window), nil
}

// Usage reads the current window count without incrementing.
func (l *StoreLimiter) Usage(ctx context.Context, tenantID string, quota int) (Result, error) {
	now := time.Now().UTC()
	ws := windowStart(now, l.window)

	count, err := l.windows.WindowCount(ctx, tenantID, ws)
	if err != nil {
		return Result{}, err
	}

	return buildResult(count, quota, ws, l.window), nil
}

// maybeReclaim deletes windows older than two periods, once per window.
func (l *StoreLimiter) maybeReclaim(ctx context.Context, ws int64) {
	prev := l.reclaimed.Load()
	if prev >= ws || !l.reclaimed.CompareAndSwap(prev, ws) {
		return
	}

	olderThan := ws - 2*int64(l.window.Seconds())
	if err := l.windows.ReclaimWindows(ctx, olderThan); err != nil {
		l.logger.Warn("failed to reclaim rate windows", "error", err)
	}
}

// buildResult assembles a Result from a window count.
func buildResult(count int64, quota int, ws int64, window time.Duration) Result {
	remaining := quota - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Count:     count,
		Limit:     quota,
		Remaining: remaining,
		Allowed:   count <= int64(quota),
		ResetAt:   time.Unix(ws, 0).UTC().Add(window),
	}
}

// Ensure StoreLimiter implements Limiter.
var _ Limiter = (*StoreLimiter)(nil)
