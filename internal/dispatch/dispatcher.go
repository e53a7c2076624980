// ABOUTME: Webhook Dispatcher orchestrating validated requests into the agent executor
// ABOUTME: Writes the final audit record per attempt; simulate is audited distinctly and never retried

package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hookgate/hookgate/internal/store"
	"github.com/hookgate/hookgate/internal/validate"
)

// AuditSink records dispatch outcomes.
type AuditSink interface {
	AppendAudit(ctx context.Context, rec *store.AuditRecord) error
}

// ExecutionError is returned when the executor fails or times out.
// The gateway does not retry: webhook payloads may not be idempotent,
// so retries are the caller's responsibility.
type ExecutionError struct {
	Detail string
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return "execution error: " + e.Detail
}

// Dispatcher invokes the agent executor for validated requests.
type Dispatcher struct {
	exec    Executor
	audit   AuditSink
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a dispatcher with a bounded per-call executor timeout.
func New(exec Executor, audit AuditSink, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		exec:    exec,
		audit:   audit,
		timeout: timeout,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Dispatch invokes the executor for a real webhook call and writes the
// attempt's audit record: accepted on success, execution_error on
// executor failure or timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, auth *validate.Authorized, sourceIP string) (json.RawMessage, error) {
	return d.run(ctx, auth, sourceIP, false)
}

// Simulate runs the identical path tagged so the audit outcome is
// distinguishable from real traffic. The caller is responsible for not
// counting the request against quota.
func (d *Dispatcher) Simulate(ctx context.Context, auth *validate.Authorized, sourceIP string) (json.RawMessage, error) {
	return d.run(ctx, auth, sourceIP, true)
}

func (d *Dispatcher) run(ctx context.Context, auth *validate.Authorized, sourceIP string, simulate bool) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.exec.Execute(ctx, ExecRequest{
		AgentID:       auth.Integration.AgentID,
		TenantID:      auth.Integration.TenantID,
		IntegrationID: auth.Integration.ID,
		Payload:       auth.Payload,
		Simulate:      simulate,
	})
	if err != nil {
		d.logger.Error("executor call failed",
			"integration_id", auth.Integration.ID,
			"agent_id", auth.Integration.AgentID,
			"simulate", simulate,
			"error", err,
		)
		d.record(ctx, auth, sourceIP, store.OutcomeExecutionError, err.Error())
		return nil, &ExecutionError{Detail: err.Error()}
	}

	outcome := store.OutcomeAccepted
	if simulate {
		outcome = store.OutcomeSimulated
	}
	d.record(ctx, auth, sourceIP, outcome, "")

	return result, nil
}

// record writes the single audit record for a dispatched attempt.
// Uses a fresh context so an executor timeout cannot also kill the write.
func (d *Dispatcher) record(_ context.Context, auth *validate.Authorized, sourceIP string, outcome store.Outcome, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &store.AuditRecord{
		IntegrationID: &auth.Integration.ID,
		TenantID:      &auth.Integration.TenantID,
		Outcome:       outcome,
		SourceIP:      sourceIP,
		Detail:        detail,
	}
	if err := d.audit.AppendAudit(ctx, rec); err != nil {
		d.logger.Error("failed to append dispatch audit record", "outcome", outcome, "error", err)
	}
}
