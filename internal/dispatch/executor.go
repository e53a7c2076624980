// ABOUTME: HTTP client for the external agent executor collaborator
// ABOUTME: One bounded-timeout POST per dispatch; the result JSON is returned verbatim

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ExecRequest is what the gateway hands the agent executor.
type ExecRequest struct {
	AgentID       string          `json:"agent_id"`
	TenantID      string          `json:"tenant_id"`
	IntegrationID string          `json:"integration_id"`
	Payload       json.RawMessage `json:"payload"`
	Simulate      bool            `json:"simulate"`
}

// Executor invokes an agent with a payload and returns its JSON result.
// Implementations must respect context cancellation; the dispatcher
// bounds every call with a timeout.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (json.RawMessage, error)
}

// HTTPExecutor calls the executor service over HTTP JSON.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExecutor creates an executor client for the given base URL.
func NewHTTPExecutor(baseURL string) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Execute POSTs the request to the executor and returns its response
// body verbatim. Non-200 responses and transport failures are errors.
func (e *HTTPExecutor) Execute(ctx context.Context, req ExecRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding executor request: %w", err)
	}

	url := e.baseURL + "/agents/" + req.AgentID + "/execute"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building executor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling executor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	result, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading executor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned status %d", resp.StatusCode)
	}

	return json.RawMessage(result), nil
}

// Ensure HTTPExecutor implements Executor.
var _ Executor = (*HTTPExecutor)(nil)
