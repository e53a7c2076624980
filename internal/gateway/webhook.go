// ABOUTME: Public webhook ingress handler translating validation results to HTTP
// ABOUTME: Rate headers go on every response where the tenant was resolved

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hookgate/hookgate/internal/dispatch"
	"github.com/hookgate/hookgate/internal/ratelimit"
	"github.com/hookgate/hookgate/internal/validate"
)

// maxWebhookBody bounds inbound payload size.
const maxWebhookBody = 1 << 20

// handleWebhook is POST /webhook/{agent_id}: validate, dispatch, respond.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	agentID := r.PathValue("agent_id")
	sourceIP := clientIP(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		webhookRequests.WithLabelValues("oversize").Inc()
		sendJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "")
		return
	}

	auth, verr := g.validator.Validate(r.Context(), validate.Request{
		AgentID:    agentID,
		AuthHeader: r.Header.Get("Authorization"),
		SourceIP:   sourceIP,
		Body:       body,
	})
	if verr != nil {
		g.writeRejection(w, verr.(*validate.Rejection))
		webhookDuration.Observe(time.Since(start).Seconds())
		return
	}

	setRateHeaders(w, &auth.Rate)

	result, derr := g.dispatcher.Dispatch(r.Context(), auth, sourceIP)
	if derr != nil {
		var execErr *dispatch.ExecutionError
		detail := derr.Error()
		if errors.As(derr, &execErr) {
			detail = execErr.Detail
		}
		webhookRequests.WithLabelValues("execution_error").Inc()
		webhookDuration.Observe(time.Since(start).Seconds())
		sendJSONError(w, http.StatusBadGateway, "execution_error", detail)
		return
	}

	webhookRequests.WithLabelValues("accepted").Inc()
	webhookDuration.Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	_, _ = w.Write(result)
}

// writeRejection maps a validator rejection onto the HTTP response.
func (g *Gateway) writeRejection(w http.ResponseWriter, rej *validate.Rejection) {
	webhookRequests.WithLabelValues(string(rej.Outcome)).Inc()

	if rej.Rate != nil {
		setRateHeaders(w, rej.Rate)
	}

	if rej.Code == "rate_limited" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rej.Status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":     "rate_limited",
			"limit":     rej.Rate.Limit,
			"remaining": 0,
			"reset_at":  rej.Rate.ResetAt.Unix(),
		})
		return
	}

	sendJSONError(w, rej.Status, rej.Code, "")
}

// setRateHeaders writes the standard rate-limit headers from a limiter result.
func setRateHeaders(w http.ResponseWriter, rate *ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rate.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rate.ResetAt.Unix(), 10))
}

// clientIP resolves the caller address, honoring the first entry of
// X-Forwarded-For when a proxy sits in front of the gateway.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sendJSON writes a JSON response with the given status.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes the standard error body. Detail is omitted when empty.
func sendJSONError(w http.ResponseWriter, status int, code, detail string) {
	body := map[string]string{"error": code}
	if detail != "" {
		body["detail"] = detail
	}
	sendJSON(w, status, body)
}
