// Package tools – collaborator.go is the shared HTTP client the tool
// handlers use to reach their backing services. It maps transport and
// non-2xx failures into the dispatcher's error taxonomy.
package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// maxResponseBytes caps how much of a collaborator response we read.
const maxResponseBytes = 4 << 20 // 4 MiB

// Collaborator issues requests against one backing service base URL.
// Handlers share a single instance per service so connections are pooled.
type Collaborator struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewCollaborator creates a client for the service at baseURL. The client
// timeout is a transport-level backstop; per-tool deadlines come from the
// dispatcher's context.
func NewCollaborator(baseURL string, timeout time.Duration, logger *slog.Logger) *Collaborator {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Collaborator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "collaborator"),
	}
}

// Get issues a GET to path with the given query parameters and returns the
// raw response body. Non-2xx statuses and transport failures come back as
// ToolError values so the dispatcher can fold them into the outcome.
func (c *Collaborator) Get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "building request: %s", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, assistant.NewToolError(assistant.ErrTransport, "request failed: %s", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "reading response: %s", err)
	}

	c.logger.Debug("collaborator call",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, assistant.NewToolError(assistant.ErrTransport,
			"%s returned status %d: %s", path, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// ---------- Parameter Coercion ----------
//
// The dispatcher passes parameters through as decoded JSON, so numbers
// arrive as float64 from the model but as Go ints when filled from a
// declared default. Handlers coerce through these helpers.

func stringParam(params map[string]any, name string) string {
	v, _ := params[name].(string)
	return v
}

func intParam(params map[string]any, name string, fallback int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func boolParam(params map[string]any, name string, fallback bool) bool {
	switch v := params[name].(type) {
	case bool:
		return v
	case string:
		if v == "true" {
			return true
		}
		if v == "false" {
			return false
		}
	}
	return fallback
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
