// Package tools – search.go exposes web_search, backed by a DuckDuckGo
// search sidecar. Searches can be slow, so the descriptor carries a wide
// execution timeout.
package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// SlowToolTimeout is the execution deadline for tools that fan out to the
// open internet (search, retrieval).
const SlowToolTimeout = 50 * time.Second

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// RegisterSearchTool registers web_search against the search collaborator.
func RegisterSearchTool(reg *assistant.Registry, c *Collaborator) error {
	return reg.Register(assistant.ToolDescriptor{
		Name:        "web_search",
		Description: "Search the web. Returns a list of results with title, url, and snippet.",
		Params: []assistant.Param{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "max_results", Type: "number", Description: "Number of results, 1 to 20", Default: 5},
			{Name: "region", Type: "string", Description: `Locale bias such as "us-en" or "au-en"`, Default: "wt-wt"},
		},
		Timeout: SlowToolTimeout,
	}, func(ctx context.Context, params map[string]any) (any, error) {
		query := strings.TrimSpace(stringParam(params, "query"))
		if query == "" {
			return nil, assistant.NewToolError(assistant.ErrMissingParameter, "missing required parameter %q", "query")
		}
		maxResults := clampInt(intParam(params, "max_results", 5), 1, 20)
		region := strings.TrimSpace(stringParam(params, "region"))
		if region == "" {
			region = "wt-wt"
		}

		body, err := c.Get(ctx, "/search", map[string]string{
			"query":       query,
			"max_results": strconv.Itoa(maxResults),
			"region":      region,
		})
		if err != nil {
			return nil, err
		}

		var results []SearchResult
		if err := json.Unmarshal(body, &results); err != nil {
			// Some deployments wrap the list.
			var wrapped struct {
				Results []SearchResult `json:"results"`
			}
			if err := json.Unmarshal(body, &wrapped); err != nil {
				return nil, assistant.NewToolError(assistant.ErrTransport, "search response: %s", err)
			}
			results = wrapped.Results
		}
		if len(results) > maxResults {
			results = results[:maxResults]
		}
		return results, nil
	})
}
