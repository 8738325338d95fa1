// Package tools – rag.go exposes rag_search, a retrieval query against the
// vector store sidecar.
package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// RetrievedChunk is one retrieval hit with its similarity score.
type RetrievedChunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}

// RegisterRAGTool registers rag_search against the retrieval collaborator.
func RegisterRAGTool(reg *assistant.Registry, c *Collaborator) error {
	return reg.Register(assistant.ToolDescriptor{
		Name:        "rag_search",
		Description: "Search the user's personal document store and return the most relevant passages.",
		Params: []assistant.Param{
			{Name: "query", Type: "string", Description: "What to look for", Required: true},
			{Name: "top_k", Type: "number", Description: "How many passages to return", Default: 3},
		},
		Timeout: SlowToolTimeout,
	}, func(ctx context.Context, params map[string]any) (any, error) {
		query := strings.TrimSpace(stringParam(params, "query"))
		if query == "" {
			return nil, assistant.NewToolError(assistant.ErrMissingParameter, "missing required parameter %q", "query")
		}
		topK := intParam(params, "top_k", 3)
		if topK < 1 {
			topK = 3
		}

		body, err := c.Get(ctx, "/rag/search", map[string]string{
			"query": query,
			"top_k": strconv.Itoa(topK),
		})
		if err != nil {
			return nil, err
		}

		var chunks []RetrievedChunk
		if err := json.Unmarshal(body, &chunks); err != nil {
			var wrapped struct {
				Chunks []RetrievedChunk `json:"chunks"`
			}
			if err := json.Unmarshal(body, &wrapped); err != nil {
				return nil, assistant.NewToolError(assistant.ErrTransport, "retrieval response: %s", err)
			}
			chunks = wrapped.Chunks
		}
		if len(chunks) == 0 {
			return "no matching passages", nil
		}
		return chunks, nil
	})
}
