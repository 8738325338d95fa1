// Package assistant – parser.go classifies raw model output as either a
// structured tool call or a plain natural-language reply.
package assistant

import (
	"encoding/json"
	"strings"
)

// ToolCall is a structured invocation request authored by the model inside
// its free-text output.
type ToolCall struct {
	Name       string
	Parameters map[string]any
}

// ParseToolCall decides whether raw model text is a tool call. It is total:
// for any input it returns either a call or ok=false, never an error.
//
// The text is trimmed, unwrapped from a fenced code block if present, and
// decoded as JSON. A decoded object containing a "tool" key becomes a
// ToolCall; anything else (decode failure, non-object, missing key) is a
// plain reply. A reply that merely happens to be a JSON object with a
// "tool" key is misread as a call; that is a known limitation of the
// protocol, not something the parser tries to correct.
func ParseToolCall(raw string) (*ToolCall, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}

	text = stripCodeFence(text)

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, false
	}

	rawName, ok := decoded["tool"]
	if !ok {
		return nil, false
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
		return nil, false
	}

	params := map[string]any{}
	if rawParams, ok := decoded["parameters"]; ok {
		// A malformed or non-object parameters value degrades to empty
		// parameters rather than failing the whole call.
		_ = json.Unmarshal(rawParams, &params)
	}

	return &ToolCall{Name: name, Parameters: params}, true
}

// stripCodeFence removes a surrounding Markdown code fence, keeping only
// the enclosed lines. Handles both ``` and ```json openers.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
