// Package assistant – prompt.go renders the registry and persona into the
// model-facing system prompt, and composes the follow-up prompt that folds
// a tool result back into a second model call.
package assistant

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt concatenates the persona with a rendering of every
// registered tool and the strict output contract. It is a pure function of
// its inputs; given the same persona and schema it always produces the
// same text.
func BuildSystemPrompt(persona string, schema []ToolDescriptor) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(persona))
	sb.WriteString("\n\n")

	sb.WriteString("You have access to the following tools:\n\n")
	for _, desc := range schema {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", desc.Name, desc.Description))
		for _, p := range desc.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			sb.WriteString(fmt.Sprintf("    - %s (%s, %s): %s", p.Name, p.Type, req, p.Description))
			if !p.Required && p.Default != nil {
				sb.WriteString(fmt.Sprintf(" Default: %v.", p.Default))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nWhen one of these tools applies to the user's request, respond with ")
	sb.WriteString("ONLY a JSON object of the form {\"tool\": \"<name>\", \"parameters\": {...}} ")
	sb.WriteString("and nothing else. Use an empty object for \"parameters\" when the tool ")
	sb.WriteString("takes none. When no tool applies, answer in natural language and do not ")
	sb.WriteString("emit any JSON.")

	return sb.String()
}

// BuildFollowUpPrompt embeds a tool outcome and the original request into
// the prompt for the second model call of a turn. The outcome may be a
// success payload or a serialized ToolError; either way the model is asked
// to answer the user with it.
func BuildFollowUpPrompt(toolName, serializedOutcome, userPrompt string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The tool %q was executed for the user's request and returned:\n\n", toolName))
	sb.WriteString(serializedOutcome)
	sb.WriteString("\n\nOriginal request: ")
	sb.WriteString(userPrompt)
	sb.WriteString("\n\nAnswer the user in natural language using this result. ")
	sb.WriteString("If the result is an error, explain briefly what went wrong. Do not emit JSON.")
	return sb.String()
}
