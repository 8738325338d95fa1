package assistant

import (
	"testing"
)

func TestParseToolCall(t *testing.T) {
	t.Run("plain weather call", func(t *testing.T) {
		call, ok := ParseToolCall(`{"tool":"get_weather_info","parameters":{"city":"Tokyo"}}`)
		if !ok {
			t.Fatal("expected a tool call")
		}
		if call.Name != "get_weather_info" {
			t.Errorf("expected get_weather_info, got %q", call.Name)
		}
		if call.Parameters["city"] != "Tokyo" {
			t.Errorf("expected city=Tokyo, got %v", call.Parameters["city"])
		}
	})

	t.Run("natural language is not a call", func(t *testing.T) {
		if _, ok := ParseToolCall("I think it's sunny today!"); ok {
			t.Error("expected plain reply")
		}
	})

	t.Run("fenced code block is unwrapped", func(t *testing.T) {
		raw := "```json\n{\"tool\":\"get_calendar_events\",\"parameters\":{}}\n```"
		call, ok := ParseToolCall(raw)
		if !ok {
			t.Fatal("expected a tool call inside fence")
		}
		if call.Name != "get_calendar_events" {
			t.Errorf("unexpected tool name %q", call.Name)
		}
	})

	t.Run("bare fence without language tag", func(t *testing.T) {
		raw := "```\n{\"tool\":\"get_tasks\"}\n```"
		call, ok := ParseToolCall(raw)
		if !ok {
			t.Fatal("expected a tool call")
		}
		if len(call.Parameters) != 0 {
			t.Errorf("expected empty parameters, got %v", call.Parameters)
		}
	})

	t.Run("missing parameters defaults to empty map", func(t *testing.T) {
		call, ok := ParseToolCall(`{"tool":"get_gmail"}`)
		if !ok {
			t.Fatal("expected a tool call")
		}
		if call.Parameters == nil {
			t.Fatal("parameters must never be nil")
		}
	})

	t.Run("object without tool key is a plain reply", func(t *testing.T) {
		if _, ok := ParseToolCall(`{"answer": 42}`); ok {
			t.Error("expected plain reply")
		}
	})

	t.Run("total over garbage inputs", func(t *testing.T) {
		inputs := []string{
			"", "   ", "{", "}", "[]", "null", "42", `"tool"`,
			"```", "``` \n ```", `{"tool": 7}`, `{"tool": ""}`,
			"{\"tool\":\"x\", \"parameters\": \"not an object\"}",
		}
		for _, in := range inputs {
			// Must never panic; a call is only acceptable for the
			// degraded-parameters case.
			call, ok := ParseToolCall(in)
			if ok && call.Name == "" {
				t.Errorf("input %q produced a call with empty name", in)
			}
		}
	})

	t.Run("accidental tool key is a false positive", func(t *testing.T) {
		// Documented protocol limitation: the parser cannot tell an
		// accidental {"tool": ...} object from a real call.
		call, ok := ParseToolCall(`{"tool":"hammer","weight":3}`)
		if !ok {
			t.Fatal("expected the documented false positive")
		}
		if call.Name != "hammer" {
			t.Errorf("unexpected name %q", call.Name)
		}
	})
}
