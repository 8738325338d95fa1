package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// scriptedModel returns canned replies in order and records its prompts.
type scriptedModel struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (m *scriptedModel) Invoke(_ context.Context, _, userPrompt string) (string, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, userPrompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i >= len(m.replies) {
		return "", fmt.Errorf("unexpected model call %d", i)
	}
	return m.replies[i], nil
}

func calendarOrchestrator(t *testing.T, model ModelInvoker) *Orchestrator {
	t.Helper()
	reg := NewRegistry()
	err := reg.Register(ToolDescriptor{
		Name:        "get_calendar_events",
		Description: "Get calendar events.",
	}, func(_ context.Context, _ map[string]any) (any, error) {
		return map[string]any{"events": []string{"standup 09:00", "review 14:00"}}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewOrchestrator(model, reg, NewDispatcher(reg, testLogger()), testLogger())
}

func TestTurn(t *testing.T) {
	t.Run("plain reply passes through verbatim", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"I think it's sunny today!"}}
		orch := calendarOrchestrator(t, model)

		reply, err := orch.Turn(context.Background(), "persona", "how's the weather?")
		if err != nil {
			t.Fatalf("turn failed: %v", err)
		}
		if reply.Text != "I think it's sunny today!" {
			t.Errorf("expected verbatim text, got %q", reply.Text)
		}
		if reply.ToolUsed != "" || reply.ToolResult != nil {
			t.Error("plain reply must not carry tool fields")
		}
		if model.calls != 1 {
			t.Errorf("expected exactly one model call, got %d", model.calls)
		}
	})

	t.Run("tool hop end to end", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			`{"tool":"get_calendar_events","parameters":{}}`,
			"You have standup at 9 and a review at 2.",
		}}
		orch := calendarOrchestrator(t, model)

		reply, err := orch.Turn(context.Background(), "persona", "what's my schedule?")
		if err != nil {
			t.Fatalf("turn failed: %v", err)
		}
		if reply.ToolUsed != "get_calendar_events" {
			t.Errorf("expected tool_used=get_calendar_events, got %q", reply.ToolUsed)
		}
		if reply.ToolResult == nil || !reply.ToolResult.OK() {
			t.Fatalf("expected successful tool result, got %+v", reply.ToolResult)
		}
		if !strings.Contains(reply.Text, "standup") {
			t.Errorf("expected natural-language summary, got %q", reply.Text)
		}
		// Follow-up prompt embeds the serialized result and the original
		// request.
		followUp := model.prompts[1]
		for _, want := range []string{"get_calendar_events", "standup 09:00", "what's my schedule?"} {
			if !strings.Contains(followUp, want) {
				t.Errorf("follow-up prompt missing %q", want)
			}
		}
	})

	t.Run("dispatch failure is narrated not fatal", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			`{"tool":"get_weather_info","parameters":{}}`,
			"Sorry, I couldn't reach the weather service.",
		}}
		orch := calendarOrchestrator(t, model)

		reply, err := orch.Turn(context.Background(), "persona", "weather?")
		if err != nil {
			t.Fatalf("turn must not fail on dispatch error: %v", err)
		}
		if reply.ToolResult == nil || reply.ToolResult.OK() {
			t.Fatal("expected failed tool result")
		}
		if reply.ToolResult.Err.Kind != ErrUnknownTool {
			t.Errorf("expected unknown_tool, got %s", reply.ToolResult.Err.Kind)
		}
		if !strings.Contains(model.prompts[1], `"status":"error"`) {
			t.Error("follow-up prompt should embed the serialized error")
		}
	})

	t.Run("first model failure fails the turn", func(t *testing.T) {
		model := &scriptedModel{errs: []error{fmt.Errorf("timeout")}}
		orch := calendarOrchestrator(t, model)
		if _, err := orch.Turn(context.Background(), "p", "hi"); err == nil {
			t.Fatal("expected turn error")
		}
	})

	t.Run("follow-up model failure fails the turn", func(t *testing.T) {
		model := &scriptedModel{
			replies: []string{`{"tool":"get_calendar_events","parameters":{}}`},
			errs:    []error{nil, fmt.Errorf("transport down")},
		}
		orch := calendarOrchestrator(t, model)
		if _, err := orch.Turn(context.Background(), "p", "schedule?"); err == nil {
			t.Fatal("expected turn error")
		}
	})

	t.Run("tool call in follow-up is not re-parsed", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			`{"tool":"get_calendar_events","parameters":{}}`,
			`{"tool":"get_calendar_events","parameters":{}}`,
		}}
		orch := calendarOrchestrator(t, model)

		reply, err := orch.Turn(context.Background(), "p", "schedule?")
		if err != nil {
			t.Fatalf("turn failed: %v", err)
		}
		// Single hop: the second JSON reply is returned verbatim.
		if model.calls != 2 {
			t.Errorf("expected exactly two model calls, got %d", model.calls)
		}
		if !strings.Contains(reply.Text, `"tool"`) {
			t.Error("follow-up JSON must pass through untouched")
		}
	})
}
