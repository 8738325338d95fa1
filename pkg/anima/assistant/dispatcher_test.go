package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func weatherRegistry(t *testing.T, handler HandlerFunc) *Registry {
	t.Helper()
	reg := NewRegistry()
	err := reg.Register(ToolDescriptor{
		Name:        "get_weather_info",
		Description: "Get weather information for a specified city.",
		Params: []Param{
			{Name: "city", Type: "string", Required: true},
			{Name: "days", Type: "integer", Default: 1},
			{Name: "formatted", Type: "boolean", Default: false},
		},
	}, handler)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestDispatcherExecute(t *testing.T) {
	t.Run("unknown tool", func(t *testing.T) {
		d := NewDispatcher(NewRegistry(), testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{Name: "nope", Parameters: map[string]any{}})
		if outcome.OK() {
			t.Fatal("expected failure")
		}
		if outcome.Err.Kind != ErrUnknownTool {
			t.Errorf("expected unknown_tool, got %s", outcome.Err.Kind)
		}
	})

	t.Run("missing required parameter", func(t *testing.T) {
		reg := weatherRegistry(t, nopHandler)
		d := NewDispatcher(reg, testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{Name: "get_weather_info", Parameters: map[string]any{}})
		if outcome.OK() {
			t.Fatal("expected failure")
		}
		if outcome.Err.Kind != ErrMissingParameter {
			t.Errorf("expected missing_parameter, got %s", outcome.Err.Kind)
		}
		if !strings.Contains(outcome.Err.Message, "city") {
			t.Errorf("error should name the parameter: %s", outcome.Err.Message)
		}
	})

	t.Run("defaults filled for absent optionals", func(t *testing.T) {
		var seen map[string]any
		reg := weatherRegistry(t, func(_ context.Context, params map[string]any) (any, error) {
			seen = params
			return "sunny", nil
		})
		d := NewDispatcher(reg, testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{
			Name:       "get_weather_info",
			Parameters: map[string]any{"city": "Tokyo"},
		})
		if !outcome.OK() {
			t.Fatalf("unexpected failure: %v", outcome.Err)
		}
		if seen["days"] != 1 {
			t.Errorf("expected default days=1, got %v", seen["days"])
		}
		if seen["formatted"] != false {
			t.Errorf("expected default formatted=false, got %v", seen["formatted"])
		}
		if seen["city"] != "Tokyo" {
			t.Errorf("expected city passthrough, got %v", seen["city"])
		}
	})

	t.Run("handler error becomes transport ToolError", func(t *testing.T) {
		reg := weatherRegistry(t, func(_ context.Context, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("connection refused")
		})
		d := NewDispatcher(reg, testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{
			Name:       "get_weather_info",
			Parameters: map[string]any{"city": "Tokyo"},
		})
		if outcome.OK() {
			t.Fatal("expected failure")
		}
		if outcome.Err.Kind != ErrTransport {
			t.Errorf("expected transport_error, got %s", outcome.Err.Kind)
		}
	})

	t.Run("handler ToolError is preserved", func(t *testing.T) {
		reg := weatherRegistry(t, func(_ context.Context, _ map[string]any) (any, error) {
			return nil, NewToolError(ErrTransport, "city not found")
		})
		d := NewDispatcher(reg, testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{
			Name:       "get_weather_info",
			Parameters: map[string]any{"city": "Atlantis"},
		})
		if outcome.OK() || outcome.Err.Message != "city not found" {
			t.Errorf("expected preserved ToolError, got %+v", outcome.Err)
		}
	})

	t.Run("per-tool timeout expires", func(t *testing.T) {
		reg := NewRegistry()
		_ = reg.Register(ToolDescriptor{
			Name:    "slow",
			Timeout: 20 * time.Millisecond,
		}, func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				return "too late", nil
			}
		})
		d := NewDispatcher(reg, testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{Name: "slow", Parameters: map[string]any{}})
		if outcome.OK() {
			t.Fatal("expected timeout failure")
		}
		if outcome.Err.Kind != ErrTransport {
			t.Errorf("expected transport_error on timeout, got %s", outcome.Err.Kind)
		}
	})

	t.Run("panicking handler becomes transport ToolError", func(t *testing.T) {
		reg := weatherRegistry(t, func(_ context.Context, _ map[string]any) (any, error) {
			panic("handler bug")
		})
		d := NewDispatcher(reg, testLogger())
		outcome := d.Execute(context.Background(), &ToolCall{
			Name:       "get_weather_info",
			Parameters: map[string]any{"city": "Tokyo"},
		})
		if outcome.OK() {
			t.Fatal("expected failure")
		}
		if outcome.Err.Kind != ErrTransport {
			t.Errorf("expected transport_error, got %s", outcome.Err.Kind)
		}
		if !strings.Contains(outcome.Err.Message, "handler bug") {
			t.Errorf("error should carry the panic value: %s", outcome.Err.Message)
		}
	})

	t.Run("audit callback observes outcome", func(t *testing.T) {
		reg := weatherRegistry(t, nopHandler)
		d := NewDispatcher(reg, testLogger())
		var audited string
		d.SetAudit(func(tool string, _ map[string]any, outcome *Outcome, _ time.Duration) {
			audited = tool + ":" + fmt.Sprint(outcome.OK())
		})
		d.Execute(context.Background(), &ToolCall{
			Name:       "get_weather_info",
			Parameters: map[string]any{"city": "Tokyo"},
		})
		if audited != "get_weather_info:true" {
			t.Errorf("unexpected audit record %q", audited)
		}
	})
}

func TestOutcomeJSON(t *testing.T) {
	t.Run("success payload", func(t *testing.T) {
		o := &Outcome{Tool: "get_gmail", Value: []map[string]string{{"subject": "hi", "sender": "a@b.c"}}}
		s := o.JSON()
		for _, want := range []string{`"status":"success"`, `"subject":"hi"`} {
			if !strings.Contains(s, want) {
				t.Errorf("serialized outcome missing %q: %s", want, s)
			}
		}
	})

	t.Run("error payload", func(t *testing.T) {
		o := &Outcome{Tool: "get_gmail", Err: NewToolError(ErrTransport, "boom")}
		s := o.JSON()
		for _, want := range []string{`"status":"error"`, `"tool":"get_gmail"`, "boom"} {
			if !strings.Contains(s, want) {
				t.Errorf("serialized outcome missing %q: %s", want, s)
			}
		}
	})
}
