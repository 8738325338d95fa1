// Package assistant – dispatcher.go validates tool calls against the
// registry and executes them with a per-tool timeout, normalizing every
// failure into a ToolError value.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// DefaultToolTimeout bounds a single tool execution unless the descriptor
// overrides it.
const DefaultToolTimeout = 10 * time.Second

// Outcome is the result of dispatching one tool call: either a normalized
// success payload or a ToolError. Exactly one of Value and Err is set.
type Outcome struct {
	Tool  string     `json:"tool"`
	Value any        `json:"result,omitempty"`
	Err   *ToolError `json:"error,omitempty"`
}

// OK reports whether the dispatch succeeded.
func (o *Outcome) OK() bool {
	return o.Err == nil
}

// JSON serializes the outcome for embedding into the follow-up prompt.
// Errors render as {"status":"error","tool":...,"error":...} so the model
// gets a parseable failure to narrate.
func (o *Outcome) JSON() string {
	if o.Err != nil {
		b, _ := json.Marshal(map[string]string{
			"status": "error",
			"tool":   o.Tool,
			"error":  o.Err.Message,
		})
		return string(b)
	}
	b, err := json.Marshal(map[string]any{
		"status": "success",
		"tool":   o.Tool,
		"result": o.Value,
	})
	if err != nil {
		return `{"status":"error","tool":"` + o.Tool + `","error":"result not serializable"}`
	}
	return string(b)
}

// AuditFunc observes each completed dispatch. Used to persist an execution
// audit trail without the dispatcher depending on a storage backend.
type AuditFunc func(tool string, params map[string]any, outcome *Outcome, elapsed time.Duration)

// Dispatcher validates and executes tool calls.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	audit    AuditFunc
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  DefaultToolTimeout,
		logger:   logger.With("component", "dispatcher"),
	}
}

// SetAudit installs an audit callback. Must be called before the
// dispatcher is shared across goroutines.
func (d *Dispatcher) SetAudit(fn AuditFunc) {
	d.audit = fn
}

// SetDefaultTimeout overrides the default per-tool execution timeout.
func (d *Dispatcher) SetDefaultTimeout(t time.Duration) {
	if t > 0 {
		d.timeout = t
	}
}

// Execute runs one tool call. It never panics and never returns a bare
// error: every failure becomes an Outcome carrying a ToolError.
func (d *Dispatcher) Execute(ctx context.Context, call *ToolCall) *Outcome {
	outcome := &Outcome{Tool: call.Name}
	start := time.Now()
	defer func() {
		if d.audit != nil {
			d.audit(call.Name, call.Parameters, outcome, time.Since(start))
		}
	}()

	desc, handler, ok := d.registry.Lookup(call.Name)
	if !ok {
		outcome.Err = NewToolError(ErrUnknownTool, "tool %q is not registered", call.Name)
		d.logger.Warn("unknown tool called", "name", call.Name)
		return outcome
	}

	params, terr := resolveParams(desc, call.Parameters)
	if terr != nil {
		outcome.Err = terr
		d.logger.Warn("tool call rejected", "name", call.Name, "error", terr.Message)
		return outcome
	}

	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := invoke(execCtx, handler, params)
	elapsed := time.Since(start)
	if err != nil {
		outcome.Err = classifyHandlerError(err, timeout)
		d.logger.Warn("tool execution failed",
			"name", call.Name,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return outcome
	}

	outcome.Value = value
	d.logger.Info("tool executed",
		"name", call.Name,
		"duration_ms", elapsed.Milliseconds(),
	)
	return outcome
}

// invoke runs the handler, converting a panic into an error so one broken
// tool cannot take down the dispatch loop.
func invoke(ctx context.Context, handler HandlerFunc, params map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewToolError(ErrTransport, "tool panicked: %v", r)
		}
	}()
	return handler(ctx, params)
}

// resolveParams checks required parameters and fills declared defaults for
// absent optional ones. Parameters the descriptor does not declare are
// passed through untouched.
func resolveParams(desc ToolDescriptor, given map[string]any) (map[string]any, *ToolError) {
	params := make(map[string]any, len(given))
	for k, v := range given {
		params[k] = v
	}
	for _, p := range desc.Params {
		if _, present := params[p.Name]; present {
			continue
		}
		if p.Required {
			return nil, NewToolError(ErrMissingParameter, "missing required parameter %q", p.Name)
		}
		if p.Default != nil {
			params[p.Name] = p.Default
		}
	}
	return params, nil
}

// classifyHandlerError maps handler failures into the error taxonomy.
// A preserved ToolError passes through; context expiry becomes a transport
// timeout; everything else is a generic transport failure.
func classifyHandlerError(err error, timeout time.Duration) *ToolError {
	var terr *ToolError
	if errors.As(err, &terr) {
		return terr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewToolError(ErrTransport, "tool did not respond within %s", timeout)
	}
	return NewToolError(ErrTransport, "%s", err.Error())
}
