// Package assistant – orchestrator.go drives one user turn through
// prompt → model → parse → (dispatch → model) → reply.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ModelInvoker is the model collaborator: one text-in/text-out call.
// Implementations must honor the context and fail with an error on timeout
// or transport problems rather than hanging.
type ModelInvoker interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// FinalReply is the outcome of one turn. ToolUsed and ToolResult are set
// only when the model requested a tool hop.
type FinalReply struct {
	TurnID     string   `json:"turn_id"`
	Text       string   `json:"text"`
	ToolUsed   string   `json:"tool_used,omitempty"`
	ToolResult *Outcome `json:"tool_result,omitempty"`
}

// Orchestrator runs the per-turn state machine. Turns carry no shared
// mutable state besides the immutable registry, so concurrent turns may
// interleave freely.
type Orchestrator struct {
	model      ModelInvoker
	registry   *Registry
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(model ModelInvoker, registry *Registry, dispatcher *Dispatcher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		model:      model,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Turn executes one user-request/assistant-response cycle with at most one
// tool round-trip. A tool call embedded in the follow-up reply is returned
// verbatim, never re-parsed; single-hop is a protocol boundary. If either
// model call fails, the turn fails and the error surfaces to the caller —
// no retry happens at this layer. Dispatch failures do not fail the turn:
// they are folded into the follow-up prompt as data so the model narrates
// them to the user.
func (o *Orchestrator) Turn(ctx context.Context, persona, userPrompt string) (*FinalReply, error) {
	turnID := uuid.NewString()
	log := o.logger.With("turn_id", turnID)

	systemPrompt := BuildSystemPrompt(persona, o.registry.Schema())

	raw, err := o.model.Invoke(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	call, ok := ParseToolCall(raw)
	if !ok {
		log.Debug("plain reply, no tool call")
		return &FinalReply{TurnID: turnID, Text: raw}, nil
	}
	log.Info("tool call detected", "tool", call.Name)

	outcome := o.dispatcher.Execute(ctx, call)

	followUp := BuildFollowUpPrompt(call.Name, outcome.JSON(), userPrompt)
	final, err := o.model.Invoke(ctx, systemPrompt, followUp)
	if err != nil {
		return nil, fmt.Errorf("follow-up model call failed: %w", err)
	}

	return &FinalReply{
		TurnID:     turnID,
		Text:       final,
		ToolUsed:   call.Name,
		ToolResult: outcome,
	}, nil
}
