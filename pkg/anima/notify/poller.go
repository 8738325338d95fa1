// Package notify – poller.go runs the polling tools on a cron schedule and
// announces anything new. Uses robfig/cron for schedule parsing so configs
// can say "@every 10m" or a standard 5-field expression.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// DefaultSchedule polls every ten minutes.
const DefaultSchedule = "@every 10m"

// pollTimeout bounds one full polling sweep.
const pollTimeout = 2 * time.Minute

// Poller drives the polling tools through the dispatcher and forwards new
// items to the notifier. It reuses the same dispatch path the model uses,
// so auditing and timeouts apply to proactive polls too.
type Poller struct {
	dispatcher *assistant.Dispatcher
	notifier   Notifier
	tools      []string
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewPoller creates a poller over the given tools. An empty schedule means
// DefaultSchedule.
func NewPoller(dispatcher *assistant.Dispatcher, notifier Notifier, tools []string, schedule string, logger *slog.Logger) *Poller {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Poller{
		dispatcher: dispatcher,
		notifier:   notifier,
		tools:      tools,
		schedule:   schedule,
		logger:     logger.With("component", "poller"),
	}
}

// Start schedules the polling job. Returns an error when the schedule
// expression does not parse.
func (p *Poller) Start() error {
	p.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := p.cron.AddFunc(p.schedule, p.sweep); err != nil {
		return fmt.Errorf("notify: schedule %q: %w", p.schedule, err)
	}
	p.cron.Start()
	p.logger.Info("poller started", "schedule", p.schedule, "tools", p.tools)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	ctx := p.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		p.logger.Warn("poller stop timed out")
	}
	p.logger.Info("poller stopped")
}

// sweep runs every configured tool once and announces non-empty results.
func (p *Poller) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	for _, tool := range p.tools {
		outcome := p.dispatcher.Execute(ctx, &assistant.ToolCall{Name: tool})
		if !outcome.OK() {
			p.logger.Warn("poll failed", "tool", tool, "error", outcome.Err.Message)
			continue
		}
		text, ok := announceText(tool, outcome.Value)
		if !ok {
			continue
		}
		if err := p.notifier.Notify(ctx, text); err != nil {
			p.logger.Warn("notification delivery failed", "tool", tool, "error", err)
		}
	}
}

// announceText renders a tool result for delivery. String results are the
// tools' "nothing new" sentinels and are skipped.
func announceText(tool string, value any) (string, bool) {
	if _, isSentinel := value.(string); isSentinel {
		return "", false
	}
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("New from %s:\n%s", tool, b), true
}
