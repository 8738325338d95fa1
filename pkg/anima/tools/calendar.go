// Package tools – calendar.go exposes the calendar event and task polling
// tools. Like mail, new-item suppression lives in memory for the lifetime
// of the process only.
package tools

import (
	"context"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// RegisterCalendarTools registers get_calendar_events and get_tasks
// against the calendar collaborator.
func RegisterCalendarTools(reg *assistant.Registry, c *Collaborator) error {
	eventSeen := newSeenSet()
	err := reg.Register(assistant.ToolDescriptor{
		Name:        "get_calendar_events",
		Description: "Fetch upcoming calendar events and reminders not yet reported.",
	}, func(ctx context.Context, _ map[string]any) (any, error) {
		return pollItems(ctx, c, "/calendar/events", eventSeen, eventView)
	})
	if err != nil {
		return err
	}

	taskSeen := newSeenSet()
	return reg.Register(assistant.ToolDescriptor{
		Name:        "get_tasks",
		Description: "Fetch open tasks not yet reported.",
	}, func(ctx context.Context, _ map[string]any) (any, error) {
		return pollItems(ctx, c, "/tasks", taskSeen, taskView)
	})
}

// pollItems fetches a list endpoint, drops already seen entries, and maps
// the remainder through view.
func pollItems(ctx context.Context, c *Collaborator, path string, seen *seenSet, view func(map[string]any) map[string]any) (any, error) {
	body, err := c.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeItemList(body)
	if err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "%s: %s", path, err)
	}

	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if !seen.add(itemID(m)) {
			continue
		}
		out = append(out, view(m))
	}
	if len(out) == 0 {
		return "nothing new", nil
	}
	return out, nil
}

func eventView(m map[string]any) map[string]any {
	return map[string]any{
		"title": firstNonEmpty(asString(m["title"]), asString(m["summary"])),
		"start": asString(m["start"]),
		"end":   asString(m["end"]),
	}
}

func taskView(m map[string]any) map[string]any {
	return map[string]any{
		"title": asString(m["title"]),
		"due":   asString(m["due"]),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
