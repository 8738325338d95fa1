// Package tools – mail.go exposes the Gmail and Outlook polling tools.
// Each poll normalizes messages to subject and sender only and suppresses
// items already reported during this process lifetime. The dedup state is
// in-memory, so a restart resurfaces previously seen mail.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// MailItem is the reduced view of one message handed to the model.
type MailItem struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
}

// seenSet tracks IDs already reported. Volatile by construction.
type seenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{ids: make(map[string]struct{})}
}

// add records the ID and reports whether it was new.
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// RegisterMailTools registers get_gmail and get_outlook against the mail
// collaborator. Both tools take no parameters.
func RegisterMailTools(reg *assistant.Registry, c *Collaborator) error {
	providers := []struct {
		tool string
		path string
		desc string
	}{
		{"get_gmail", "/gmail/messages", "Fetch new Gmail messages. Returns subject and sender for each unseen message."},
		{"get_outlook", "/outlook/messages", "Fetch new Outlook messages. Returns subject and sender for each unseen message."},
	}

	for _, p := range providers {
		seen := newSeenSet()
		path := p.path
		err := reg.Register(assistant.ToolDescriptor{
			Name:        p.tool,
			Description: p.desc,
		}, func(ctx context.Context, _ map[string]any) (any, error) {
			return pollMail(ctx, c, path, seen)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func pollMail(ctx context.Context, c *Collaborator, path string, seen *seenSet) (any, error) {
	body, err := c.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	raw, err := decodeItemList(body)
	if err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "%s: %s", path, err)
	}

	items := make([]MailItem, 0, len(raw))
	for _, m := range raw {
		if !seen.add(itemID(m)) {
			continue
		}
		items = append(items, MailItem{
			Subject: asString(m["subject"]),
			Sender:  asString(m["sender"]),
		})
	}

	if len(items) == 0 {
		return "no new messages", nil
	}
	return items, nil
}

// decodeItemList accepts either a bare JSON array or an object wrapping
// one under a "messages" key.
func decodeItemList(body []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected payload shape: %w", err)
	}
	return wrapped.Messages, nil
}

// itemID picks a dedup key: the service's id when present, otherwise a
// composite of the visible fields.
func itemID(m map[string]any) string {
	if id := asString(m["id"]); id != "" {
		return id
	}
	return asString(m["sender"]) + "\x00" + asString(m["subject"]) + "\x00" + asString(m["title"])
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
