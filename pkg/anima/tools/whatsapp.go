// Package tools – whatsapp.go exposes get_whatsapp_messages. The tool does
// not talk to WhatsApp itself; it reads the messages.json artifact the
// supervised listener process writes, and reports the listener's health
// alongside the payload. An absent artifact means the listener has not
// produced anything yet and is never an error.
package tools

import (
	"context"
	"os"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
	"github.com/SusuLegend/anima-project/pkg/anima/supervisor"
)

// HealthFunc reports the listener process state. Matches
// (*supervisor.Supervisor).Health.
type HealthFunc func() supervisor.Health

// WhatsAppFeed answers get_whatsapp_messages from the artifact at Path.
type WhatsAppFeed struct {
	Path   string
	Health HealthFunc
}

type whatsAppPayload struct {
	Messages []map[string]any `json:"messages"`
	Count    int              `json:"count"`
	Status   string           `json:"status,omitempty"`
}

// RegisterWhatsAppTool registers get_whatsapp_messages.
func RegisterWhatsAppTool(reg *assistant.Registry, feed *WhatsAppFeed) error {
	return reg.Register(assistant.ToolDescriptor{
		Name:        "get_whatsapp_messages",
		Description: "Read WhatsApp messages collected by the background listener.",
	}, func(ctx context.Context, _ map[string]any) (any, error) {
		return feed.read()
	})
}

func (f *WhatsAppFeed) read() (any, error) {
	payload := whatsAppPayload{Messages: []map[string]any{}}

	if f.Health != nil {
		if h := f.Health(); !h.Running {
			payload.Status = "listener starting"
		}
	}

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		if payload.Status == "" {
			payload.Status = "no messages yet"
		}
		return payload, nil
	}
	if err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "reading messages: %s", err)
	}

	msgs, derr := decodeItemList(data)
	if derr != nil {
		payload.Status = "unexpected format"
		return payload, nil
	}
	if msgs != nil {
		payload.Messages = msgs
	}
	payload.Count = len(msgs)
	return payload, nil
}
