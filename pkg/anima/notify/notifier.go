// Package notify delivers proactive announcements: the poller runs mail
// and task tools on a schedule and pushes anything new through a Notifier.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// Notifier delivers one announcement to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier writes announcements to the log. Used when no delivery
// channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.Logger.Info("notification", "text", text)
	return nil
}

// DiscordNotifier posts announcements to a Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// NewDiscordNotifier opens a bot session for the given token. The gateway
// connection stays up until Close.
func NewDiscordNotifier(token, channelID string, logger *slog.Logger) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: opening gateway: %w", err)
	}
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		logger:    logger.With("component", "discord"),
	}, nil
}

func (n *DiscordNotifier) Notify(_ context.Context, text string) error {
	if _, err := n.session.ChannelMessageSend(n.channelID, truncateMessage(text)); err != nil {
		return fmt.Errorf("discord: sending message: %w", err)
	}
	return nil
}

// truncateMessage keeps text under Discord's 2000-character cap, cutting on
// a rune boundary so a multi-byte character is never split.
func truncateMessage(text string) string {
	if len(text) <= 2000 {
		return text
	}
	cut := 1990
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// Close shuts down the gateway connection.
func (n *DiscordNotifier) Close() error {
	return n.session.Close()
}
