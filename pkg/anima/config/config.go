// Package config – config.go defines the configuration structures for the
// anima daemon: model access, tool collaborators, the supervised listener,
// proactive notifications, auditing, and the HTTP surface.
package config

import (
	"fmt"
	"time"
)

// Config holds all daemon configuration.
type Config struct {
	// Persona is the assistant personality prepended to every system
	// prompt.
	Persona string `yaml:"persona"`

	// API configures the LLM provider endpoint.
	API APIConfig `yaml:"api"`

	// Tools configures the tool collaborators.
	Tools ToolsConfig `yaml:"tools"`

	// Listener configures the supervised background process.
	Listener ListenerConfig `yaml:"listener"`

	// Notify configures the proactive polling loop.
	Notify NotifyConfig `yaml:"notify"`

	// Audit configures the tool execution log.
	Audit AuditConfig `yaml:"audit"`

	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server"`

	// Logging configures slog output.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the LLM provider.
type APIConfig struct {
	// BaseURL is the provider endpoint, e.g. "https://api.groq.com/openai/v1"
	// or "http://localhost:11434/v1" for Ollama.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider. Usually left empty in
	// the file and resolved from the vault, keyring, or environment.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier, e.g. "llama-3.3-70b-versatile".
	Model string `yaml:"model"`

	// TimeoutSeconds bounds one model invocation.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the model invocation deadline.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ToolsConfig points the tool handlers at their backing services.
type ToolsConfig struct {
	// MailURL serves /gmail/messages and /outlook/messages.
	MailURL string `yaml:"mail_url"`

	// CalendarURL serves /calendar/events and /tasks.
	CalendarURL string `yaml:"calendar_url"`

	// SearchURL serves /search.
	SearchURL string `yaml:"search_url"`

	// RAGURL serves /rag/search.
	RAGURL string `yaml:"rag_url"`

	// GeocodingURL and ForecastURL override the public Open-Meteo
	// endpoints, mainly for tests.
	GeocodingURL string `yaml:"geocoding_url"`
	ForecastURL  string `yaml:"forecast_url"`

	// DefaultTimeoutSeconds is the dispatcher's per-tool execution
	// deadline.
	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds"`
}

// DefaultTimeout returns the per-tool execution deadline.
func (c ToolsConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// ListenerConfig describes the supervised companion process.
type ListenerConfig struct {
	// Command and Args launch the listener binary.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// Dir is the listener's working directory.
	Dir string `yaml:"dir"`

	// LogPath receives the listener's stdout and stderr.
	LogPath string `yaml:"log_path"`

	// MessagesPath is the artifact the listener writes and
	// get_whatsapp_messages reads.
	MessagesPath string `yaml:"messages_path"`

	// HeartbeatSeconds is the liveness check period.
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`

	// StopGraceSeconds is how long SIGTERM gets before SIGKILL.
	StopGraceSeconds int `yaml:"stop_grace_seconds"`
}

// HeartbeatInterval returns the liveness check period.
func (c ListenerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// StopGrace returns the termination grace period.
func (c ListenerConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSeconds) * time.Second
}

// NotifyConfig configures proactive announcements.
type NotifyConfig struct {
	// Enabled turns the polling loop on.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor like "@every 10m".
	Schedule string `yaml:"schedule"`

	// Tools lists which polling tools the sweep runs.
	Tools []string `yaml:"tools"`

	// DiscordToken and DiscordChannel deliver announcements through a
	// Discord bot. Empty token falls back to log-only delivery.
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// AuditConfig configures the sqlite execution log.
type AuditConfig struct {
	// Enabled turns dispatch auditing on.
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite database file.
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8576".
	Addr string `yaml:"addr"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with working defaults for a local setup.
func DefaultConfig() *Config {
	return &Config{
		Persona: "You are Anima, a helpful personal assistant.",
		API: APIConfig{
			BaseURL:        "http://localhost:11434/v1",
			Model:          "llama3.2",
			TimeoutSeconds: 30,
		},
		Tools: ToolsConfig{
			MailURL:               "http://127.0.0.1:8576",
			CalendarURL:           "http://127.0.0.1:8576",
			SearchURL:             "http://127.0.0.1:8576",
			RAGURL:                "http://127.0.0.1:8576",
			DefaultTimeoutSeconds: 10,
		},
		Listener: ListenerConfig{
			Command:          "anima-listener",
			LogPath:          "anima-listener.log",
			MessagesPath:     "messages.json",
			HeartbeatSeconds: 30,
			StopGraceSeconds: 5,
		},
		Notify: NotifyConfig{
			Schedule: "@every 10m",
			Tools:    []string{"get_gmail", "get_outlook", "get_tasks"},
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "anima-audit.db",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Model == "" {
		return fmt.Errorf("api.model is required")
	}
	if c.Listener.Command == "" {
		return fmt.Errorf("listener.command is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}
