package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
	"github.com/SusuLegend/anima-project/pkg/anima/config"
	"github.com/SusuLegend/anima-project/pkg/anima/llm"
	"github.com/SusuLegend/anima-project/pkg/anima/tools"
)

// collaboratorTimeout is the transport-level backstop for tool backends;
// per-tool deadlines come from the dispatcher.
const collaboratorTimeout = time.Minute

// buildRegistry wires every tool against its collaborator. health may be
// nil when no supervisor runs in this process.
func buildRegistry(cfg *config.Config, logger *slog.Logger, health tools.HealthFunc) (*assistant.Registry, error) {
	registry := assistant.NewRegistry()

	mail := tools.NewCollaborator(cfg.Tools.MailURL, collaboratorTimeout, logger)
	calendar := tools.NewCollaborator(cfg.Tools.CalendarURL, collaboratorTimeout, logger)
	search := tools.NewCollaborator(cfg.Tools.SearchURL, collaboratorTimeout, logger)
	rag := tools.NewCollaborator(cfg.Tools.RAGURL, collaboratorTimeout, logger)

	geoURL := cfg.Tools.GeocodingURL
	if geoURL == "" {
		geoURL = tools.DefaultGeocodingURL
	}
	forecastURL := cfg.Tools.ForecastURL
	if forecastURL == "" {
		forecastURL = tools.DefaultForecastURL
	}
	geo := tools.NewCollaborator(geoURL, collaboratorTimeout, logger)
	forecast := tools.NewCollaborator(forecastURL, collaboratorTimeout, logger)

	feed := &tools.WhatsAppFeed{Path: cfg.Listener.MessagesPath, Health: health}

	for _, register := range []func() error{
		func() error { return tools.RegisterMailTools(registry, mail) },
		func() error { return tools.RegisterCalendarTools(registry, calendar) },
		func() error { return tools.RegisterWeatherTool(registry, geo, forecast) },
		func() error { return tools.RegisterSearchTool(registry, search) },
		func() error { return tools.RegisterWhatsAppTool(registry, feed) },
		func() error { return tools.RegisterRAGTool(registry, rag) },
	} {
		if err := register(); err != nil {
			return nil, fmt.Errorf("registering tools: %w", err)
		}
	}
	return registry, nil
}

// buildModel creates the LLM client from config.
func buildModel(cfg *config.Config, logger *slog.Logger) *llm.Client {
	return llm.New(llm.Options{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Model:   cfg.API.Model,
		Timeout: cfg.API.Timeout(),
	}, logger)
}
