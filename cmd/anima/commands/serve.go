package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
	"github.com/SusuLegend/anima-project/pkg/anima/audit"
	"github.com/SusuLegend/anima-project/pkg/anima/config"
	"github.com/SusuLegend/anima-project/pkg/anima/notify"
	"github.com/SusuLegend/anima-project/pkg/anima/server"
	"github.com/SusuLegend/anima-project/pkg/anima/supervisor"
)

// newServeCmd creates the `anima serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant daemon",
		Long: `Start the anima daemon: the HTTP chat surface, the supervised
listener process with heartbeat auto-restart, and the proactive
notification poller.

Examples:
  anima serve
  anima serve --config ./config.yaml -v`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	// Resolve the API key via vault, keyring, env, then config.
	config.ResolveAPIKey(cfg, logger)

	// ── Supervisor for the listener process ──
	sup, err := supervisor.New(supervisor.Config{
		Command:           cfg.Listener.Command,
		Args:              cfg.Listener.Args,
		Dir:               cfg.Listener.Dir,
		LogPath:           cfg.Listener.LogPath,
		HeartbeatInterval: cfg.Listener.HeartbeatInterval(),
		StopGrace:         cfg.Listener.StopGrace(),
	}, logger)
	if err != nil {
		return fmt.Errorf("configuring supervisor: %w", err)
	}

	// ── Tool registry ──
	registry, err := buildRegistry(cfg, logger, sup.Health)
	if err != nil {
		return err
	}
	logger.Info("tools registered", "count", registry.Len())

	// ── Dispatcher + audit ──
	dispatcher := assistant.NewDispatcher(registry, logger)
	dispatcher.SetDefaultTimeout(cfg.Tools.DefaultTimeout())

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer auditStore.Close()
		dispatcher.SetAudit(auditStore.Hook())
	}

	// ── Model + orchestrator ──
	model := buildModel(cfg, logger)
	orchestrator := assistant.NewOrchestrator(model, registry, dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Listener supervision ──
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// ── Proactive notifications ──
	var poller *notify.Poller
	if cfg.Notify.Enabled {
		var notifier notify.Notifier
		if cfg.Notify.DiscordToken != "" {
			dn, err := notify.NewDiscordNotifier(cfg.Notify.DiscordToken, cfg.Notify.DiscordChannel, logger)
			if err != nil {
				logger.Error("discord notifier unavailable, falling back to log", "error", err)
				notifier = &notify.LogNotifier{Logger: logger}
			} else {
				defer dn.Close()
				notifier = dn
			}
		} else {
			notifier = &notify.LogNotifier{Logger: logger}
		}
		poller = notify.NewPoller(dispatcher, notifier, cfg.Notify.Tools, cfg.Notify.Schedule, logger)
		if err := poller.Start(); err != nil {
			return fmt.Errorf("starting notification poller: %w", err)
		}
	}

	// ── HTTP surface ──
	srv := server.New(cfg.Server.Addr, cfg.Persona, orchestrator, sup, logger)
	srv.Start()

	logger.Info("anima running, press Ctrl+C to stop",
		"address", cfg.Server.Addr,
		"model", cfg.API.Model,
		"provider", model.Provider(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if poller != nil {
		poller.Stop()
	}
	cancel()
	select {
	case <-supDone:
	case <-shutdownCtx.Done():
		logger.Warn("supervisor did not stop in time")
	}

	logger.Info("anima stopped")
	return nil
}
