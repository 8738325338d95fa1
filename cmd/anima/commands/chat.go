package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
	"github.com/SusuLegend/anima-project/pkg/anima/config"
)

// newChatCmd creates the `anima chat` command.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Send one message to the assistant, or start an interactive session
when no message is given. Runs against the configured model directly; the
daemon does not need to be running (the WhatsApp tool then reports the
listener as starting).

Examples:
  anima chat "what's on my calendar today?"
  anima chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "override the configured model")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if override, _ := cmd.Flags().GetString("model"); override != "" {
		cfg.API.Model = override
	}
	logger := newLogger(cmd, cfg)
	config.ResolveAPIKey(cfg, logger)

	orchestrator, err := buildLocalOrchestrator(cfg, logger)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return runSingleTurn(orchestrator, cfg.Persona, args[0])
	}
	return runInteractive(orchestrator, cfg.Persona)
}

// buildLocalOrchestrator wires registry, dispatcher, and model for an
// in-process session without the daemon's supervisor or HTTP surface.
func buildLocalOrchestrator(cfg *config.Config, logger *slog.Logger) (*assistant.Orchestrator, error) {
	registry, err := buildRegistry(cfg, logger, nil)
	if err != nil {
		return nil, err
	}

	dispatcher := assistant.NewDispatcher(registry, logger)
	dispatcher.SetDefaultTimeout(cfg.Tools.DefaultTimeout())

	model := buildModel(cfg, logger)
	return assistant.NewOrchestrator(model, registry, dispatcher, logger), nil
}

func runSingleTurn(orchestrator *assistant.Orchestrator, persona, prompt string) error {
	reply, err := orchestrator.Turn(context.Background(), persona, prompt)
	if err != nil {
		return err
	}
	fmt.Println(reply.Text)
	return nil
}

func runInteractive(orchestrator *assistant.Orchestrator, persona string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     ".anima_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Interactive session. Ctrl+D to exit.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reply, err := orchestrator.Turn(context.Background(), persona, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("anima> %s\n", reply.Text)
	}
}
