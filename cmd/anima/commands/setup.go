package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/SusuLegend/anima-project/pkg/anima/config"
)

const (
	storageVault   = "vault"
	storageKeyring = "keyring"
	storageNone    = "none"
)

// newSetupCmd creates the `anima setup` interactive configuration wizard.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		Long: `Walk through the initial configuration: model provider, listener
command, and notification delivery. Writes the result to the config path
given with --config. The API key goes to the encrypted vault or the OS
keyring, never to the file.`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()

	var apiKey string
	var keyStorage = storageKeyring
	var notifyEnabled bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model endpoint").
				Description("OpenAI-compatible base URL, or the Gemini API root").
				Value(&cfg.API.BaseURL),
			huh.NewInput().
				Title("Model").
				Description("e.g. llama3.2, llama-3.3-70b-versatile, gemini-2.0-flash").
				Value(&cfg.API.Model),
			huh.NewInput().
				Title("API key").
				Description("Leave empty for local providers like Ollama").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewSelect[string]().
				Title("API key storage").
				Options(
					huh.NewOption("Encrypted vault (master password, no OS dependency)", storageVault),
					huh.NewOption("OS keyring", storageKeyring),
					huh.NewOption("None (environment variable)", storageNone),
				).
				Value(&keyStorage),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Assistant persona").
				Value(&cfg.Persona),
			huh.NewInput().
				Title("Listener command").
				Description("Binary the daemon supervises for WhatsApp collection").
				Value(&cfg.Listener.Command),
			huh.NewConfirm().
				Title("Enable proactive notifications?").
				Value(&notifyEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	cfg.Notify.Enabled = notifyEnabled

	if apiKey != "" {
		switch keyStorage {
		case storageVault:
			if err := storeKeyInVault(apiKey); err != nil {
				fmt.Printf("vault setup failed (%v); trying the OS keyring\n", err)
				storeKeyInKeyring(apiKey)
			} else {
				fmt.Printf("API key encrypted and stored in %s.\n", config.VaultFile)
			}
		case storageKeyring:
			storeKeyInKeyring(apiKey)
		default:
			fmt.Printf("Set %s in your environment before starting the daemon.\n", config.EnvAPIKey)
		}
	}

	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

// storeKeyInVault creates a fresh vault protected by a new master password
// and stores the API key in it. A stale vault from an earlier setup is
// replaced.
func storeKeyInVault(apiKey string) error {
	password, err := config.ReadPassword("Vault master password (min 8 chars): ")
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("password too short (minimum 8 characters)")
	}
	confirm, err := config.ReadPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	vault := config.NewVault(config.VaultFile)
	if vault.Exists() {
		if err := os.Remove(config.VaultFile); err != nil {
			return fmt.Errorf("removing old vault: %w", err)
		}
		vault = config.NewVault(config.VaultFile)
	}
	if err := vault.Create(password); err != nil {
		return err
	}
	defer vault.Lock()
	return vault.Set(config.KeyringAPIKey, apiKey)
}

func storeKeyInKeyring(apiKey string) {
	if err := config.StoreKeyring(config.KeyringAPIKey, apiKey); err != nil {
		// No keyring available (headless box). Fall back to the env
		// reference so the secret is still not plaintext in the file.
		fmt.Printf("keyring unavailable (%v); set %s in your environment instead\n",
			err, config.EnvAPIKey)
		return
	}
	fmt.Println("API key stored in the OS keyring.")
}
