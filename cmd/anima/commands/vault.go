package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SusuLegend/anima-project/pkg/anima/config"
)

// newVaultCmd creates the `anima vault` command group for managing secrets
// in the encrypted vault file.
func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage secrets in the encrypted vault",
		Long: `Manage secrets stored in ` + config.VaultFile + ` (AES-256-GCM,
Argon2id key derivation). The daemon unlocks the vault at startup with a
prompt or the ` + config.EnvVaultPassword + ` environment variable.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <name>",
			Short: "Store a secret (prompted, no echo); creates the vault on first use",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				vault, err := openVault(true)
				if err != nil {
					return err
				}
				defer vault.Lock()
				value, err := config.ReadPassword("Value: ")
				if err != nil {
					return err
				}
				if value == "" {
					return fmt.Errorf("empty value")
				}
				if err := vault.Set(args[0], value); err != nil {
					return fmt.Errorf("storing %s: %w", args[0], err)
				}
				fmt.Println("stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Decrypt and print a secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				vault, err := openVault(false)
				if err != nil {
					return err
				}
				defer vault.Lock()
				value, err := vault.Get(args[0])
				if err != nil {
					return err
				}
				if value == "" {
					return fmt.Errorf("no secret named %q", args[0])
				}
				fmt.Println(value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Remove a secret from the vault",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				vault, err := openVault(false)
				if err != nil {
					return err
				}
				defer vault.Lock()
				if err := vault.Delete(args[0]); err != nil {
					return fmt.Errorf("deleting %s: %w", args[0], err)
				}
				fmt.Println("deleted")
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored secret names",
			RunE: func(_ *cobra.Command, _ []string) error {
				vault, err := openVault(false)
				if err != nil {
					return err
				}
				defer vault.Lock()
				names := vault.List()
				if len(names) == 0 {
					fmt.Println("vault is empty")
					return nil
				}
				for _, name := range names {
					fmt.Println(name)
				}
				return nil
			},
		},
	)
	return cmd
}

// openVault unlocks the vault with a password prompt. When create is set and
// no vault exists yet, a new one is initialized instead.
func openVault(create bool) (*config.Vault, error) {
	vault := config.NewVault(config.VaultFile)

	if !vault.Exists() {
		if !create {
			return nil, fmt.Errorf("no vault at %s; run `anima vault set` or `anima setup` first", config.VaultFile)
		}
		password, err := config.ReadPassword("New vault master password (min 8 chars): ")
		if err != nil {
			return nil, err
		}
		if len(password) < 8 {
			return nil, fmt.Errorf("password too short (minimum 8 characters)")
		}
		confirm, err := config.ReadPassword("Confirm password: ")
		if err != nil {
			return nil, err
		}
		if password != confirm {
			return nil, fmt.Errorf("passwords do not match")
		}
		if err := vault.Create(password); err != nil {
			return nil, err
		}
		return vault, nil
	}

	password, err := config.ReadPassword("Vault password: ")
	if err != nil {
		return nil, err
	}
	if err := vault.Unlock(password); err != nil {
		return nil, err
	}
	return vault, nil
}
