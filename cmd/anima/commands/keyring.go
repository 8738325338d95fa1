package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SusuLegend/anima-project/pkg/anima/config"
)

// newKeyringCmd creates the `anima keyring` command group for managing the
// API key in the OS keyring.
func newKeyringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage the API key in the OS keyring",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store the API key (prompted, no echo)",
			RunE: func(_ *cobra.Command, _ []string) error {
				key, err := config.ReadPassword("API key: ")
				if err != nil {
					return err
				}
				if key == "" {
					return fmt.Errorf("empty key")
				}
				if err := config.StoreKeyring(config.KeyringAPIKey, key); err != nil {
					return fmt.Errorf("storing key: %w", err)
				}
				fmt.Println("stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "get",
			Short: "Check whether an API key is stored",
			RunE: func(_ *cobra.Command, _ []string) error {
				if config.GetKeyring(config.KeyringAPIKey) == "" {
					return fmt.Errorf("no API key in keyring")
				}
				fmt.Println("an API key is stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored API key",
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := config.DeleteKeyring(config.KeyringAPIKey); err != nil {
					return fmt.Errorf("deleting key: %w", err)
				}
				fmt.Println("deleted")
				return nil
			},
		},
	)
	return cmd
}
