// Package config – keyring.go resolves the LLM API key through the secret
// priority chain:
//
//  1. Encrypted vault (.anima.vault, requires master password)
//  2. OS keyring (Linux: Secret Service, macOS: Keychain, Windows:
//     Credential Manager)
//  3. Environment variable / .env (already applied by the loader)
//  4. config.yaml value (plaintext on disk, least preferred)
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "anima"

	// KeyringAPIKey is the keyring entry name for the LLM API key.
	KeyringAPIKey = "api_key"

	// EnvVaultPassword unlocks the vault non-interactively (systemd,
	// Docker).
	EnvVaultPassword = "ANIMA_VAULT_PASSWORD"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring, empty if absent.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// ResolveAPIKey walks the priority chain and fills cfg.API.APIKey in place.
// Loader env overlays ran before this, so a non-empty config value already
// reflects env and file sources; the vault and keyring can still override
// an empty one.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if cfg.API.APIKey != "" {
		return
	}

	vault := NewVault(VaultFile)
	if vault.Exists() {
		unlockVault(vault, logger)
		if vault.IsUnlocked() {
			if key, err := vault.Get(KeyringAPIKey); err == nil && key != "" {
				cfg.API.APIKey = key
				logger.Info("API key resolved from vault")
				return
			}
		}
	}

	if key := GetKeyring(KeyringAPIKey); key != "" {
		cfg.API.APIKey = key
		logger.Info("API key resolved from OS keyring")
		return
	}

	logger.Warn("no API key configured; model calls will be unauthenticated")
}

func unlockVault(vault *Vault, logger *slog.Logger) {
	if envPass := os.Getenv(EnvVaultPassword); envPass != "" {
		if err := vault.Unlock(envPass); err != nil {
			logger.Warn("failed to unlock vault with "+EnvVaultPassword, "error", err)
		}
		return
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := ReadPassword("Vault password: ")
		if err != nil {
			logger.Warn("failed to read vault password", "error", err)
			return
		}
		if err := vault.Unlock(password); err != nil {
			logger.Warn("failed to unlock vault", "error", err)
		}
	}
}

// ReadPassword reads a password from the terminal without echo.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
