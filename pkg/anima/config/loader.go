// Package config – loader.go reads the YAML configuration with environment
// variable expansion and .env overlays. Values in the file can reference
// the environment with ${VAR} or ${VAR:-default}.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} references.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load reads the config file at path, expands environment references, and
// overlays the result on DefaultConfig. A missing file yields the defaults
// untouched.
func Load(path string) (*Config, error) {
	// .env next to the config file, then the working directory. godotenv
	// never overwrites variables already set in the environment.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as YAML. The API key is replaced with an
// environment reference so the file never holds the secret in plaintext.
func Save(cfg *Config, path string) error {
	sanitized := *cfg
	if sanitized.API.APIKey != "" {
		sanitized.API.APIKey = "${" + EnvAPIKey + "}"
	}
	if sanitized.Notify.DiscordToken != "" {
		sanitized.Notify.DiscordToken = "${" + EnvDiscordToken + "}"
	}

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// Environment variable names recognized without any config file reference.
const (
	EnvAPIKey       = "ANIMA_API_KEY"
	EnvDiscordToken = "ANIMA_DISCORD_TOKEN"
)

// applyEnvOverrides fills secrets from well-known environment variables
// when the file left them empty.
func applyEnvOverrides(cfg *Config) {
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Notify.DiscordToken == "" {
		cfg.Notify.DiscordToken = os.Getenv(EnvDiscordToken)
	}
}

// expandEnvVars substitutes ${VAR} and ${VAR:-default} references.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return fallback
	})
}
