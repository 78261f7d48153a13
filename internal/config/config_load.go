package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults for a fresh install.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Mode:        GatewayModeLocal,
			Port:        8080,
			Bind:        "loopback",
			TimeoutSecs: 30,
		},
		Agents: map[string]AgentConfig{
			"default": {
				Model:       "claude-sonnet-4-5-20250929",
				Provider:    "anthropic",
				MaxTokens:   8192,
				Temperature: 0.7,
			},
		},
		Settings: SettingsConfig{
			LogFormat: "pretty",
		},
	}
}

// Load reads the config file at path, permissively parsed as JSON5, then
// overlays the OPENCLAW_* environment variables. A missing file is not an
// error: it yields Default() with env overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating parent directories as
// needed.
func Save(path string, cfg *Config) error {
	snap := cfg.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyEnvOverrides overlays the OPENCLAW_* environment variables onto the
// config; env values take precedence over whatever the file set.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("OPENCLAW_ANTHROPIC_API_KEY", &ensureAnthropic(c).APIKey)
	envStr("OPENCLAW_OPENAI_API_KEY", &ensureOpenAI(c).APIKey)

	if v := os.Getenv("OPENCLAW_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("OPENCLAW_GATEWAY_BIND"); v != "" {
		c.Gateway.Bind = v
	}
}

func ensureAnthropic(c *Config) *AnthropicConfig {
	if c.Providers.Anthropic == nil {
		c.Providers.Anthropic = &AnthropicConfig{}
	}
	return c.Providers.Anthropic
}

func ensureOpenAI(c *Config) *OpenAIConfig {
	if c.Providers.OpenAI == nil {
		c.Providers.OpenAI = &OpenAIConfig{}
	}
	return c.Providers.OpenAI
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
