// Package config loads the gateway's human-authored, permissive-JSON5
// configuration file and applies environment-variable overrides. File
// discovery and CLI flag plumbing are intentionally thin: the one supported
// override is OPENCLAW_CONFIG_PATH.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Gateway   GatewayConfig            `json:"gateway"`
	Agents    map[string]AgentConfig   `json:"agents"`
	Channels  ChannelsConfig           `json:"channels"`
	Providers ProvidersConfig          `json:"providers"`
	Settings  SettingsConfig           `json:"settings"`
	Storage   StorageConfig            `json:"storage"`

	mu sync.RWMutex
}

// GatewayMode selects the bind posture: "local" binds loopback only,
// "public" binds the configured address, a custom mode pins an exact
// address string.
type GatewayMode string

const (
	GatewayModeLocal  GatewayMode = "local"
	GatewayModePublic GatewayMode = "public"
)

// GatewayConfig configures the HTTP/WebSocket listener.
type GatewayConfig struct {
	Mode        GatewayMode `json:"mode,omitempty"`        // "local" (default), "public", or a literal address
	Port        int         `json:"port,omitempty"`        // default 8080
	Bind        string      `json:"bind,omitempty"`         // "loopback" (default), "lan", or a literal address
	CORS        bool        `json:"cors,omitempty"`
	TimeoutSecs int         `json:"timeoutSecs,omitempty"` // default 30
}

// AllowlistEntry restricts an agent to specific channel/peer pairs.
type AllowlistEntry struct {
	Channel string `json:"channel"`
	PeerID  string `json:"peerId"`
	Label   string `json:"label,omitempty"`
}

// AgentConfig is one entry under the top-level "agents" map.
type AgentConfig struct {
	Model        string           `json:"model"`
	Provider     string           `json:"provider"`
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	MaxTokens    int              `json:"maxTokens"`
	Temperature  float64          `json:"temperature"`
	Tools        []string         `json:"tools,omitempty"`
	Allowlist    []AllowlistEntry `json:"allowlist,omitempty"`
}

// ChannelsConfig holds the per-platform channel settings. Each platform's
// credential shape is deliberately minimal — HTTP request shaping for any
// specific platform is out of scope here.
type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Discord  *DiscordConfig  `json:"discord,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
	Signal   *SignalConfig   `json:"signal,omitempty"`
	Matrix   *MatrixConfig   `json:"matrix,omitempty"`
}

type TelegramConfig struct {
	BotToken string `json:"botToken,omitempty"`
}

type DiscordConfig struct {
	BotToken string `json:"botToken,omitempty"`
}

type SlackConfig struct {
	BotToken string `json:"botToken,omitempty"`
	AppToken string `json:"appToken,omitempty"`
}

type SignalConfig struct {
	Number string `json:"number,omitempty"`
}

type MatrixConfig struct {
	HomeserverURL string `json:"homeserverUrl,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
}

// ProvidersConfig holds LLM provider credentials. These are optional; the
// credential vault (internal/credentials) is the preferred place to keep
// API keys at rest.
type ProvidersConfig struct {
	Anthropic *AnthropicConfig `json:"anthropic,omitempty"`
	OpenAI    *OpenAIConfig    `json:"openai,omitempty"`
	Ollama    *OllamaConfig    `json:"ollama,omitempty"`
}

type AnthropicConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type OpenAIConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
	OrgID   string `json:"orgId,omitempty"`
}

type OllamaConfig struct {
	BaseURL string `json:"baseUrl,omitempty"`
}

// SettingsConfig holds process-wide ambient behavior knobs.
type SettingsConfig struct {
	Debug      bool   `json:"debug,omitempty"`
	LogFormat  string `json:"logFormat,omitempty"` // "pretty" (default) or "json"
	Telemetry  bool   `json:"telemetry,omitempty"`
}

// StorageConfig optionally configures a secondary Postgres sink that mirrors
// the event log for durability and ad-hoc analytics, alongside the primary
// embedded SQLite event store. Empty DSN disables mirroring entirely.
type StorageConfig struct {
	PostgresDSN string `json:"postgresDsn,omitempty"`
}

// ReplaceFrom copies all data fields from src into c under c's write lock,
// used by administrative config.apply/config.patch-style RPCs.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gateway = src.Gateway
	c.Agents = src.Agents
	c.Channels = src.Channels
	c.Providers = src.Providers
	c.Settings = src.Settings
	c.Storage = src.Storage
}

// Snapshot returns a copy of the config safe to read without holding a lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Gateway:   c.Gateway,
		Agents:    c.Agents,
		Channels:  c.Channels,
		Providers: c.Providers,
		Settings:  c.Settings,
		Storage:   c.Storage,
	}
}

// HasAnyProvider reports whether at least one provider has credentials
// configured directly (as opposed to via the credential vault).
func (c *Config) HasAnyProvider() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return (c.Providers.Anthropic != nil && c.Providers.Anthropic.APIKey != "") ||
		(c.Providers.OpenAI != nil && c.Providers.OpenAI.APIKey != "") ||
		c.Providers.Ollama != nil
}

// Hash computes a stable content hash of the config's JSON encoding, used
// for optimistic-concurrency checks on administrative config RPCs.
func Hash(c *Config) (string, error) {
	snap := c.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ResolveAgent returns the named agent's config, or the zero value if unset.
func (c *Config) ResolveAgent(id string) AgentConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Agents[id]
}

// ResolvedGatewayBind computes the listener address from Mode/Bind/Port.
func (c *Config) ResolvedGatewayBind() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	host := "127.0.0.1"
	switch {
	case c.Gateway.Mode == GatewayModePublic || c.Gateway.Bind == "lan":
		host = "0.0.0.0"
	case c.Gateway.Bind != "" && c.Gateway.Bind != "loopback" && c.Gateway.Bind != "lan":
		return c.Gateway.Bind
	}
	port := c.Gateway.Port
	if port == 0 {
		port = 8080
	}
	return host + ":" + strconv.Itoa(port)
}
