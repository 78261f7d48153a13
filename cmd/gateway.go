package cmd

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openclaw/gateway/internal/agent"
	"github.com/openclaw/gateway/internal/bootstrap"
	"github.com/openclaw/gateway/internal/broadcast"
	"github.com/openclaw/gateway/internal/channels"
	"github.com/openclaw/gateway/internal/channels/discord"
	"github.com/openclaw/gateway/internal/channels/telegram"
	"github.com/openclaw/gateway/internal/config"
	"github.com/openclaw/gateway/internal/credentials"
	"github.com/openclaw/gateway/internal/eventstore"
	"github.com/openclaw/gateway/internal/gateway"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/message"
	"github.com/openclaw/gateway/internal/providers"
	"github.com/openclaw/gateway/internal/ratelimit"
	"github.com/openclaw/gateway/internal/sandbox"
	"github.com/openclaw/gateway/internal/scheduler"
	"github.com/openclaw/gateway/internal/storemirror"
	"github.com/openclaw/gateway/internal/tokens"
	"github.com/openclaw/gateway/internal/tools"
	"github.com/openclaw/gateway/internal/users"
)

const (
	envStateDir   = "OPENCLAW_STATE_DIR"
	envJWTSecret  = "OPENCLAW_JWT_SECRET"
	inboundRatePerSec = 2.0
	inboundBurst      = 5
)

func runGateway() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logFormat := logging.FormatPretty
	if cfg.Settings.LogFormat == string(logging.FormatJSON) {
		logFormat = logging.FormatJSON
	}
	logging.Configure(logFormat, cfg.Settings.Debug || verbose)
	log := logging.For("cmd")

	stateDir := config.ExpandHome(os.Getenv(envStateDir))
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		stateDir = filepath.Join(home, ".openclaw")
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		log.Error("create state dir", "path", stateDir, "error", err)
		os.Exit(1)
	}

	events, err := eventstore.Open(filepath.Join(stateDir, "events.db"))
	if err != nil {
		log.Error("open event store", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	usersDB, err := sql.Open("sqlite", filepath.Join(stateDir, "users.db"))
	if err != nil {
		log.Error("open users database", "error", err)
		os.Exit(1)
	}
	usersDB.SetMaxOpenConns(1)
	defer usersDB.Close()

	usersStore, err := users.Open(usersDB)
	if err != nil {
		log.Error("init users store", "error", err)
		os.Exit(1)
	}

	vaultKey, err := loadOrCreateVaultKey(stateDir)
	if err != nil {
		log.Error("load credential vault key", "error", err)
		os.Exit(1)
	}
	vault := credentials.NewVault(vaultKey, filepath.Join(stateDir, "credentials"))
	resolveProviderKey(cfg, vault, log)

	jwtKey, err := loadOrCreateJWTKey(stateDir)
	if err != nil {
		log.Error("load jwt signing key", "error", err)
		os.Exit(1)
	}
	tokensMgr, err := tokens.NewManager(jwtKey, 15*time.Minute, 30*24*time.Hour)
	if err != nil {
		log.Error("init token manager", "error", err)
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://%s", cfg.ResolvedGatewayBind())
	bootstrapMgr := bootstrap.NewManager(usersStore, baseURL)
	broadcaster := broadcast.New()

	toolsReg := tools.NewRegistry()
	if err := toolsReg.Register(tools.EchoTool{}); err != nil {
		log.Error("register echo tool", "error", err)
		os.Exit(1)
	}
	if err := toolsReg.Register(tools.NewExecTool(sandbox.New(), sandbox.DefaultConfig())); err != nil {
		log.Error("register exec tool", "error", err)
		os.Exit(1)
	}

	runtimes, agentInfos, defaultAgentID := buildAgents(cfg, toolsReg, events, log)

	pool := agent.NewPool(runtimes, defaultAgentID)
	limiter := ratelimit.NewPerKey(inboundRatePerSec, inboundBurst)

	channelRegistry := channels.NewRegistry()
	registerChannels(cfg, channelRegistry, pool, limiter, defaultAgentID, log)

	srv := gateway.NewServer(gateway.Config{
		Addr:         cfg.ResolvedGatewayBind(),
		Users:        usersStore,
		Tokens:       tokensMgr,
		Events:       events,
		Tools:        toolsReg,
		Bootstrap:    bootstrapMgr,
		Broadcaster:  broadcaster,
		Agents:       pool,
		AgentInfos:   agentInfos,
		Channels:     channelRegistry,
		AuthDisabled: false,
		Version:      Version,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	heartbeat := scheduler.NewHeartbeat("* * * * *", broadcaster, time.Minute)
	go heartbeat.Run(ctx)

	if _, err := os.Stat(cfgPath); err == nil {
		go func() {
			if err := config.Watch(ctx, cfgPath, cfg, nil); err != nil {
				log.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Storage.PostgresDSN != "" {
		mirror, err := storemirror.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Warn("postgres event mirror disabled", "error", err)
		} else {
			sub := broadcaster.Subscribe()
			go func() {
				mirror.Run(ctx, sub)
				sub.Unsubscribe()
			}()
			defer mirror.Close()
		}
	}

	if err := channelRegistry.StartAll(ctx); err != nil {
		log.Warn("some channels failed to start", "error", err)
	}
	defer channelRegistry.StopAll(context.Background())

	if err := srv.Start(ctx); err != nil {
		log.Error("gateway server exited", "error", err)
		os.Exit(1)
	}
}

// buildAgents constructs one agent.Runtime per configured agent, returning
// the set keyed by agent id alongside its public listing and the id to fall
// back to for session keys carrying no explicit agent segment.
func buildAgents(cfg *config.Config, toolsReg *tools.Registry, events *eventstore.Store, log *slog.Logger) (map[string]*agent.Runtime, []gateway.AgentInfo, string) {
	runtimes := make(map[string]*agent.Runtime, len(cfg.Agents))
	infos := make([]gateway.AgentInfo, 0, len(cfg.Agents))
	defaultID := ""

	for id, ac := range cfg.Agents {
		provider := resolveProvider(ac.Provider)
		rt := agent.New(ids.AgentId(id), agent.Config{
			Provider:     provider,
			Tools:        toolsReg,
			Events:       events,
			Model:        ac.Model,
			SystemPrompt: ac.SystemPrompt,
			MaxTokens:    ac.MaxTokens,
			Temperature:  ac.Temperature,
		})
		runtimes[id] = rt
		infos = append(infos, gateway.AgentInfo{ID: id, Provider: ac.Provider, Model: ac.Model})
		if defaultID == "" || id == "default" {
			defaultID = id
		}
	}

	if len(runtimes) == 0 {
		log.Warn("no agents configured; session.message will fail until agents are added")
	}

	return runtimes, infos, defaultID
}

// registerChannels constructs and registers the adapters for every
// configured channel, wiring each one's inbound callback through a per-peer
// rate limiter into the agent pool and back out via SendText.
func registerChannels(cfg *config.Config, registry *channels.Registry, pool *agent.Pool, limiter *ratelimit.PerKey, defaultAgentID string, log *slog.Logger) {
	if cfg.Channels.Telegram != nil && cfg.Channels.Telegram.BotToken != "" {
		adapter, err := telegram.New(telegram.Config{Token: cfg.Channels.Telegram.BotToken})
		if err != nil {
			log.Warn("telegram: failed to construct adapter", "error", err)
		} else {
			wireInbound(adapter, pool, limiter, defaultAgentID, log)
			registry.Register(adapter)
		}
	}

	if cfg.Channels.Discord != nil && cfg.Channels.Discord.BotToken != "" {
		adapter, err := discord.New(discord.Config{Token: cfg.Channels.Discord.BotToken})
		if err != nil {
			log.Warn("discord: failed to construct adapter", "error", err)
		} else {
			wireInbound(adapter, pool, limiter, defaultAgentID, log)
			registry.Register(adapter)
		}
	}
}

// wireInbound connects an adapter's normalized inbound stream to the agent
// pool, rate-limiting per peer and replying through SendText.
func wireInbound(adapter channels.Adapter, pool *agent.Pool, limiter *ratelimit.PerKey, defaultAgentID string, log *slog.Logger) {
	handler := func(msg message.Inbound) {
		handleInbound(adapter, msg, pool, limiter, defaultAgentID, log)
	}
	switch a := adapter.(type) {
	case *telegram.Adapter:
		a.OnInbound(handler)
	case *discord.Adapter:
		a.OnInbound(handler)
	}
}

func handleInbound(adapter channels.Adapter, msg message.Inbound, pool *agent.Pool, limiter *ratelimit.PerKey, defaultAgentID string, log *slog.Logger) {
	peerKey := string(msg.Channel) + ":" + string(msg.PeerID)
	if !limiter.Allow(peerKey) {
		log.Warn("inbound message dropped by rate limiter", "peer", peerKey)
		return
	}

	key := ids.BuildSessionKey(ids.AgentId(defaultAgentID), msg.Channel, msg.AccountID, msg.PeerType, msg.PeerID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reply, err := pool.ProcessMessage(ctx, string(key), msg.Content)
	if err != nil {
		log.Warn("agent failed to process inbound message", "channel", msg.Channel, "error", err)
		return
	}

	out := channels.OutboundContext{ChatID: string(msg.PeerID)}
	if _, err := adapter.SendText(ctx, out, reply); err != nil {
		log.Warn("failed to deliver reply", "channel", msg.Channel, "error", err)
	}
}

// resolveProvider returns the configured Provider for name, or a stub that
// fails fast at first use. Concrete HTTP request shaping for a named
// provider is out of this module's scope; the stub lets every other RPC
// method keep working when no completion backend is wired in.
func resolveProvider(name string) providers.Provider {
	return unconfiguredProvider{name: name}
}

type unconfiguredProvider struct{ name string }

func (p unconfiguredProvider) Name() string         { return p.name }
func (p unconfiguredProvider) DefaultModel() string { return "" }

func (p unconfiguredProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return nil, fmt.Errorf("provider %q has no completion backend configured", p.name)
}

func (p unconfiguredProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return nil, fmt.Errorf("provider %q has no completion backend configured", p.name)
}

// resolveProviderKey overlays any vault-stored API key onto the loaded
// config, preferring the vault over a plaintext key committed to the config
// file.
func resolveProviderKey(cfg *config.Config, vault *credentials.Vault, log *slog.Logger) {
	overlay := func(name string, apply func(string)) {
		sec, err := vault.Load(name)
		if err != nil {
			return
		}
		apply(sec.ExposeString())
	}
	overlay("anthropic", func(key string) {
		if cfg.Providers.Anthropic == nil {
			cfg.Providers.Anthropic = &config.AnthropicConfig{}
		}
		cfg.Providers.Anthropic.APIKey = key
	})
	overlay("openai", func(key string) {
		if cfg.Providers.OpenAI == nil {
			cfg.Providers.OpenAI = &config.OpenAIConfig{}
		}
		cfg.Providers.OpenAI.APIKey = key
	})
}

func loadOrCreateVaultKey(stateDir string) ([32]byte, error) {
	var key [32]byte
	path := filepath.Join(stateDir, "vault.key")
	raw, err := os.ReadFile(path)
	if err == nil && len(raw) == 32 {
		copy(key[:], raw)
		return key, nil
	}
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generate vault key: %w", err)
	}
	if err := os.WriteFile(path, key[:], 0o600); err != nil {
		return key, fmt.Errorf("persist vault key: %w", err)
	}
	return key, nil
}

func loadOrCreateJWTKey(stateDir string) ([]byte, error) {
	if v := os.Getenv(envJWTSecret); v != "" {
		return []byte(v), nil
	}
	path := filepath.Join(stateDir, "jwt.key")
	if raw, err := os.ReadFile(path); err == nil && len(raw) > 0 {
		return raw, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate jwt key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("persist jwt key: %w", err)
	}
	return key, nil
}
