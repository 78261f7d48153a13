package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, GatewayModeLocal, cfg.Gateway.Mode)
	require.Equal(t, 8080, cfg.Gateway.Port)
}

func TestLoadParsesJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	body := `{
		// trailing commas and comments are fine
		gateway: { port: 9090, bind: "lan" },
		agents: { main: { model: "claude-sonnet-4-5", provider: "anthropic", maxTokens: 4096, temperature: 0.3 } },
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Gateway.Port)
	require.Equal(t, "lan", cfg.Gateway.Bind)
	require.Equal(t, "claude-sonnet-4-5", cfg.Agents["main"].Model)
}

func TestApplyEnvOverridesTakesPrecedenceOverFile(t *testing.T) {
	t.Setenv("OPENCLAW_GATEWAY_PORT", "7777")

	cfg := Default()
	cfg.applyEnvOverrides()
	require.Equal(t, 7777, cfg.Gateway.Port)
}

func TestResolvedGatewayBind(t *testing.T) {
	cases := []struct {
		name string
		cfg  GatewayConfig
		want string
	}{
		{"loopback default", GatewayConfig{Port: 8080}, "127.0.0.1:8080"},
		{"lan bind", GatewayConfig{Port: 8080, Bind: "lan"}, "0.0.0.0:8080"},
		{"public mode", GatewayConfig{Port: 9000, Mode: GatewayModePublic}, "0.0.0.0:9000"},
		{"literal address", GatewayConfig{Bind: "10.0.0.5:1234"}, "10.0.0.5:1234"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{Gateway: tc.cfg}
			require.Equal(t, tc.want, c.ResolvedGatewayBind())
		})
	}
}

func TestHashIsStableAndChangesWithContent(t *testing.T) {
	a := Default()
	b := Default()

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)
	require.Equal(t, hashA, hashB)

	b.Gateway.Port = 1234
	hashB2, err := Hash(b)
	require.NoError(t, err)
	require.NotEqual(t, hashA, hashB2)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, home, ExpandHome("~"))
	require.Equal(t, home+"/state", ExpandHome("~/state"))
	require.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}

func TestWatchReloadsOnFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{gateway: {port: 1111}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1111, cfg.Gateway.Port)

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, path, cfg, func(c *Config) { reloaded <- c })

	require.NoError(t, os.WriteFile(path, []byte(`{gateway: {port: 2222}}`), 0o600))

	select {
	case c := <-reloaded:
		require.Equal(t, 2222, c.Gateway.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("expected config reload within 2s")
	}
}
