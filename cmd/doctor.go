package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/gateway/internal/config"
	"github.com/openclaw/gateway/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("openclaw-gateway doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, defaults apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    %-12s %s\n", "Mode:", cfg.Gateway.Mode)
	fmt.Printf("    %-12s %s\n", "Bind:", cfg.ResolvedGatewayBind())

	fmt.Println()
	fmt.Println("  Agents:")
	if len(cfg.Agents) == 0 {
		fmt.Println("    (none configured)")
	}
	for id, agent := range cfg.Agents {
		fmt.Printf("    %-12s %s/%s\n", id+":", agent.Provider, agent.Model)
	}

	fmt.Println()
	fmt.Println("  Providers:")
	anthropicKey, openaiKey := "", ""
	if cfg.Providers.Anthropic != nil {
		anthropicKey = cfg.Providers.Anthropic.APIKey
	}
	if cfg.Providers.OpenAI != nil {
		openaiKey = cfg.Providers.OpenAI.APIKey
	}
	checkProvider("Anthropic", anthropicKey)
	checkProvider("OpenAI", openaiKey)
	if cfg.Providers.Ollama != nil {
		fmt.Printf("    %-12s %s\n", "Ollama:", cfg.Providers.Ollama.BaseURL)
	} else {
		fmt.Printf("    %-12s (not configured)\n", "Ollama:")
	}

	fmt.Println()
	fmt.Println("  Channels:")
	checkChannel("Telegram", cfg.Channels.Telegram != nil && cfg.Channels.Telegram.BotToken != "")
	checkChannel("Discord", cfg.Channels.Discord != nil && cfg.Channels.Discord.BotToken != "")
	checkChannel("Slack", cfg.Channels.Slack != nil && cfg.Channels.Slack.BotToken != "")
	checkChannel("Signal", cfg.Channels.Signal != nil && cfg.Channels.Signal.Number != "")
	checkChannel("Matrix", cfg.Channels.Matrix != nil && cfg.Channels.Matrix.AccessToken != "")

	fmt.Println()
	fmt.Println("  External Tools:")
	checkBinary("docker")
	checkBinary("git")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkProvider(name, apiKey string) {
	if apiKey == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	masked := apiKey
	if len(apiKey) > 8 {
		masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
	}
	fmt.Printf("    %-12s %s\n", name+":", masked)
}

func checkChannel(name string, configured bool) {
	status := "disabled"
	if configured {
		status = "enabled"
	}
	fmt.Printf("    %-12s %s\n", name+":", status)
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}
