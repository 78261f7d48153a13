package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/gateway/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/openclaw/gateway/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "openclaw-gateway",
	Short: "openclaw-gateway — local-first AI agent gateway",
	Long:  "openclaw-gateway: a JSON-RPC gateway fronting one or more LLM-backed agents over WebSocket, with channel adapters, a sandboxed tool loop, and an event-sourced session log.",
	Run: func(cmd *cobra.Command, args []string) {
		runGateway()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $OPENCLAW_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(doctorCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("openclaw-gateway %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("OPENCLAW_CONFIG_PATH"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
