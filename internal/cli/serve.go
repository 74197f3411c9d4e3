package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nexus-quest/pulse/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides [api] host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides [api] port)")
	serveCmd.Flags().StringVar(&serveState, "state", "", "Seed player state from a JSON file")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "Synthesis provider: gemini, openai or none")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost     string
	servePort     int
	serveState    string
	serveProvider string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nexus Pulse API server",
	Long: `Serve insights, syntheses, history and the live feed over HTTP.
Player state arrives via PUT /api/pulse/state or the --state file.`,
	Example: `  pulse serve
  pulse serve --port 8080 --state ./player.json --provider none`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if serveState != "" {
		cfg.Pulse.StateFile = serveState
	}
	if serveProvider != "" {
		cfg.Synthesis.Provider = serveProvider
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := daemon.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	return d.Serve(ctx)
}
