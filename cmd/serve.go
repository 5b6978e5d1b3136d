package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanCardin15/counterplay/internal/app"
	"github.com/RyanCardin15/counterplay/internal/config"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the counterplay server",
		Long: `Starts the HTTP server exposing the OAuth 2.1 authorization endpoints,
the discovery metadata, and the bearer-protected MCP tool surface at /mcp.

Configuration is read from the given YAML file (missing file means
defaults) with COUNTERPLAY_* environment variables taking precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			app.Version = rootCmd.Version
			a, err := app.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	return cmd
}
