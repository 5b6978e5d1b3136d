// Package cmd implements the counterplay command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the counterplay server.
var rootCmd = &cobra.Command{
	Use:   "counterplay",
	Short: "An OAuth-gated MCP server for game loadout assistance",
	Long: `counterplay serves a game-loadout assistant over the Model Context
Protocol (MCP), gated by a built-in OAuth 2.1 authorization server with
PKCE, refresh token rotation, and RFC 7009 revocation.

Start the server with 'counterplay serve'.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "counterplay version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
