package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lazypower/reverie/internal/client"
	"github.com/lazypower/reverie/internal/config"
	"github.com/lazypower/reverie/internal/logging"
)

var (
	cfgFile   string
	serverURL string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reverie",
	Short: "Memory engine for simulated agents",
	Long: "Reverie keeps short-term and long-term memories for simulated agents and " +
		"retrieves the ones most relevant to what an agent is attending to.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to subcommands.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.reverie/config.{toml,yaml,json})")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("db", "", "database path (default ~/.reverie/reverie.db)")
	pf.StringVar(&serverURL, "server", "", "reverie server URL (default $REVERIE_URL or "+client.DefaultURL+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(perceiveCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(tickCmd)
}

// loadConfig reads .env, the config file, environment and flags, then sets
// up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := logging.Init(c.Log.Level, c.Log.Format); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	cfg = c
	return nil
}

func apiClient() *client.Client {
	return client.New(serverURL)
}
