package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ukwikibot/internal/config"
	"ukwikibot/pkg/log"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ukwikibot",
	Short: "Ukrainian Wikipedia chat assistant",
	Long: `ukwikibot answers questions about Ukrainian Wikipedia articles over
Telegram, WhatsApp and an HTTP API.

Run "ukwikibot serve" to start the bot, or "ukwikibot ask" to try a
single message from the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up logging for a command.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath, overrides...)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	if _, err := log.Setup(log.Options{Level: level, File: cfg.Log.File}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// offline disables the long-running transports for one-shot commands.
func offline(cfg *config.Config) {
	cfg.Telegram.Enabled = false
	cfg.WhatsApp.Enabled = false
	cfg.HTTP.Enabled = false
}
