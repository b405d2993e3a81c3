package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/itemmatch/internal/config"
	"github.com/kailas-cloud/itemmatch/internal/version"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "itemmatch",
	Short: "Find semantically matching items across two lists",
	Long: `itemmatch asks a language-model oracle which items of two short lists
name the same thing and keeps the pairs that reach a similarity threshold.

Run "itemmatch serve" for the HTTP API or "itemmatch compare" for a one-off
comparison of two files.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: config/<ENV>.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compareCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise the file for ENV.
func loadConfig() (string, config.Config, error) {
	env := config.GetEnv()
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		return env, cfg, err
	}
	cfg, err := config.Load(env)
	return env, cfg, err
}
