package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/undertow/config"
)

var (
	configPath string
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:   "undertow",
	Short: "Plan and run multi-step workflows from natural language",
	Long: "Undertow decomposes a natural-language request into a sequence of " +
		"tool calls, analyses, and notifications, then executes the steps with " +
		"retries, circuit breaking, and human confirmation for irreversible actions.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "Session id grouping related workflows")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.ParseFile(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
