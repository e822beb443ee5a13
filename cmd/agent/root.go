package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-chat-agent/internal/config"
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "agent",
		Short: "Telegram assistant with planning, tools and persistent memory",
		Long: `agent receives Telegram messages, decides whether they deserve a reply,
optionally calls sandboxed tools, and answers through an LLM provider.

Examples:
  agent run --env-file .env
  agent migrate
  agent calc "2 + 2 * 5"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", "", "load environment variables from this .env file first")

	root.AddCommand(
		newRunCmd(version),
		newMigrateCmd(),
		newCalcCmd(),
	)
	return root
}

// loadConfig applies the optional --env-file and then reads the environment.
// Variables already set in the process environment win over the file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("env-file")
	if path = strings.TrimSpace(path); path != "" {
		if err := godotenv.Load(path); err != nil {
			return config.Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return config.Load()
}
