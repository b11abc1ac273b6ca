// Doubloon is a household expense tracker for couples: it ingests bank
// statements, classifies spending with Gemini and serves the dashboard API.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/doubloon-app/doubloon/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "doubloon",
		Short: "Household expense tracker for couples",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newSetupCommand(),
		newImportCommand(),
		newClassifyCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads .env when present and builds config plus the JSON logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
