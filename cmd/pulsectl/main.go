package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pulsekeep/pulsekeep/internal/config"
	"github.com/pulsekeep/pulsekeep/internal/factory"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "pulsectl",
		Short: "CLI for the pulse enrichment backend",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from file before reading config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStorage resolves config (optionally from --env-file) and opens the
// store plus queue. Callers must Close the returned storage.
func openStorage(ctx context.Context) (*factory.Storage, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return factory.NewStorage(ctx, cfg, zerolog.Nop())
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, string(data))
	return nil
}
