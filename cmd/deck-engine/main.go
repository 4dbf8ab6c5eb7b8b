// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deck-engine CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deck-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the deck-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "deck-engine",
	Short: "Plan, review, and produce presentation decks from source documents",
	Long: `deck-engine turns a directory of source documents and a briefing into a
presentation deck. A model first proposes a card-by-card plan; you review it,
answer its questions, and revise until it is right; approval then produces the
text of every card, grounded in the documents, in parallel batches.

The session lives in a local SQLite store, so each step is its own command:
plan, review, revise, approve, and retry. Ctrl-C during a model call aborts the
session and keeps any cards already produced.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger()

		dir := viper.GetString("secrets_dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "dir", dir, "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./deck-engine.yaml or ~/.config/deck-engine/deck-engine.yaml)")
	pf.BoolP("verbose", "v", false, "log debug detail to stderr")
	pf.String("session", "", "session ID (default: the most recently updated session)")
	pf.String("provider", "anthropic", "model provider: anthropic or openai")
	pf.String("model", "", "model identifier (default depends on the provider)")
	pf.Int("max-tokens", 0, "response token cap for planning and production calls (0 = stage defaults)")
	pf.Float64("temperature", 0, "sampling temperature (unset keeps the model default)")
	pf.Int("max-retries", 0, "attempts per API key for retryable failures (default 5)")
	pf.Int("batch-size", 0, "cards per production call (default 12)")
	pf.Int("concurrency", 0, "production calls in flight at once (default 3)")
	pf.String("store-dir", "decks", "directory for the session database and exports")
	pf.String("docs-dir", "docs", "directory of source documents")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of API key files")

	for key, flag := range map[string]string{
		"verbose":     "verbose",
		"session":     "session",
		"provider":    "provider",
		"model":       "model",
		"max_tokens":  "max-tokens",
		"temperature": "temperature",
		"max_retries": "max-retries",
		"batch_size":  "batch-size",
		"concurrency": "concurrency",
		"store_dir":   "store-dir",
		"docs_dir":    "docs-dir",
		"secrets_dir": "secrets-dir",
	} {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("deck-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "deck-engine"))
		}
	}

	viper.SetEnvPrefix("DECK_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogger() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
