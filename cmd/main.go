package main

import (
	"fmt"
	"os"

	"script_ai_server/config"
	"script_ai_server/internal/ai"
	"script_ai_server/internal/logger"
	"script_ai_server/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scriptgen",
	Short: "scriptgen generates small scripts with a local LLM",
	Long: `scriptgen asks an OpenAI-compatible model (LM Studio by default) for the files of a
minimal script in the requested stack, stores them per project and serves them for download.
Without a subcommand it starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", ".", "Directory holding an optional config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is everything both subcommands share.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	generator *ai.Generator
	store     *storage.ProjectStore
}

func bootstrap() (*app, error) {
	bootLog := logger.New("info", "console", os.Stderr)

	// --- Load .env file ---
	// Must run before viper reads the environment.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			bootLog.Warn().Err(err).Msg("error loading .env file")
		} else {
			bootLog.Debug().Msg(".env file not found, relying on system environment variables")
		}
	} else {
		bootLog.Info().Msg("loaded environment variables from .env file")
	}

	// --- Configuration Loading ---
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	// --- Dependency Initialization ---
	generator, err := ai.NewGenerator(cfg.AI(), log)
	if err != nil {
		return nil, fmt.Errorf("cannot create AI generator: %w", err)
	}

	store, err := storage.NewProjectStore(cfg.GeneratedScriptsDir, log)
	if err != nil {
		return nil, fmt.Errorf("cannot open scripts directory: %w", err)
	}

	log.Info().
		Str("model", cfg.AIModel).
		Str("base_url", cfg.AIBaseURL).
		Int("max_attempts", cfg.AIMaxAttempts).
		Str("scripts_dir", cfg.GeneratedScriptsDir).
		Msg("dependencies initialized")

	return &app{cfg: cfg, logger: log, generator: generator, store: store}, nil
}
