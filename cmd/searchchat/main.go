package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"SearchChat/internal/backend"
	"SearchChat/internal/chatbot"
	"SearchChat/internal/config"
	"SearchChat/internal/pipeline"
	"SearchChat/internal/search"
	"SearchChat/internal/store"
	"SearchChat/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	v       = config.New()
	rootCmd = &cobra.Command{
		Use:           "searchchat",
		Short:         "Terminal chat assistant with optional web-search grounding",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Log.Level = "debug"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "", "Path to a config file (default ./searchchat.yaml)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("backend", config.BackendAzure, "LLM backend (azure|openai|grok|ollama|anthropic|langchain)")
	flags.String("model", "", "Model or Azure deployment name (default depends on backend: gpt-4o, llama3:latest, ...)")
	flags.String("endpoint", config.PlaceholderEndpoint, "Engine endpoint or base URL")
	flags.String("session-id", "", "Load existing session by ID")
	flags.Bool("search", false, "Start with web search enabled")
	flags.String("db", "searchchat.db", "SQLite database path")
	flags.String("log-dir", "logs", "Directory for log, trace and metric files")

	for key, flag := range map[string]string{
		"engine.backend":         "backend",
		"engine.model":           "model",
		"engine.endpoint":        "endpoint",
		"session.id":             "session-id",
		"session.search_enabled": "search",
		"database.path":          "db",
		"log.dir":                "log-dir",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := telemetry.InitLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	inst, shutdown, err := telemetry.InitTelemetry(ctx, cfg.Log.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	engine, err := backend.New(cfg.Engine, inst, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize completion engine: %w", err)
	}

	var fetcher search.Fetcher
	if cfg.Search.SubscriptionKey == "" || cfg.Search.SubscriptionKey == config.PlaceholderAPIKey {
		logger.Warn("no Bing subscription key configured, web search disabled")
	} else {
		bing := search.NewBing(cfg.Search.Endpoint, cfg.Search.SubscriptionKey,
			&http.Client{Timeout: cfg.Search.Timeout}, inst, logger)
		fetcher = search.NewCached(bing, cfg.Search.CacheTTL, logger)
	}

	orch, err := pipeline.New(engine, fetcher, pipeline.Options{
		Backend:       cfg.Engine.Backend,
		MaxResults:    cfg.Search.Count,
		EngineTimeout: cfg.Engine.Timeout,
		FetchTimeout:  cfg.Search.Timeout,
	}, inst, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	sessions, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sessions.Close()

	bot := chatbot.New(orch, sessions, engine, logger)
	bot.Start(ctx, cfg.Session.ID, cfg.Session.SearchEnabled)
	return bot.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
