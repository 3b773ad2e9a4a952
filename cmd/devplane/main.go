package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forgestack/devplane/internal/api"
	"github.com/forgestack/devplane/internal/bucket"
	"github.com/forgestack/devplane/internal/config"
	"github.com/forgestack/devplane/internal/llm"
	"github.com/forgestack/devplane/internal/metrics"
	"github.com/forgestack/devplane/internal/state"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("base_path", cfg.BasePath).
		Str("database_backend", cfg.DatabaseBackend).
		Bool("auth_disabled", cfg.AuthDisabled).
		Msg("starting devplane api")

	db, err := bucket.Open(cfg.DatabaseBackend, cfg.WorkspaceDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database backend")
	}
	if db != nil {
		defer db.Close()
	}

	var chat llm.ChatClient
	if cfg.ChatBaseURL != "" {
		chat = llm.NewOpenAIClient(
			cfg.ChatAPIKey,
			llm.WithBaseURL(cfg.ChatBaseURL),
			llm.WithLogger(logger),
		)
		logger.Info().Str("base_url", cfg.ChatBaseURL).Msg("chat backend: openai-compatible")
	} else {
		chat = llm.NewLocalEngine()
		logger.Info().Msg("chat backend: local engine")
	}

	m := metrics.New()

	st, err := state.New(cfg, db, chat, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build state store")
	}

	server := api.NewServer(st, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.ListenAddr)
	}()
	logger.Info().Str("addr", cfg.ListenAddr).Str("base_path", cfg.BasePath).Msg("api listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	// Final snapshot so restarts come back with the latest state.
	st.Persist()
	logger.Info().Msg("stopped")
}
