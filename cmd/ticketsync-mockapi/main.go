package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"ticketone/sync/internal/config"
	"ticketone/sync/internal/log"
	"ticketone/sync/internal/mockapi"
	"ticketone/sync/internal/storage"
)

func main() {
	configPath := pflag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	port := pflag.Int("port", 0, "listen port, overrides http.port")
	pflag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.HTTP.Port = *port
	}

	logger := log.New(cfg.Environment)
	ctx := context.Background()

	objects, err := openObjects(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object storage")
	}

	handlerSet := mockapi.NewHandlerSet(logger, cfg, mockapi.NewStore(), objects)
	httpServer := mockapi.NewServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer)
}

// openObjects uses the configured bucket when there is one and the
// built-in sink otherwise. The server points the sink at its listener
// unless a public base URL is configured.
func openObjects(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (storage.Backend, error) {
	if cfg.Storage.Endpoint == "" {
		logger.Info().Msg("using in-memory object sink")
		return storage.NewSink(cfg.Storage.PublicBaseURL, cfg.Storage.PresignTTL), nil
	}

	store, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}
	return store, nil
}

func waitForShutdown(logger zerolog.Logger, srv *mockapi.Server) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("mock api exited cleanly")
}
