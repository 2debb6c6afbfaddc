package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/breakoutcharts/markethub/internal/config"
	"github.com/breakoutcharts/markethub/internal/hub"
	"github.com/breakoutcharts/markethub/internal/server"
	"github.com/breakoutcharts/markethub/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/markethub.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting markethub",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"rest_url", cfg.Alpaca.RestURL,
		"stream_url", cfg.Alpaca.StreamURL,
		"feed", cfg.Alpaca.Feed,
		"profile", cfg.Stream.Profile,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Start the relay hub
	h := hub.New(cfg, logger)
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}

	// Serve HTTP until shutdown
	srv := server.New(cfg, h, logger.With("component", "server"))
	if err := srv.Start(ctx); err != nil {
		logger.Error("http server error", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := h.Stop(shutdownCtx); err != nil {
		logger.Warn("hub shutdown", "error", err)
	}

	logger.Info("markethub stopped")
}
