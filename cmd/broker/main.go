package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaywire/chat-broker/internal/config"
	"github.com/relaywire/chat-broker/internal/history"
	"github.com/relaywire/chat-broker/internal/presence"
	"github.com/relaywire/chat-broker/internal/room"
	"github.com/relaywire/chat-broker/internal/router"
	"github.com/relaywire/chat-broker/internal/server"
	"github.com/relaywire/chat-broker/internal/typing"
	"github.com/relaywire/chat-broker/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/broker.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting broker",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
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

	// Build the state stores and the router
	registry := presence.NewRegistry(logger)
	directory := room.NewDirectory(registry, logger)
	messageLog := history.NewLog(cfg.Chat.HistoryCapacity, logger)
	typingTracker := typing.NewTracker()

	eventRouter := router.New(
		router.Config{DefaultRoom: cfg.Chat.DefaultRoom},
		registry, directory, messageLog, typingTracker, logger,
	)

	// Wire the transport and start serving
	handler := server.NewHandler(*cfg, eventRouter, registry, messageLog, logger)
	srv := server.New(cfg.Server, handler.Routes())

	go func() {
		logger.Info("listening", "addr", srv.Addr, "default_room", cfg.Chat.DefaultRoom)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	if err := server.Shutdown(srv, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	logger.Info("broker stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
