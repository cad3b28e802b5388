package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/chatdb/chatdb/internal/app"
	"github.com/chatdb/chatdb/internal/config"
	"github.com/chatdb/chatdb/internal/mcpserver"
	"github.com/chatdb/chatdb/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("chatdb-mcp")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	// stdout carries the protocol.
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = application.Close() }()

	stdio := server.NewStdioServer(mcpserver.New(application.MCPDependencies()))
	logger.Info("mcp server started (stdio transport)")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp stdio server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
