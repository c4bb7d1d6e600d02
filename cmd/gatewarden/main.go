// Gatewarden gateway daemon.
// Serves HTTP with the security interceptor in front of every protected route.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gatewarden/gatewarden/internal/gateway"
	"github.com/gatewarden/gatewarden/internal/version"
)

var configPath = flag.String("config", "", "YAML config file (optional)")

func main() {
	flag.CommandLine.SetOutput(os.Stdout)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("gatewarden starting", "version", version.String())

	cfg := gateway.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		logger.Error("failed to load environment", "error", err)
		os.Exit(1)
	}

	server, err := gateway.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start gateway", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Error("gateway exited", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}
