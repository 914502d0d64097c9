// Package main is the web3mail task entrypoint executed inside the enclave.
//
// The process reads its whole input from the environment, sends the email
// for each protected data of the task, and writes result.json and
// computed.json to IEXEC_OUT. It exits 0 only when every email was sent.
// Setup failures (malformed secrets, missing IEXEC_OUT) exit 1 without
// writing any output.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"web3mail/internal/config"
	"web3mail/internal/external"
	"web3mail/internal/validation"
	"web3mail/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Stdout)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, stdout io.Writer) int {
	raw, err := config.LoadRawEnvironment()
	if err != nil {
		slog.New(slog.NewJSONHandler(stdout, nil)).Error("failed to load environment", "error", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: parseLevel(raw.LogLevel),
	}))
	build := config.NewBuildInfo()
	logger.Info("web3mail worker starting",
		"version", build.Version,
		"commit", build.Commit,
		"bulk_slice_size", raw.BulkSliceSize,
	)

	cfg, err := worker.ParseConfig(raw, validation.New(logger))
	if err != nil {
		logger.Error("invalid task configuration", "error", err)
		return 1
	}

	clients := external.NewClientRegistry(worker.RegistryConfig(cfg, build.UserAgent()), logger)
	outcome, err := worker.New(ctx, cfg, clients, logger).Run(ctx)
	if err != nil {
		logger.Error("failed to write task output", "error", err)
		return 1
	}
	if !outcome.Success {
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
