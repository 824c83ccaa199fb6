package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/demo/asker"
	"github.com/askdb/askdb/internal/observability"
)

func main() {
	serviceCfg, err := config.LoadFromEnv("askdb-demo")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(serviceCfg, os.Stdout)

	cfg, err := asker.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load demo config", slog.Any("error", err))
		os.Exit(1)
	}

	svc, err := asker.NewService(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize demo driver", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting demo question driver",
		slog.String("url", cfg.APIBaseURL),
		slog.Duration("interval", cfg.Interval),
		slog.Int("questions_per_tick", cfg.QuestionsPerTick),
		slog.Int("max_questions", cfg.MaxQuestions),
	)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("demo question driver stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
