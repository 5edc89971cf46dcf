package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"tax-assistant/internal/app"
	"tax-assistant/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration ----
	cfg, err := config.Load(os.Getenv("TAXCHAT_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelOf(cfg.Log.Level)}))
	slog.SetDefault(logger)

	// ---- Service ----
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to build answer service", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}

func levelOf(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
