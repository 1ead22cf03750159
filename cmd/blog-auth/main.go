package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tendant/blog-auth/internal/app"
	"github.com/tendant/blog-auth/internal/config"
)

func main() {
	// A missing .env is fine; the process environment is used as is.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting blog-auth",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"redis", cfg.HasRedis(),
		"captcha", cfg.Captcha.Enabled,
		"audit_sinks", cfg.Audit.Sinks,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		logger.Error("failed to release resources", "error", err)
	}
	if runErr != nil {
		logger.Error("server stopped with error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// logLevel parses LOG_LEVEL (debug, info, warn, error), defaulting to info.
func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
