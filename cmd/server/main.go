package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"barbershop-queue/internal/app"
	"barbershop-queue/internal/config"
	"barbershop-queue/internal/lib/logger/sl"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	log := setupLogger(cfg.Env)
	log.Info("starting barbershop queue", slog.String("env", cfg.Env))

	application, err := app.New(log, cfg)
	if err != nil {
		log.Error("failed to initialize", sl.Err(err))
		os.Exit(1)
	}

	go application.MustRun()

	// graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGTERM, syscall.SIGINT)

	sign := <-stopChan
	log.Info("stopping application", slog.String("signal", sign.String()))
	if err := application.Stop(); err != nil {
		log.Error("failed to stop application", sl.Err(err))
		return
	}
	log.Info("application stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return log
}
