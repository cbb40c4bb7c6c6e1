package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yashgoel75/cleit-cdc/internal/app"
	"github.com/yashgoel75/cleit-cdc/internal/config"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if err := logger.Init(logger.ConfigFromEnv()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{"error": err.Error()})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Fatal("http server failed", map[string]any{"error": err.Error()})
		}
	}()

	logger.Info("cleit gate started", map[string]any{
		"port":          cfg.AppPort,
		"event_bus":     cfg.EventBus,
		"profile_store": cfg.ProfileStore,
	})

	<-ctx.Done()
	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("cleit gate stopped cleanly", nil)
}
