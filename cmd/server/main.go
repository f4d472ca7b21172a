package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/infrastructure/config"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warn("shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}
}
