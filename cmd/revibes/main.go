// Command revibes runs the Revibes loyalty and recycling API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/runtime"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.PathEnv), "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logr := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(cfg, logr)
	if err != nil {
		logr.WithError(err).Fatal("failed to build application")
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		logr.WithError(runErr).Error("server stopped unexpectedly")
	} else {
		logr.Info("shutdown signal received")
	}

	if err := application.Shutdown(context.Background()); err != nil {
		logr.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
	logr.Info("revibes stopped")
}
