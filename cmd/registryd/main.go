package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/internal/registryd"
)

func main() {
	if envFile := os.Getenv("REGISTRY_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := registryd.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	var store registryd.Store
	if cfg.DatabaseURL != "" {
		store, err = registryd.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open store", zap.Error(err))
		}
		logger.Info("using postgres store")
	} else {
		store = registryd.NewMemoryStore()
		logger.Info("using in-memory store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := registryd.NewServer(cfg, logger, store)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
