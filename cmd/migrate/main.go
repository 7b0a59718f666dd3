package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callplane/internal/config"
	"callplane/internal/store/postgres"
	"callplane/pkg/logger"
	"callplane/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	applied, err := postgres.Migrate(ctx, db)
	for _, name := range applied {
		log.Info("migration applied", "migration", name)
	}
	if err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	if len(applied) == 0 {
		log.Info("schema up to date")
	}
}
