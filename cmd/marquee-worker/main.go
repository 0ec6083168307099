package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marquee/internal/boxoffice"
	"marquee/internal/config"
	"marquee/internal/db"
	"marquee/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	territories, err := boxoffice.LoadTerritories(cfg.TerritoriesPath)
	if err != nil {
		logger.Error("load territories failed", "err", err)
		os.Exit(1)
	}
	calendar, err := boxoffice.LoadCalendar(cfg.HolidaysPath)
	if err != nil {
		logger.Error("load holiday calendar failed", "err", err)
		os.Exit(1)
	}
	engine, err := boxoffice.NewEngine(territories, calendar, cfg.EngineSeed)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	svc := game.NewService(pool, engine, logger)

	if cfg.WorkerRunOnce {
		if err := svc.AutoAdvanceStudios(ctx); err != nil {
			logger.Error("auto advance failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.AutoAdvanceEvery)
	defer ticker.Stop()

	logger.Info("worker started", "advance_every", cfg.AutoAdvanceEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := svc.AutoAdvanceStudios(ctx); err != nil {
				logger.Error("auto advance failed", "err", err)
				continue
			}
			logger.Info("auto advance complete")
		}
	}
}
