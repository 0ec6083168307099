package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marquee/internal/api"
	"marquee/internal/auth"
	"marquee/internal/boxoffice"
	"marquee/internal/config"
	"marquee/internal/db"
	"marquee/internal/game"
	"marquee/internal/session"
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

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	gameSvc := game.NewService(pool, engine, logger)
	hub := session.NewHub(gameSvc, logger)

	server := api.New(cfg, logger, tokens, gameSvc, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("marquee api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
