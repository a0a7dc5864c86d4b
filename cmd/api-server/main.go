package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/coach-slot-availability/internal/api"
	"github.com/hackgods/coach-slot-availability/internal/availability"
	"github.com/hackgods/coach-slot-availability/internal/config"
	"github.com/hackgods/coach-slot-availability/internal/db"
	"github.com/hackgods/coach-slot-availability/internal/ics"
	"github.com/hackgods/coach-slot-availability/internal/logger"
	redisclient "github.com/hackgods/coach-slot-availability/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolOptions(), lg)
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	repo := availability.NewPgRepository(pgPool)

	routerCfg := api.RouterConfig{
		Policy:   cfg.Policy,
		Postgres: pgPool.Ping,
		Logger:   lg,
		Env:      cfg.Env,
		Version:  version,
	}

	// Redis only backs the result cache; the server keeps answering without it.
	var cache availability.Cache
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	}, lg)
	if err != nil {
		lg.Warn("redis unavailable, running without result cache", zap.Error(err))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("error closing redis", zap.Error(err))
			}
		}()
		cache = redisclient.NewResultCache(rdb, "coach-slots")
		routerCfg.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var schedules availability.ScheduleSource = repo
	if cfg.ICSURLTemplate != "" {
		schedules = ics.NewSource(cfg.ICSURLTemplate, nil, lg.Named("ics"))
		lg.Info("coach schedules read from ICS feeds")
	}

	routerCfg.Service = availability.NewPlanner(repo, schedules, cache, lg.Named("planner"), availability.PlannerOptions{
		Policy:      cfg.Policy,
		CacheTTL:    cfg.CacheTTL,
		DefaultZone: cfg.BusinessZone,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			lg.Error("http server error", zap.Error(err))
		}
	}

	lg.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
