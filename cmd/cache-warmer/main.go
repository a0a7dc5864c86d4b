package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hackgods/coach-slot-availability/internal/availability"
	"github.com/hackgods/coach-slot-availability/internal/config"
	"github.com/hackgods/coach-slot-availability/internal/db"
	"github.com/hackgods/coach-slot-availability/internal/ics"
	"github.com/hackgods/coach-slot-availability/internal/logger"
	redisclient "github.com/hackgods/coach-slot-availability/internal/redis"
)

const lockName = "cache-warmer"

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

	lg.Info("cache-warmer starting up",
		zap.String("env", cfg.Env),
		zap.String("schedule", cfg.WarmCron),
		zap.Int("days", cfg.WarmDays),
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

	// Without Redis there is nothing to warm.
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: 4,
	}, lg)
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()

	repo := availability.NewPgRepository(pgPool)
	var schedules availability.ScheduleSource = repo
	if cfg.ICSURLTemplate != "" {
		schedules = ics.NewSource(cfg.ICSURLTemplate, nil, lg.Named("ics"))
	}

	w := &warmer{
		repo: repo,
		planner: availability.NewPlanner(repo, schedules, redisclient.NewResultCache(rdb, "coach-slots"), lg.Named("planner"), availability.PlannerOptions{
			Policy:      cfg.Policy,
			CacheTTL:    cfg.CacheTTL,
			DefaultZone: cfg.BusinessZone,
		}),
		locker: redisclient.NewRedisLocker(rdb, 10*time.Minute),
		logger: lg,
		days:   cfg.WarmDays,
		zone:   cfg.BusinessZone,
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.WarmCron, func() { w.runOnce(rootCtx) }); err != nil {
		lg.Fatal("invalid warm schedule", zap.String("schedule", cfg.WarmCron), zap.Error(err))
	}

	// Run once at startup
	w.runOnce(rootCtx)

	c.Start()
	<-rootCtx.Done()

	lg.Info("shutdown signal received, stopping cache warmer")
	<-c.Stop().Done()
}

type warmer struct {
	repo    availability.Repository
	planner *availability.Planner
	locker  redisclient.Locker
	logger  *zap.Logger
	days    int
	zone    string
}

func (w *warmer) runOnce(ctx context.Context) {
	start := time.Now()
	err := w.locker.WithLock(ctx, lockName, w.warm)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		w.logger.Info("another warmer holds the lock, skipping run")
	case err != nil:
		w.logger.Error("warm run failed", zap.Error(err))
	default:
		w.logger.Info("warm run complete", zap.Duration("took", time.Since(start)))
	}
}

// warm computes the days after today for each warm target. Each Day call
// stores its result in the shared cache; today is never cached.
func (w *warmer) warm(ctx context.Context) error {
	targets, err := w.repo.WarmTargets(ctx)
	if err != nil {
		return err
	}

	zone, err := availability.LoadZone(w.zone)
	if err != nil {
		zone = time.UTC
	}
	today := availability.DateOf(time.Now(), zone)

	var failed int
	for _, t := range targets {
		for i := 1; i <= w.days; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			q := availability.Query{
				ServiceID:  t.ServiceID,
				CoachID:    t.CoachID,
				LocationID: t.LocationID,
				Date:       today.AddDays(i),
			}
			if _, err := w.planner.Day(ctx, q); err != nil {
				failed++
				w.logger.Warn("warm day failed",
					zap.String("service_id", t.ServiceID),
					zap.String("coach_id", t.CoachID),
					zap.String("date", q.Date.String()),
					zap.Error(err),
				)
			}
		}
	}

	w.logger.Info("warm targets processed",
		zap.Int("targets", len(targets)),
		zap.Int("days", w.days),
		zap.Int("failed", failed),
	)
	return nil
}
