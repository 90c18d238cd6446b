package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adcontrol/internal/config"
	"github.com/ignite/adcontrol/internal/pkg/distlock"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/repository/postgres"
	"github.com/ignite/adcontrol/internal/scheduler"
)

func main() {
	logger.Info("scheduler: starting adcontrol scheduler")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("scheduler: load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("scheduler: open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("scheduler: ping database: %v", err)
	}
	cancel()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("scheduler: parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
	}

	lock := distlock.NewLock(redisClient, db, "adcontrol:scheduler:leader", cfg.Scheduler.LockTTL())
	jobRepo := postgres.NewJobRepo(db)

	sched := scheduler.New(jobRepo, lock, cfg.Scheduler.LockTTL(), cfg.Server.OrganizationID, cfg.Scheduler.RuleCheckCron, cfg.Scheduler.ReportDispatchCron)

	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("scheduler: start: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("scheduler: shutting down")
	cancelRun()
	sched.Stop()
	logger.Info("scheduler: stopped")
}
