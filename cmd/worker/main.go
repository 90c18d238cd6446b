package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strings"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adcontrol/internal/aiadapter"
	"github.com/ignite/adcontrol/internal/archive"
	"github.com/ignite/adcontrol/internal/cache"
	"github.com/ignite/adcontrol/internal/config"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/notify"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/reportcatalog"
	"github.com/ignite/adcontrol/internal/repository/postgres"
	"github.com/ignite/adcontrol/internal/ruleengine"
	"github.com/ignite/adcontrol/internal/settingsstore"
	"github.com/ignite/adcontrol/internal/upstream"
	"github.com/ignite/adcontrol/internal/worker"
)

// selectAIAdapter returns a Bedrock-backed adapter when AWS config names a
// region, otherwise the deterministic fallback so the analyze task keeps
// working without AI credentials.
func selectAIAdapter(ctx context.Context, cfg *config.Config) aiadapter.Adapter {
	if cfg.AWS.Region == "" {
		return aiadapter.NewFallbackAdapter()
	}
	adapter, err := aiadapter.NewBedrockAdapter(ctx, cfg.AWS.Region, cfg.AWS.GetProfile(), cfg.AWS.BedrockModelID)
	if err != nil {
		logger.Warn("worker: bedrock adapter unavailable, using fallback", "error", err.Error())
		return aiadapter.NewFallbackAdapter()
	}
	return adapter
}

func selectArchiveStore(ctx context.Context, cfg *config.Config) *archive.Store {
	if cfg.AWS.S3Bucket == "" {
		return nil
	}
	store, err := archive.NewStore(ctx, cfg.AWS.Region, cfg.AWS.GetProfile(), cfg.AWS.S3Bucket, "reports")
	if err != nil {
		logger.Warn("worker: archive store unavailable", "error", err.Error())
		return nil
	}
	return store
}

func main() {
	logger.Info("worker: starting adcontrol worker pool")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("worker: load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("worker: open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("worker: ping database: %v", err)
	}
	cancelPing()
	logger.Info("worker: connected to database")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("worker: parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
	}

	ctx := context.Background()
	settings, err := settingsstore.New(cfg.Settings.FilePath)
	if err != nil {
		log.Fatalf("worker: load settings store: %v", err)
	}

	var rateLimiter *upstream.RateLimiter
	var upstreamCache *cache.Cache
	if redisClient != nil {
		rateLimiter = upstream.NewRateLimiter(redisClient, cfg.Upstream.RatePerSecond, cfg.Upstream.RatePerMinute)
		upstreamCache = cache.New(redisClient, "adcontrol:upstream", 30*time.Second)
	}
	upstreamClient := upstream.New(
		cfg.Upstream.BaseURL,
		settings.GetString(domain.SettingUpstreamAccountID),
		settings.GetString(domain.SettingUpstreamAPIToken),
		upstream.WithRateLimiter(rateLimiter),
		upstream.WithTimeouts(cfg.Upstream.Timeout(), 120*time.Second),
		upstream.WithCache(upstreamCache),
	)

	var channels []notify.Channel
	if from := settings.GetString(domain.SettingNotifyEmailFrom); from != "" {
		if recipients := os.Getenv("ALERT_EMAIL_RECIPIENTS"); recipients != "" {
			if ch, err := notify.NewEmailChannel(ctx, cfg.AWS.Region, cfg.AWS.GetProfile(), from, splitCSV(recipients)); err == nil {
				channels = append(channels, ch)
			}
		}
	}
	if hook := settings.GetString(domain.SettingNotifySlackWebhook); hook != "" {
		if dests := os.Getenv("ALERT_SLACK_CHANNELS"); dests != "" {
			channels = append(channels, notify.NewSlackChannel(hook, splitCSV(dests)))
		}
	}
	fanout := notify.NewFanout(channels...)

	alertRepo := postgres.NewAlertRepo(db)
	automationRepo := postgres.NewAutomationRepo(db)
	reportRepo := postgres.NewReportRepo(db)
	jobRepo := postgres.NewJobRepo(db)

	engine := ruleengine.New(alertRepo, automationRepo, upstreamClient, fanout)
	materializer := reportcatalog.NewMaterializer(upstreamClient)
	aiAdapter := selectAIAdapter(ctx, cfg)
	archiveStore := selectArchiveStore(ctx, cfg)

	pool := worker.New(
		jobRepo,
		cfg.Worker.Concurrency,
		cfg.Worker.PollInterval(),
		cfg.Worker.StaleAfter(),
		time.Duration(cfg.Worker.CleanupRetentionDays)*24*time.Hour,
	)

	worker.RegisterDefaultTasks(pool, worker.Deps{
		Store:            jobRepo,
		Upstream:         upstreamClient,
		Materializer:     materializer,
		AI:               aiAdapter,
		Archive:          archiveStore,
		Fanout:           fanout,
		Engine:           engine,
		Alerts:           alertRepo,
		Automations:      automationRepo,
		Reports:          reportRepo,
		OrganizationID:   cfg.Server.OrganizationID,
		ReportsDir:       cfg.Reports.LocalDir,
		ReportRetention:  time.Duration(cfg.Reports.RetentionDays) * 24 * time.Hour,
		JobCleanupWindow: cfg.Worker.StaleAfter(),
	})

	if err := os.MkdirAll(cfg.Reports.LocalDir, 0o755); err != nil {
		log.Fatalf("worker: create reports dir: %v", err)
	}

	pool.Start()
	logger.Info("worker: pool started", "concurrency", cfg.Worker.Concurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("worker: shutting down")
	pool.Stop()
	logger.Info("worker: stopped")
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
