package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adcontrol/internal/api"
	"github.com/ignite/adcontrol/internal/auth"
	"github.com/ignite/adcontrol/internal/cache"
	"github.com/ignite/adcontrol/internal/config"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/notify"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/repository/postgres"
	"github.com/ignite/adcontrol/internal/ruleengine"
	"github.com/ignite/adcontrol/internal/settingsstore"
	"github.com/ignite/adcontrol/internal/upstream"
	"github.com/ignite/adcontrol/internal/webhook"
)

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// buildFanout assembles a notify.Fanout from whatever channels the Settings
// Store currently has configured, skipping any channel missing its
// destination. It is called once at boot; later Settings changes do not
// rebuild it.
func buildFanout(ctx context.Context, cfg *config.Config, settings *settingsstore.Store) *notify.Fanout {
	var channels []notify.Channel

	if from := settings.GetString(domain.SettingNotifyEmailFrom); from != "" {
		recipients := splitAndTrim(os.Getenv("ALERT_EMAIL_RECIPIENTS"))
		if len(recipients) > 0 {
			ch, err := notify.NewEmailChannel(ctx, cfg.AWS.Region, cfg.AWS.GetProfile(), from, recipients)
			if err != nil {
				logger.Warn("server: email channel disabled", "error", err.Error())
			} else {
				channels = append(channels, ch)
			}
		}
	}

	if hook := settings.GetString(domain.SettingNotifySlackWebhook); hook != "" {
		slackChannels := splitAndTrim(os.Getenv("ALERT_SLACK_CHANNELS"))
		if len(slackChannels) > 0 {
			channels = append(channels, notify.NewSlackChannel(hook, slackChannels))
		}
	}

	return notify.NewFanout(channels...)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	logger.Info("server: starting adcontrol API")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("server: load config: %v", err)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	defer db.Close()
	logger.Info("server: connected to database", "host", extractHost(cfg.Database.URL))

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("server: parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("server: ping redis: %v", err)
		}
		cancel()
		logger.Info("server: connected to redis")
	}

	ctx := context.Background()
	settings, err := settingsstore.New(cfg.Settings.FilePath)
	if err != nil {
		log.Fatalf("server: load settings store: %v", err)
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

	fanout := buildFanout(ctx, cfg, settings)

	alertRepo := postgres.NewAlertRepo(db)
	automationRepo := postgres.NewAutomationRepo(db)
	reportRepo := postgres.NewReportRepo(db)
	jobRepo := postgres.NewJobRepo(db)

	engine := ruleengine.New(alertRepo, automationRepo, upstreamClient, fanout)

	webhookIngestor := webhook.New(
		fanout,
		settings.GetString(domain.SettingWebhookVerifyToken),
		settings.GetString(domain.SettingWebhookSigningKey),
		cfg.Server.OrganizationID,
	)

	signingKey := os.Getenv(cfg.Auth.JWTSigningKeyEnv)
	if signingKey == "" {
		log.Fatalf("server: %s is not set", cfg.Auth.JWTSigningKeyEnv)
	}
	issuer := auth.NewIssuer([]byte(signingKey), cfg.Auth.TokenTTL())

	handlers := &api.Handlers{
		Jobs:           jobRepo,
		Upstream:       upstreamClient,
		Engine:         engine,
		Alerts:         alertRepo,
		Automations:    automationRepo,
		Reports:        reportRepo,
		Settings:       settings,
		Webhook:        webhookIngestor,
		OrganizationID: cfg.Server.OrganizationID,
	}

	var corsOrigins []string
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = splitAndTrim(v)
	}
	router := api.NewRouter(handlers, issuer, corsOrigins)

	addr := fmt.Sprintf("%s:%s", cfg.Server.GetHost(), strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server: listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server: shutdown error", "error", err.Error())
	}
	logger.Info("server: stopped")
}
