package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds process-topology configuration for the ad operations control
// plane: ports, datastore DSNs, pool sizes, and the static upstream endpoint
// shape. Mutable, API-writable values (API tokens, signing keys, toggles)
// live in the Settings Store instead, layered above this struct at runtime.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	AWS       AWSConfig       `yaml:"aws"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Auth      AuthConfig      `yaml:"auth"`
	Reports   ReportsConfig   `yaml:"reports"`
	Settings  SettingsConfig  `yaml:"settings"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	OrganizationID string `yaml:"organization_id"`
}

// GetHost returns the server host, with ECS/env override detection.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifeMins) * time.Minute
}

// RedisConfig holds Redis connection settings used by rate pacing and the
// distributed scheduler lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// UpstreamConfig holds static connection shape for the ad-platform API; the
// per-account API token lives in the Settings Store, not here.
type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	RatePerSecond  int    `yaml:"rate_per_second"`
	RatePerMinute  int    `yaml:"rate_per_minute"`
}

// Timeout returns the configured upstream request timeout as a duration.
func (c UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AWSConfig holds the region used for SES, Bedrock, and S3 clients; access is
// resolved through the default credential chain (IAM role in ECS, profile
// locally) rather than static keys in config.
type AWSConfig struct {
	Region         string `yaml:"region"`
	Profile        string `yaml:"profile"`
	S3Bucket       string `yaml:"s3_bucket"`
	BedrockModelID string `yaml:"bedrock_model_id"`
}

// GetProfile returns the AWS profile, with environment variable override.
func (c AWSConfig) GetProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// WorkerConfig holds Worker Pool tuning.
type WorkerConfig struct {
	Concurrency          int `yaml:"concurrency"`
	PollIntervalSeconds  int `yaml:"poll_interval_seconds"`
	StaleAfterMinutes    int `yaml:"stale_after_minutes"`
	CleanupRetentionDays int `yaml:"cleanup_retention_days"`
}

// PollInterval returns the configured poll interval as a duration.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StaleAfter returns the staleness window used to reclaim crashed jobs.
func (c WorkerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// SchedulerConfig holds the two cron cadences, which default to every 15
// minutes (rule check) and every minute (report dispatch).
type SchedulerConfig struct {
	RuleCheckCron        string `yaml:"rule_check_cron"`
	ReportDispatchCron   string `yaml:"report_dispatch_cron"`
	LockTTLSeconds       int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the leader-lock TTL as a duration.
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// AuthConfig holds JWT bearer-auth configuration.
type AuthConfig struct {
	JWTSigningKeyEnv string `yaml:"jwt_signing_key_env"`
	TokenTTLMinutes  int    `yaml:"token_ttl_minutes"`
}

// TokenTTL returns the configured token lifetime as a duration.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// ReportsConfig holds Report Materializer file-retention settings.
type ReportsConfig struct {
	LocalDir           string `yaml:"local_dir"`
	RetentionDays      int    `yaml:"retention_days"`
	ArchiveAfterDays   int    `yaml:"archive_after_days"`
}

// SettingsConfig points at the Settings Store's backing JSON file. Per the
// data model, Settings are flat key/value pairs written to this file and
// merged on read with environment variables of the same name.
type SettingsConfig struct {
	FilePath string `yaml:"file_path"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.OrganizationID == "" {
		cfg.Server.OrganizationID = "default"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifeMins == 0 {
		cfg.Database.ConnMaxLifeMins = 30
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = 30
	}
	if cfg.Upstream.MaxRetries == 0 {
		cfg.Upstream.MaxRetries = 3
	}
	if cfg.Upstream.RatePerSecond == 0 {
		cfg.Upstream.RatePerSecond = 5
	}
	if cfg.Upstream.RatePerMinute == 0 {
		cfg.Upstream.RatePerMinute = 200
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-west-2"
	}
	if cfg.AWS.BedrockModelID == "" {
		cfg.AWS.BedrockModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 8
	}
	if cfg.Worker.PollIntervalSeconds == 0 {
		cfg.Worker.PollIntervalSeconds = 5
	}
	if cfg.Worker.StaleAfterMinutes == 0 {
		cfg.Worker.StaleAfterMinutes = 15
	}
	if cfg.Worker.CleanupRetentionDays == 0 {
		cfg.Worker.CleanupRetentionDays = 90
	}
	if cfg.Scheduler.RuleCheckCron == "" {
		cfg.Scheduler.RuleCheckCron = "*/15 * * * *"
	}
	if cfg.Scheduler.ReportDispatchCron == "" {
		cfg.Scheduler.ReportDispatchCron = "* * * * *"
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 30
	}
	if cfg.Auth.JWTSigningKeyEnv == "" {
		cfg.Auth.JWTSigningKeyEnv = "JWT_SIGNING_KEY"
	}
	if cfg.Auth.TokenTTLMinutes == 0 {
		cfg.Auth.TokenTTLMinutes = 60
	}
	if cfg.Reports.LocalDir == "" {
		cfg.Reports.LocalDir = "./data/reports"
	}
	if cfg.Reports.RetentionDays == 0 {
		cfg.Reports.RetentionDays = 30
	}
	if cfg.Reports.ArchiveAfterDays == 0 {
		cfg.Reports.ArchiveAfterDays = 7
	}
	if cfg.Settings.FilePath == "" {
		cfg.Settings.FilePath = "./data/settings.json"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ORGANIZATION_ID"); v != "" {
		cfg.Server.OrganizationID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.AWS.S3Bucket = v
	}
	if v := os.Getenv("SETTINGS_FILE_PATH"); v != "" {
		cfg.Settings.FilePath = v
	}

	return cfg, nil
}
