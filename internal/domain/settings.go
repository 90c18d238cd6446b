package domain

import (
	"strings"
	"time"
)

// SettingKey enumerates the well-known keys the Settings Store persists.
// Unlike Config (process topology, loaded once at boot), Settings are
// mutable at runtime through the API. The Settings Store serves a new value
// at once; components that copy a Setting at process start (the upstream
// client, webhook ingestor, notification channels) keep the old value until
// a restart.
type SettingKey string

const (
	SettingUpstreamAPIToken   SettingKey = "upstream.api_token"
	SettingUpstreamAccountID  SettingKey = "upstream.account_id"
	SettingWebhookSigningKey  SettingKey = "webhook.signing_key"
	SettingWebhookVerifyToken SettingKey = "webhook.verify_token"
	SettingNotifyEmailFrom    SettingKey = "notify.email_from"
	SettingNotifySlackWebhook SettingKey = "notify.slack_webhook_url"
	SettingReportRetentionDays SettingKey = "report.retention_days"
)

// Secret marks keys whose values must be redacted from logs and API
// responses that echo Settings back to a caller.
func (k SettingKey) Secret() bool {
	switch k {
	case SettingUpstreamAPIToken, SettingWebhookSigningKey, SettingNotifySlackWebhook:
		return true
	default:
		return false
	}
}

// Setting is one key/value pair in the Settings Store.
type Setting struct {
	Key       SettingKey `json:"key" db:"key"`
	Value     string     `json:"value" db:"value"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy string     `json:"updated_by" db:"updated_by"`
}

// Redacted returns the value to expose in logs/API responses: the real value
// for non-secret keys, a masked value for secret keys. A value longer than 8
// characters keeps its first 4 and last 4 characters, joined by "****"; a
// shorter value collapses to a bare "****" so its length isn't leaked.
func (s Setting) Redacted() string {
	if !s.Key.Secret() || s.Value == "" {
		return s.Value
	}
	if len(s.Value) > 8 {
		return s.Value[:4] + "****" + s.Value[len(s.Value)-4:]
	}
	return "****"
}

// EnvVar returns the environment variable name the Settings Store checks as
// a fallback when this key has no JSON-file value: the key upper-cased with
// "." replaced by "_", e.g. "upstream.api_token" -> "UPSTREAM_API_TOKEN".
func (k SettingKey) EnvVar() string {
	return strings.ToUpper(strings.ReplaceAll(string(k), ".", "_"))
}
