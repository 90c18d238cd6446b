// Package webhook verifies and normalizes inbound callbacks from the
// upstream ad platform (§4.6): an HMAC-signed event envelope describing
// campaign/ad-set/ad/account field changes, fanned into the same
// Notification Fanout the Rule Engine uses for alerts.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/adcontrol/internal/notify"
	"github.com/ignite/adcontrol/internal/pkg/logger"
)

// criticalFields are the only change fields that produce a notification;
// everything else in the envelope is accepted but silently dropped.
var criticalFields = map[string]bool{
	"status":          true,
	"daily_budget":    true,
	"lifetime_budget": true,
}

// Change is one field mutation inside an Entry.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// Entry is one changed entity inside an Envelope.
type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

// Envelope is the upstream's webhook callback body shape.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Ingestor verifies signatures and normalizes webhook callbacks into
// Notification Fanout events.
type Ingestor struct {
	fanout         *notify.Fanout
	verifyToken    string
	signingSecret  string
	organizationID string
}

// New creates an Ingestor. verifyToken backs the GET subscription
// handshake; signingSecret backs HMAC verification of POST callbacks. Both
// may be empty (verification handshake always fails without a token;
// signature verification is skipped with a warning without a secret, per
// §4.6's development-mode behavior).
func New(fanout *notify.Fanout, verifyToken, signingSecret, organizationID string) *Ingestor {
	return &Ingestor{fanout: fanout, verifyToken: verifyToken, signingSecret: signingSecret, organizationID: organizationID}
}

// VerifyChallenge implements the GET verification handshake: it returns the
// challenge verbatim iff mode == "subscribe" and token matches the
// configured verify token.
func (i *Ingestor) VerifyChallenge(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" {
		return "", false
	}
	if i.verifyToken == "" || token != i.verifyToken {
		return "", false
	}
	return challenge, true
}

// errSignatureInvalid is returned by VerifySignature when a configured
// secret is present but the signature does not match.
var errSignatureInvalid = fmt.Errorf("webhook: signature mismatch")

// VerifySignature checks header (the raw "X-Hub-Signature-256" value, e.g.
// "sha256=<hex>") against an HMAC-SHA256 of body keyed by the configured
// signing secret. With no secret configured, verification is skipped and a
// warning is logged (development mode, per §4.6); a present secret with a
// missing or mismatched header is always rejected.
func (i *Ingestor) VerifySignature(header string, body []byte) error {
	if i.signingSecret == "" {
		logger.Warn("webhook: no signing secret configured, skipping signature verification")
		return nil
	}

	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return errSignatureInvalid
	}
	given, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return errSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(i.signingSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(given, expected) {
		return errSignatureInvalid
	}
	return nil
}

// IsSignatureError reports whether err is the signature-mismatch error, the
// distinction the HTTP handler needs to return 403.
func IsSignatureError(err error) bool {
	return err == errSignatureInvalid
}

// EntityType classifies an entity id by its upstream prefix.
func EntityType(id string) string {
	switch {
	case strings.HasPrefix(id, "campaign_"):
		return "campaign"
	case strings.HasPrefix(id, "adset_"):
		return "ad_set"
	case strings.HasPrefix(id, "ad_"):
		return "ad"
	case strings.HasPrefix(id, "act_"):
		return "account"
	default:
		return "unknown"
	}
}

// Process parses and normalizes body, emitting a Notification Fanout event
// for every change on a critical field. A malformed envelope yields zero
// processed changes and a decode error; the HTTP handler logs that error and
// still answers 200.
func (i *Ingestor) Process(ctx context.Context, body []byte) (int, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("webhook: decode envelope: %w", err)
	}

	processed := 0
	for _, entry := range env.Entry {
		entityType := EntityType(entry.ID)
		for _, change := range entry.Changes {
			processed++
			if !criticalFields[change.Field] {
				continue
			}
			i.fanout.Send(ctx, notify.Message{
				Title:          fmt.Sprintf("%s %s changed", entityType, entry.ID),
				Body:           fmt.Sprintf("%s.%s changed to %s", entry.ID, change.Field, string(change.Value)),
				OrganizationID: i.organizationID,
			})
		}
	}
	return processed, nil
}
