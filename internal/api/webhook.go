package api

import (
	"io"
	"net/http"

	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/webhook"
)

// WebhookChallenge implements the upstream's GET subscription handshake:
// echo hub.challenge back verbatim when hub.mode=subscribe and hub.verify_token
// matches the configured token, otherwise 403.
func (h *Handlers) WebhookChallenge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := h.Webhook.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// WebhookCallback verifies the HMAC signature on an inbound event envelope
// and processes it. Per the upstream platform's delivery contract, a
// malformed-but-signed body still returns 200 so the sender does not retry
// a request it cannot fix by resending; only a bad signature returns 403.
func (h *Handlers) WebhookCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("webhook: read body failed", "error", err.Error())
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Webhook.VerifySignature(r.Header.Get("X-Hub-Signature-256"), body); err != nil {
		if webhook.IsSignatureError(err) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	processed, err := h.Webhook.Process(r.Context(), body)
	if err != nil {
		logger.Warn("webhook: process failed", "error", err.Error())
	}
	logger.Debug("webhook: callback processed", "changes", processed)
	w.WriteHeader(http.StatusOK)
}
