package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/jobstore"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
	"github.com/ignite/adcontrol/internal/repository/postgres"
	"github.com/ignite/adcontrol/internal/ruleengine"
	"github.com/ignite/adcontrol/internal/settingsstore"
	"github.com/ignite/adcontrol/internal/upstream"
	"github.com/ignite/adcontrol/internal/webhook"
)

// Handlers bundles every dependency the HTTP surface needs, assembled once
// at process startup and passed down rather than held in package-level
// singletons. This is a single-tenant deployment (one configured ad
// account): OrganizationID scopes every repository call instead of being
// read per-request from the caller's claims.
type Handlers struct {
	Jobs        jobstore.Store
	Upstream    *upstream.Client
	Engine      *ruleengine.Engine
	Alerts      *postgres.AlertRepo
	Automations *postgres.AutomationRepo
	Reports     *postgres.ReportRepo
	Settings    *settingsstore.Store
	Webhook     *webhook.Ingestor

	OrganizationID string
}

// urlParam reads a chi route parameter.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// repoErr classifies a repository error for the HTTP layer: a known
// not-found sentinel maps to 404, anything else is an opaque 500.
func repoErr(err error) error {
	if errors.Is(err, postgres.ErrNotFound) || errors.Is(err, settingsstore.ErrNotFound) {
		return apperr.NotFound("resource not found")
	}
	return apperr.Internal("repository operation failed", err)
}

// writeErr classifies and writes err, passing apperr.Error values straight
// through and wrapping anything else as an opaque internal error.
func writeErr(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		apperr.WriteHTTP(w, err)
		return
	}
	apperr.WriteHTTP(w, repoErr(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return httputil.Decode(w, r, dst)
}
