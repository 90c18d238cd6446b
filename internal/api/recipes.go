package api

import (
	"net/http"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
)

// recipeRequest is the editable subset of SavedReportRecipe a caller posts.
type recipeRequest struct {
	Name        string          `json:"name"`
	ScopeType   string          `json:"scope_type"`
	ScopeID     string          `json:"scope_id"`
	Metrics     []domain.Metric `json:"metrics"`
	TemplateIDs []string        `json:"template_ids"`
	Days        int             `json:"days"`
	Format      string          `json:"format"`
}

// ListRecipes returns every SavedReportRecipe in the organization.
func (h *Handlers) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.Reports.ListRecipes(r.Context(), h.OrganizationID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, recipes)
}

// GetRecipe returns one SavedReportRecipe by id.
func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Reports.GetRecipe(r.Context(), h.OrganizationID, urlParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, rec)
}

// CreateRecipe saves a new SavedReportRecipe.
func (h *Handlers) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || len(req.TemplateIDs) == 0 {
		writeErr(w, apperr.Validation("name and template_ids are required"))
		return
	}

	rec := &domain.SavedReportRecipe{
		OrganizationID: h.OrganizationID,
		Name:           req.Name,
		ScopeType:      req.ScopeType,
		ScopeID:        req.ScopeID,
		Metrics:        req.Metrics,
		TemplateIDs:    req.TemplateIDs,
		Days:           req.Days,
		Format:         domain.ReportFormat(req.Format),
	}
	id, err := h.Reports.CreateRecipe(r.Context(), rec)
	if err != nil {
		writeErr(w, apperr.Internal("create recipe", err))
		return
	}
	rec.ID = id
	httputil.Created(w, rec)
}

// DeleteRecipe removes a SavedReportRecipe and its associated file records.
func (h *Handlers) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.DeleteRecipe(r.Context(), h.OrganizationID, urlParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	httputil.NoContent(w)
}
