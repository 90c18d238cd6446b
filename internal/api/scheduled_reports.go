package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
)

// scheduledReportRequest is the editable subset of ScheduledReport a caller
// posts.
type scheduledReportRequest struct {
	RecipeID   string              `json:"recipe_id"`
	Cadence    domain.ReportCadence `json:"cadence"`
	HourOfDay  int                 `json:"hour_of_day"`
	DayOfWeek  int                 `json:"day_of_week,omitempty"`
	DayOfMonth int                 `json:"day_of_month,omitempty"`
	Recipients []string            `json:"recipients"`
	IsActive   *bool               `json:"is_active"`
}

func (req scheduledReportRequest) validate() error {
	if req.RecipeID == "" || req.Cadence == "" {
		return apperr.Validation("recipe_id and cadence are required")
	}
	switch req.Cadence {
	case domain.CadenceDaily, domain.CadenceWeekly, domain.CadenceMonthly:
	default:
		return apperr.Validation("cadence must be one of daily, weekly, monthly")
	}
	return nil
}

// ListScheduledReports returns every ScheduledReport in the organization.
func (h *Handlers) ListScheduledReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Reports.ListScheduledReports(r.Context(), h.OrganizationID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, reports)
}

// GetScheduledReport returns one ScheduledReport by id.
func (h *Handlers) GetScheduledReport(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Reports.GetScheduledReport(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if sched.OrganizationID != h.OrganizationID {
		writeErr(w, apperr.NotFound("resource not found"))
		return
	}
	httputil.OK(w, sched)
}

// CreateScheduledReport saves a new ScheduledReport, computing its first
// next_run_at from the current time.
func (h *Handlers) CreateScheduledReport(w http.ResponseWriter, r *http.Request) {
	var req scheduledReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, err)
		return
	}
	if _, err := h.Reports.GetRecipe(r.Context(), h.OrganizationID, req.RecipeID); err != nil {
		writeErr(w, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	now := time.Now().UTC()
	sched := &domain.ScheduledReport{
		OrganizationID: h.OrganizationID,
		RecipeID:       req.RecipeID,
		Cadence:        req.Cadence,
		HourOfDay:      req.HourOfDay,
		DayOfWeek:      req.DayOfWeek,
		DayOfMonth:     req.DayOfMonth,
		Recipients:     req.Recipients,
		IsActive:       isActive,
		NextRunAt:      domain.NextRun(req.Cadence, req.HourOfDay, req.DayOfWeek, req.DayOfMonth, now),
	}
	id, err := h.Reports.CreateScheduledReport(r.Context(), sched)
	if err != nil {
		writeErr(w, apperr.Internal("create scheduled report", err))
		return
	}
	sched.ID = id
	httputil.Created(w, sched)
}

// UpdateScheduledReport replaces an existing ScheduledReport's editable
// fields and recomputes next_run_at from the new cadence.
func (h *Handlers) UpdateScheduledReport(w http.ResponseWriter, r *http.Request) {
	var req scheduledReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, err)
		return
	}

	id := urlParam(r, "id")
	existing, err := h.Reports.GetScheduledReport(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if existing.OrganizationID != h.OrganizationID {
		writeErr(w, apperr.NotFound("resource not found"))
		return
	}

	existing.RecipeID = req.RecipeID
	existing.Cadence = req.Cadence
	existing.HourOfDay = req.HourOfDay
	existing.DayOfWeek = req.DayOfWeek
	existing.DayOfMonth = req.DayOfMonth
	existing.Recipients = req.Recipients
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.NextRunAt = domain.NextRun(req.Cadence, req.HourOfDay, req.DayOfWeek, req.DayOfMonth, time.Now().UTC())

	if err := h.Reports.UpdateScheduledReport(r.Context(), existing); err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, existing)
}

// DeleteScheduledReport removes a ScheduledReport by id.
func (h *Handlers) DeleteScheduledReport(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.DeleteScheduledReport(r.Context(), h.OrganizationID, urlParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	httputil.NoContent(w)
}

// RunScheduledReportNow enqueues a JobScheduledReport for the named schedule
// immediately, bypassing its next_run_at due-time check. The dispatch task
// itself still advances next_run_at, as it does for every run, before it
// materializes the report.
func (h *Handlers) RunScheduledReportNow(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	sched, err := h.Reports.GetScheduledReport(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if sched.OrganizationID != h.OrganizationID {
		writeErr(w, apperr.NotFound("resource not found"))
		return
	}

	payload, err := json.Marshal(struct {
		ScheduledReportID string `json:"scheduled_report_id"`
	}{ScheduledReportID: sched.ID})
	if err != nil {
		writeErr(w, apperr.Internal("marshal job payload", err))
		return
	}

	job := &domain.Job{
		ID:             uuid.New().String(),
		OrganizationID: sched.OrganizationID,
		Type:           domain.JobScheduledReport,
		Status:         domain.JobPending,
		Payload:        payload,
		MaxAttempts:    3,
		RunAfter:       time.Now().UTC(),
	}
	if err := h.Jobs.Enqueue(r.Context(), job); err != nil {
		writeErr(w, apperr.Internal("enqueue job", err))
		return
	}
	httputil.Created(w, job)
}
