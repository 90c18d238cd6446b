package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/auth"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
)

// jobResultFile is the shape common to the export, analyze, and
// scheduled_report task result payloads: wherever the worker wrote a file to
// disk, it records that file's path under output_path. Export and analyze
// results also record the caller-facing download name under output_name;
// scheduled_report results carry no output_name.
type jobResultFile struct {
	OutputPath string `json:"output_path"`
	OutputName string `json:"output_name"`
}

// EnqueueExport dispatches a JobExport for the named recipe.
func (h *Handlers) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	h.enqueueRecipeJob(w, r, domain.JobExport)
}

// EnqueueAnalyze dispatches a JobAnalyze for the named recipe.
func (h *Handlers) EnqueueAnalyze(w http.ResponseWriter, r *http.Request) {
	h.enqueueRecipeJob(w, r, domain.JobAnalyze)
}

type recipeJobPayload struct {
	RecipeID string `json:"recipe_id"`
}

func (h *Handlers) enqueueRecipeJob(w http.ResponseWriter, r *http.Request, jobType domain.JobType) {
	recipeID := urlParam(r, "recipe_id")
	if recipeID == "" {
		writeErr(w, apperr.Validation("recipe_id is required"))
		return
	}
	if _, err := h.Reports.GetRecipe(r.Context(), h.OrganizationID, recipeID); err != nil {
		writeErr(w, err)
		return
	}

	payload, err := json.Marshal(recipeJobPayload{RecipeID: recipeID})
	if err != nil {
		writeErr(w, apperr.Internal("marshal job payload", err))
		return
	}

	job := &domain.Job{
		ID:             uuid.New().String(),
		OrganizationID: h.OrganizationID,
		Type:           jobType,
		Status:         domain.JobPending,
		Payload:        payload,
		MaxAttempts:    5,
		RunAfter:       time.Now().UTC(),
	}
	if err := h.Jobs.Enqueue(r.Context(), job); err != nil {
		writeErr(w, apperr.Internal("enqueue job", err))
		return
	}
	httputil.Created(w, job)
}

// GetJob returns one Job's current status, progress, and (once terminal)
// result or error.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Get(r.Context(), urlParam(r, "job_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, job)
}

// DeleteJob removes a Job row and, if it produced an output file still on
// disk, removes that file too so a deleted job leaves nothing downloadable
// behind.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := urlParam(r, "job_id")
	job, err := h.Jobs.Get(r.Context(), jobID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if job.Status == domain.JobSucceeded {
		if f, ok := parseJobResultFile(job.Result); ok && f.OutputPath != "" {
			_ = os.Remove(f.OutputPath)
		}
	}
	if err := h.Jobs.Delete(r.Context(), jobID); err != nil {
		writeErr(w, err)
		return
	}
	httputil.NoContent(w)
}

// DownloadJob streams the file a completed export or scheduled_report Job
// produced.
func (h *Handlers) DownloadJob(w http.ResponseWriter, r *http.Request) {
	h.streamJobFile(w, r, "")
}

// JobPDF streams the rendered PDF a completed analyze Job produced.
func (h *Handlers) JobPDF(w http.ResponseWriter, r *http.Request) {
	h.streamJobFile(w, r, ".pdf")
}

// streamJobFile loads the Job, confirms it succeeded, and serves the file
// named in its result payload. requireExt, when non-empty, rejects a result
// whose output name does not carry that extension; when empty, a .pdf result
// is rejected, so /pdf never serves a csv/zip export and vice versa.
func (h *Handlers) streamJobFile(w http.ResponseWriter, r *http.Request, requireExt string) {
	job, err := h.Jobs.Get(r.Context(), urlParam(r, "job_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if job.Status != domain.JobSucceeded {
		writeErr(w, apperr.Validation(fmt.Sprintf("job %s has not succeeded (status=%s)", job.ID, job.Status)))
		return
	}
	file, ok := parseJobResultFile(job.Result)
	if !ok || file.OutputPath == "" {
		writeErr(w, apperr.NotFound("job result carries no downloadable file"))
		return
	}
	if requireExt != "" && !hasSuffixFold(file.OutputName, requireExt) {
		writeErr(w, apperr.Validation(fmt.Sprintf("job %s did not produce a %s file", job.ID, requireExt)))
		return
	}
	if requireExt == "" && hasSuffixFold(file.OutputName, ".pdf") {
		writeErr(w, apperr.Validation(fmt.Sprintf("job %s produced a .pdf file; use its /pdf endpoint", job.ID)))
		return
	}

	f, err := os.Open(file.OutputPath)
	if err != nil {
		writeErr(w, apperr.NotFound("job output file is no longer on disk"))
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		writeErr(w, apperr.Internal("stat job output file", err))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, file.OutputName))
	http.ServeContent(w, r, file.OutputName, stat.ModTime(), f)
}

func parseJobResultFile(result []byte) (jobResultFile, bool) {
	if len(result) == 0 {
		return jobResultFile{}, false
	}
	var f jobResultFile
	if err := json.Unmarshal(result, &f); err != nil {
		return jobResultFile{}, false
	}
	return f, true
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(suffix); i++ {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// callerRole is a small convenience used by handlers that want to branch on
// the caller's role beyond the coarse RequireRole gate on the route itself.
func callerRole(r *http.Request) auth.Role {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Role
}
