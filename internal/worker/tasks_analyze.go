package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/adcontrol/internal/aiadapter"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/reportcatalog"
)

// analyzePayload is the JSON shape of a JobAnalyze job's Payload column.
type analyzePayload struct {
	RecipeID string `json:"recipe_id"`
}

type analyzeResult struct {
	Text       string `json:"text"`
	OutputPath string `json:"output_path"`
	OutputName string `json:"output_name"`
}

// analyze fetches each template's rows, runs the AI adapter over each
// independently, and joins the individual analyses with a horizontal-rule
// separator before rendering the combined text to PDF. A failure analyzing
// one template is absorbed into a placeholder block; the job as a whole
// still succeeds, per the analyze task's error-propagation contract.
func (t *tasks) analyze(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	var p analyzePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("worker: analyze: decode payload: %w", err)
	}

	recipe, err := t.d.Reports.GetRecipe(ctx, job.OrganizationID, p.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("worker: analyze: load recipe: %w", err)
	}
	if len(recipe.TemplateIDs) == 0 {
		return nil, fmt.Errorf("worker: analyze: recipe %s has no templates", recipe.ID)
	}

	texts := make([]string, 0, len(recipe.TemplateIDs))
	sections := make([]aiadapter.Section, 0, len(recipe.TemplateIDs))

	for i, tid := range recipe.TemplateIDs {
		tmpl, ok := reportcatalog.Get(tid)
		if !ok {
			return nil, fmt.Errorf("worker: analyze: unknown template %q", tid)
		}

		body, err := t.analyzeOneTemplate(ctx, tmpl, recipe.Days, recipe.ScopeID)
		if err != nil {
			body = fmt.Sprintf("_%s could not be analyzed: %s_", tmpl.Name, err.Error())
		}
		texts = append(texts, fmt.Sprintf("## %s\n\n%s", tmpl.Name, body))
		sections = append(sections, aiadapter.Section{Title: tmpl.Name, Body: body})

		progress(10 + (i+1)*60/len(recipe.TemplateIDs))
	}

	combined := strings.Join(texts, "\n\n---\n\n")
	progress(75)

	pdfBytes, err := aiadapter.RenderPDF(recipe.Name, sections)
	if err != nil {
		return nil, fmt.Errorf("worker: analyze: render pdf: %w", err)
	}

	onDisk, download := reportFilenames(recipe.Name, job.ID, ".pdf")
	path, err := writeReportFile(t.d.ReportsDir, onDisk, pdfBytes)
	if err != nil {
		return nil, err
	}

	rec := &domain.ReportFileRecord{
		RecipeID:       recipe.ID,
		OrganizationID: job.OrganizationID,
		Format:         domain.FormatPDF,
		LocalPath:      path,
		SizeBytes:      int64(len(pdfBytes)),
		GeneratedAt:    time.Now().UTC(),
		ExpiresAt:      time.Now().UTC().Add(t.d.ReportRetention),
	}
	if _, err := t.d.Reports.RecordFile(ctx, rec); err != nil {
		return nil, fmt.Errorf("worker: analyze: record file: %w", err)
	}

	return mustMarshal(analyzeResult{Text: combined, OutputPath: path, OutputName: download}), nil
}

// analyzeOneTemplate materializes one template's rows and hands them to the
// AI adapter. Upstream and AI failures both propagate to the caller, which
// absorbs them into a placeholder block rather than failing the whole job.
func (t *tasks) analyzeOneTemplate(ctx context.Context, tmpl reportcatalog.Template, days int, scopeID string) (string, error) {
	rows, err := t.materializeWithRetry(ctx, tmpl.ID, days, scopeID)
	if err != nil {
		return "", err
	}
	return t.d.AI.Analyze(ctx, tmpl.Name, rows)
}
