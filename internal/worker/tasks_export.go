package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/reportcatalog"
	"github.com/ignite/adcontrol/internal/upstream"
)

// exportPayload is the JSON shape of a JobExport job's Payload column.
type exportPayload struct {
	RecipeID string `json:"recipe_id"`
}

type exportResult struct {
	OutputPath string `json:"output_path"`
	OutputName string `json:"output_name"`
	RowCount   int    `json:"row_count"`
	Format     string `json:"format"`
}

const (
	rateLimitWait   = 120 * time.Second
	rateLimitRetries = 3
	interTemplatePace = 8 * time.Second
)

// export renders a saved report recipe's templates to a single CSV file, or
// a zip of one CSV per template when the recipe bundles more than one.
func (t *tasks) export(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	var p exportPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("worker: export: decode payload: %w", err)
	}

	recipe, err := t.d.Reports.GetRecipe(ctx, job.OrganizationID, p.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("worker: export: load recipe: %w", err)
	}
	if len(recipe.TemplateIDs) == 0 {
		return nil, fmt.Errorf("worker: export: recipe %s has no templates", recipe.ID)
	}

	entries := make([]reportcatalog.CSVEntry, 0, len(recipe.TemplateIDs))
	totalRows := 0

	for i, tid := range recipe.TemplateIDs {
		tmpl, ok := reportcatalog.Get(tid)
		if !ok {
			return nil, fmt.Errorf("worker: export: unknown template %q", tid)
		}

		rows, err := t.materializeWithRetry(ctx, tid, recipe.Days, recipe.ScopeID)
		if err != nil {
			return nil, fmt.Errorf("worker: export: template %s: %w", tid, err)
		}

		csvData, err := reportcatalog.ToCSV(tmpl.Columns, rows)
		if err != nil {
			return nil, fmt.Errorf("worker: export: render csv for %s: %w", tid, err)
		}
		entries = append(entries, reportcatalog.CSVEntry{Name: safeName(tmpl.Name) + ".csv", Data: csvData})
		totalRows += len(rows)

		progress(10 + (i+1)*70/len(recipe.TemplateIDs))

		if i < len(recipe.TemplateIDs)-1 {
			if !sleepCtx(ctx, interTemplatePace) {
				return nil, ctx.Err()
			}
		}
	}

	var data []byte
	var ext string
	var format domain.ReportFormat
	if len(entries) == 1 {
		data = entries[0].Data
		ext = ".csv"
		format = domain.FormatCSV
	} else {
		data, err = reportcatalog.ToZip(entries)
		if err != nil {
			return nil, fmt.Errorf("worker: export: build zip: %w", err)
		}
		ext = ".zip"
		format = domain.FormatZIP
	}

	onDisk, download := reportFilenames(recipe.Name, job.ID, ext)
	path, err := writeReportFile(t.d.ReportsDir, onDisk, data)
	if err != nil {
		return nil, err
	}

	rec := &domain.ReportFileRecord{
		RecipeID:       recipe.ID,
		OrganizationID: job.OrganizationID,
		Format:         format,
		LocalPath:      path,
		SizeBytes:      int64(len(data)),
		RowCount:       totalRows,
		GeneratedAt:    time.Now().UTC(),
		ExpiresAt:      time.Now().UTC().Add(t.d.ReportRetention),
	}
	if _, err := t.d.Reports.RecordFile(ctx, rec); err != nil {
		return nil, fmt.Errorf("worker: export: record file: %w", err)
	}

	return mustMarshal(exportResult{
		OutputPath: path,
		OutputName: download,
		RowCount:   totalRows,
		Format:     string(format),
	}), nil
}

// materializeWithRetry fetches one template's rows, retrying up to
// rateLimitRetries times with a rateLimitWait pause whenever the upstream
// reports a rate-limit error, per the export task's pacing contract.
func (t *tasks) materializeWithRetry(ctx context.Context, templateID string, days int, scopeID string) ([]reportcatalog.Row, error) {
	var lastErr error
	for attempt := 0; attempt <= rateLimitRetries; attempt++ {
		rows, err := t.d.Materializer.Materialize(ctx, templateID, days, scopeID)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !upstream.IsRateLimited(err) || attempt == rateLimitRetries {
			return nil, err
		}
		if !sleepCtx(ctx, rateLimitWait) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// sleepCtx waits for d, returning false early if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
