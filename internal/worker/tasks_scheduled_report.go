package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/notify"
	"github.com/ignite/adcontrol/internal/reportcatalog"
)

// scheduledReportPayload is the JSON shape of a JobScheduledReport job's
// Payload column, set by the Scheduler's report-dispatch tick.
type scheduledReportPayload struct {
	ScheduledReportID string `json:"scheduled_report_id"`
}

type scheduledReportResult struct {
	OutputPath string `json:"output_path"`
	NextRunAt  string `json:"next_run_at"`
}

// scheduledReport materializes a ScheduledReport's recipe to CSV/zip, sends
// a completion notice through the Fanout's configured channels and
// destinations (the schedule's own Recipients are not used), and advances
// next_run_at. next_run_at is recomputed before the heavy materialization
// work so a second tick observing the same due report while this one is
// still running does not immediately re-enqueue it (§5 at-least-once note).
func (t *tasks) scheduledReport(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	var p scheduledReportPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("worker: scheduled_report: decode payload: %w", err)
	}

	sched, err := t.d.Reports.GetScheduledReport(ctx, p.ScheduledReportID)
	if err != nil {
		return nil, fmt.Errorf("worker: scheduled_report: load schedule: %w", err)
	}

	now := time.Now().UTC()
	nextRun := domain.NextRun(sched.Cadence, sched.HourOfDay, sched.DayOfWeek, sched.DayOfMonth, now)
	if err := t.d.Reports.AdvanceSchedule(ctx, sched.ID, now, nextRun); err != nil {
		return nil, fmt.Errorf("worker: scheduled_report: advance schedule: %w", err)
	}
	progress(10)

	recipe, err := t.d.Reports.GetRecipe(ctx, sched.OrganizationID, sched.RecipeID)
	logEntry := &domain.ScheduledReportLog{ScheduledReportID: sched.ID, OrganizationID: sched.OrganizationID, RunAt: now}
	if err != nil {
		logEntry.Success = false
		logEntry.Error = err.Error()
		_ = t.d.Reports.RecordScheduleLog(ctx, logEntry)
		return nil, fmt.Errorf("worker: scheduled_report: load recipe: %w", err)
	}

	entries := make([]reportcatalog.CSVEntry, 0, len(recipe.TemplateIDs))
	for i, tid := range recipe.TemplateIDs {
		tmpl, ok := reportcatalog.Get(tid)
		if !ok {
			continue
		}
		rows, rerr := t.materializeWithRetry(ctx, tid, recipe.Days, recipe.ScopeID)
		if rerr != nil {
			continue // per-template failure absorbed; report proceeds with remaining templates
		}
		csvData, rerr := reportcatalog.ToCSV(tmpl.Columns, rows)
		if rerr != nil {
			continue
		}
		entries = append(entries, reportcatalog.CSVEntry{Name: safeName(tmpl.Name) + ".csv", Data: csvData})
		progress(10 + (i+1)*50/len(recipe.TemplateIDs))
	}

	var data []byte
	var ext string
	var format domain.ReportFormat
	if len(entries) == 1 {
		data, ext, format = entries[0].Data, ".csv", domain.FormatCSV
	} else if len(entries) > 1 {
		data, err = reportcatalog.ToZip(entries)
		if err != nil {
			return nil, fmt.Errorf("worker: scheduled_report: build zip: %w", err)
		}
		ext, format = ".zip", domain.FormatZIP
	}

	var path string
	if len(data) > 0 {
		onDisk, _ := reportFilenames(recipe.Name, job.ID, ext)
		path, err = writeReportFile(t.d.ReportsDir, onDisk, data)
		if err != nil {
			return nil, err
		}
		rec := &domain.ReportFileRecord{
			RecipeID: recipe.ID, OrganizationID: sched.OrganizationID, Format: format,
			LocalPath: path, SizeBytes: int64(len(data)), GeneratedAt: now,
			ExpiresAt: now.Add(t.d.ReportRetention),
		}
		fileID, ferr := t.d.Reports.RecordFile(ctx, rec)
		if ferr == nil {
			logEntry.ReportFileID = fileID
		}
	}
	progress(90)

	logEntry.Success = true
	_ = t.d.Reports.RecordScheduleLog(ctx, logEntry)

	t.d.Fanout.Send(ctx, notify.Message{
		Title:          fmt.Sprintf("Scheduled report: %s", recipe.Name),
		Body:           fmt.Sprintf("%s generated %d template(s) for the %s cadence.", recipe.Name, len(entries), sched.Cadence),
		OrganizationID: sched.OrganizationID,
	})

	return mustMarshal(scheduledReportResult{OutputPath: path, NextRunAt: nextRun.Format(time.RFC3339)}), nil
}
