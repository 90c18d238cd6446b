package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/archive"
	"github.com/ignite/adcontrol/internal/domain"
)

type archiveResult struct {
	Uploaded int                     `json:"uploaded"`
	Failed   int                     `json:"failed"`
	Results  []archive.UploadResult  `json:"results"`
}

// archive recursively uploads every CSV/zip under the reports directory to
// the configured object-storage bucket under a date-scoped prefix.
// Per-file failures are collected but never fail the job as a whole.
func (t *tasks) archive(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	if t.d.Archive == nil {
		return nil, apperr.Configuration("worker: archive: object storage is not configured", nil)
	}

	progress(0)
	var files []archive.File
	err := filepath.WalkDir(t.d.ReportsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".csv" && ext != ".zip" {
			return nil
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil // unreadable file: skip, don't abort the whole walk
		}
		files = append(files, archive.File{Name: filepath.Base(path), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("worker: archive: walk reports dir: %w", err)
	}
	progress(30)

	results := t.d.Archive.UploadAll(ctx, files, time.Now().UTC())
	progress(90)

	uploaded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			uploaded++
		} else {
			failed++
		}
	}

	return mustMarshal(archiveResult{Uploaded: uploaded, Failed: failed, Results: results}), nil
}
