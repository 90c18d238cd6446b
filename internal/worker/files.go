package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// safeName sanitizes name into a filesystem-safe token: non alphanumeric
// runs collapse to a single underscore and the result is lowercased.
func safeName(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "report"
	}
	return strings.ToLower(s)
}

// reportFilenames returns the on-disk filename (carries the job id, for
// collision-free storage) and the download filename (omits it, per the
// export task's naming contract) for one generated report file.
func reportFilenames(recipeName, jobID, ext string) (onDisk, download string) {
	ts := time.Now().UTC().Format("20060102_150405")
	base := safeName(recipeName)
	download = fmt.Sprintf("%s_%s%s", base, ts, ext)
	onDisk = fmt.Sprintf("%s_%s_%s%s", base, jobID, ts, ext)
	return onDisk, download
}

// writeReportFile writes data under dir, creating the directory if absent,
// and returns the full local path.
func writeReportFile(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("worker: create reports dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("worker: write report file: %w", err)
	}
	return path, nil
}
