package reportcatalog

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
)

// ToCSV serializes rows under columns into a UTF-8 CSV with a header row.
// Missing columns were already defaulted to "" by Materialize.
func ToCSV(columns []string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("reportcatalog: write csv header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("reportcatalog: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("reportcatalog: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CSVEntry is one named CSV payload going into a multi-template zip archive.
type CSVEntry struct {
	Name string
	Data []byte
}

// ToZip bundles multiple CSVEntry payloads into a single zip archive, one
// entry per template, the shape an export with more than one template
// produces.
func ToZip(entries []CSVEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return nil, fmt.Errorf("reportcatalog: create zip entry %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("reportcatalog: write zip entry %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("reportcatalog: close zip: %w", err)
	}
	return buf.Bytes(), nil
}
