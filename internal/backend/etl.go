package backend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/krishimitr/assistant/internal/storage"
)

// ImportStats summarises a CSV import.
type ImportStats struct {
	Rows    int
	Skipped int
}

// ParseCSV reads knowledge base rows. The header must name "source" and
// "content"; "content_hi" and "query_en" are optional. Rows without content
// are skipped. onRow, when set, is called after every data row.
func ParseCSV(r io.Reader, onRow func()) ([]storage.Record, ImportStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ImportStats{}, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, ImportStats{}, fmt.Errorf("read header: %w", err)
	}

	cols := headerIndex(header)
	for _, required := range []string{"source", "content"} {
		if _, ok := cols[required]; !ok {
			return nil, ImportStats{}, fmt.Errorf("csv header missing %q column", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		records []storage.Record
		stats   ImportStats
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		rec := storage.Record{
			Query:     field(row, "query_en"),
			Content:   field(row, "content"),
			ContentHI: field(row, "content_hi"),
			Source:    field(row, "source"),
		}.Normalize()
		if rec.Content == "" {
			stats.Skipped++
		} else {
			records = append(records, rec)
		}

		if onRow != nil {
			onRow()
		}
	}
	return records, stats, nil
}
