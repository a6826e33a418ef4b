package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/pkg/utils"
)

// FallbackSink writes a whole batch to a new local file.
type FallbackSink interface {
	Write(records []model.Record, runStart time.Time) (string, error)
}

// FileSink writes one CSV or JSON file per run into the output directory.
type FileSink struct {
	output *utils.OutputManager
	format string
	prefix string
}

// NewFileSink creates a sink; format is "csv" or "json".
func NewFileSink(dir, format, prefix string) *FileSink {
	return &FileSink{
		output: utils.NewOutputManager(dir),
		format: strings.ToLower(format),
		prefix: prefix,
	}
}

// Write creates <prefix>_<runStart>.<format> exclusively and writes every
// record to it. An existing file is never appended to.
func (s *FileSink) Write(records []model.Record, runStart time.Time) (string, error) {
	if err := s.output.EnsureOutputDirExists(); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %v", ErrFallbackWrite, err)
	}

	path := s.output.RunFilePath(s.prefix, runStart, s.format)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create file: %v", ErrFallbackWrite, err)
	}

	switch s.format {
	case "json":
		err = writeJSON(file, records, runStart)
	default:
		err = writeCSV(file, records)
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %s: %v", ErrFallbackWrite, path, err)
	}
	return path, nil
}

// Files lists the fallback files written so far.
func (s *FileSink) Files() ([]utils.OutputFile, error) {
	return s.output.ListFiles()
}

// writeCSV writes a header in record field order followed by one row per
// record. Fields missing from a record are written empty.
func writeCSV(file *os.File, records []model.Record) error {
	writer := csv.NewWriter(file)

	header := columnNames(records)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			v, _ := rec.Get(col)
			row[i] = utils.Text(v)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeJSON(file *os.File, records []model.Record, runStart time.Time) error {
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportInfo map[string]any `json:"export_info"`
		Data       []model.Record `json:"data"`
	}{
		ExportInfo: map[string]any{
			"run_started_at": runStart.UTC(),
			"record_count":   len(records),
			"export_type":    "fallback",
		},
		Data: records,
	}
	if exportData.Data == nil {
		exportData.Data = []model.Record{}
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// columnNames returns the union of field names in first-seen order.
func columnNames(records []model.Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	return names
}
