package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timestampLayout names fallback files after the run's start time.
const timestampLayout = "20060102_150405.000000"

// OutputManager handles fallback file naming and listing
type OutputManager struct {
	BaseOutputDir string
}

// OutputFile describes one file in the output directory.
type OutputFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}

// RunFilePath returns the path of the file for a run started at started,
// e.g. processed_sales_20241217_020000.000000.csv.
func (om *OutputManager) RunFilePath(prefix string, started time.Time, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, started.UTC().Format(timestampLayout), strings.TrimPrefix(ext, "."))
	return filepath.Join(om.BaseOutputDir, filepath.Base(name))
}

// ListFiles returns the regular files in the output directory, oldest first.
// A missing directory yields an empty list.
func (om *OutputManager) ListFiles() ([]OutputFile, error) {
	entries, err := os.ReadDir(om.BaseOutputDir)
	if os.IsNotExist(err) {
		return []OutputFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	files := make([]OutputFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, OutputFile{
			Name:    e.Name(),
			Path:    filepath.Join(om.BaseOutputDir, e.Name()),
			Type:    om.GetFileType(e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// GetFileType determines the file type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	default:
		return "unknown"
	}
}
