package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the job needs: where to read, where to write,
// where to fall back to and how often to run.
type Config struct {
	Source         SourceConfig      `yaml:"source"`
	Destination    DestinationConfig `yaml:"destination"`
	FallbackPath   string            `yaml:"fallbackPath"`
	FallbackFormat string            `yaml:"fallbackFormat"` // csv, json
	FallbackPrefix string            `yaml:"fallbackPrefix"`
	IntervalSecs   int               `yaml:"intervalSeconds"`
	Transform      TransformConfig   `yaml:"transform"`
	Report         ReportConfig      `yaml:"report"`
	HTTP           HTTPConfig        `yaml:"http"`
	History        HistoryConfig     `yaml:"history"`
	Log            LogConfig         `yaml:"log"`
}

// SourceConfig describes the extraction source.
type SourceConfig struct {
	Type     string `yaml:"type"`     // csv, json, sql
	Location string `yaml:"location"` // file path, URL or DSN
	Driver   string `yaml:"driver"`   // sql only: sqlite3, mysql
	Query    string `yaml:"query"`    // sql only
}

// DestinationConfig describes the primary relational store.
type DestinationConfig struct {
	Driver          string        `yaml:"driver"` // sqlite3, mysql
	DSN             string        `yaml:"dsn"`
	Table           string        `yaml:"table"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ConnectAttempts int           `yaml:"connectAttempts"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
}

// TransformConfig is the fixed mapping applied to every record.
type TransformConfig struct {
	Required []string          `yaml:"required"`
	Types    map[string]string `yaml:"types"` // string, int, float, bool, date
	Steps    []string          `yaml:"steps"`
	Rename   map[string]string `yaml:"rename"`
	Drop     []string          `yaml:"drop"`
}

// ReportConfig controls the per-run summary.
type ReportConfig struct {
	GroupBy string   `yaml:"groupBy"`
	Sum     []string `yaml:"sum"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Path    string `yaml:"path"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Interval returns the scheduler cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// Default returns the configuration of the sales job the service was built for.
func Default() *Config {
	return &Config{
		Source: SourceConfig{Type: "csv", Location: "data/sales.csv"},
		Destination: DestinationConfig{
			Driver:          "sqlite3",
			DSN:             "output/sales.db",
			Table:           "sales",
			ConnectTimeout:  10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ConnectAttempts: 1,
			RetryDelay:      2 * time.Second,
		},
		FallbackPath:   "output/fallback",
		FallbackFormat: "csv",
		FallbackPrefix: "processed_sales",
		IntervalSecs:   300,
		Report:         ReportConfig{GroupBy: "category", Sum: []string{"total_sales", "quantity"}},
		HTTP:           HTTPConfig{Addr: ":8080"},
		History:        HistoryConfig{Path: "pipeline.db"},
		Log:            LogConfig{Path: "logs/pipeline.log", Level: "info", Console: true},
	}
}

// SalesTransform is the mapping used when the config file names no transform.
func SalesTransform() TransformConfig {
	return TransformConfig{
		Required: []string{"date", "product", "amount", "quantity"},
		Types: map[string]string{
			"date":     "date",
			"product":  "string",
			"amount":   "float",
			"quantity": "int",
		},
		Steps: []string{"trimStrings", "totalSales", "categorizeProduct", "estimatedProfit", "processedAt"},
	}
}

func (t TransformConfig) empty() bool {
	return len(t.Required) == 0 && len(t.Types) == 0 && len(t.Steps) == 0 && len(t.Rename) == 0 && len(t.Drop) == 0
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Source.Location = getEnv("PIPELINE_SOURCE", c.Source.Location)
	c.Destination.DSN = getEnv("PIPELINE_DESTINATION_DSN", c.Destination.DSN)
	c.FallbackPath = getEnv("PIPELINE_FALLBACK_PATH", c.FallbackPath)
	c.History.Path = getEnv("PIPELINE_HISTORY_DB", c.History.Path)
	c.Log.Path = getEnv("LOG_PATH", c.Log.Path)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("PIPELINE_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PIPELINE_INTERVAL_SECONDS: %w", err)
		}
		c.IntervalSecs = n
	}
	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.Source.Type {
	case "csv", "json":
	case "sql":
		if c.Source.Driver == "" || c.Source.Query == "" {
			errs = append(errs, errors.New("sql source requires driver and query"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source type %q", c.Source.Type))
	}
	if c.Source.Location == "" {
		errs = append(errs, errors.New("source location is required"))
	}

	if c.Destination.Driver == "" || c.Destination.DSN == "" {
		errs = append(errs, errors.New("destination driver and dsn are required"))
	}
	if c.Destination.Table == "" {
		c.Destination.Table = "sales"
	}
	if c.Destination.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("destination connectTimeout must be positive"))
	}
	if c.Destination.WriteTimeout <= 0 {
		errs = append(errs, errors.New("destination writeTimeout must be positive"))
	}
	if c.Destination.ConnectAttempts <= 0 {
		c.Destination.ConnectAttempts = 1
	}

	if c.FallbackPath == "" {
		errs = append(errs, errors.New("fallbackPath is required"))
	}
	switch c.FallbackFormat {
	case "":
		c.FallbackFormat = "csv"
	case "csv", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown fallbackFormat %q", c.FallbackFormat))
	}
	if c.FallbackPrefix == "" {
		c.FallbackPrefix = "processed_sales"
	}

	if c.Transform.empty() {
		c.Transform = SalesTransform()
	}

	if c.IntervalSecs < 1 {
		errs = append(errs, fmt.Errorf("intervalSeconds must be at least 1, got %d", c.IntervalSecs))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
