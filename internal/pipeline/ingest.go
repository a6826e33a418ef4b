package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-etl-scheduler/internal/config"
	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/pkg/utils"
)

// Extractor reads the full batch of raw records from a source. Every call
// re-reads the source.
type Extractor interface {
	Extract(ctx context.Context) ([]model.Record, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context) ([]model.Record, error)

func (f ExtractorFunc) Extract(ctx context.Context) ([]model.Record, error) { return f(ctx) }

// NewExtractor builds the extractor for the configured source type.
func NewExtractor(src config.SourceConfig, logger *zap.Logger) (Extractor, error) {
	switch strings.ToLower(src.Type) {
	case "csv":
		return &csvExtractor{path: src.Location, logger: logger}, nil
	case "json":
		return &jsonExtractor{location: src.Location, client: &http.Client{Timeout: 30 * time.Second}, logger: logger}, nil
	case "sql":
		return &sqlExtractor{driver: src.Driver, dsn: src.Location, query: src.Query, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}

// ------------------- CSV -------------------

type csvExtractor struct {
	path   string
	logger *zap.Logger
}

func (e *csvExtractor) Extract(ctx context.Context) ([]model.Record, error) {
	file, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open CSV file: %v", ErrSourceUnavailable, err)
	}
	defer file.Close()

	csvReader := csv.NewReader(file)
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s is empty", ErrSourceFormat, e.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrSourceFormat, err)
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	var records []model.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%w: %v", ErrSourceFormat, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: CSV read error: %v", ErrSourceUnavailable, err)
		}

		fields := make([]model.Field, len(headers))
		for i, h := range headers {
			fields[i] = model.Field{Name: h, Value: utils.ParseValue(row[i])}
		}
		records = append(records, model.NewRecord(fields...))
	}

	e.logger.Info("CSV extraction done", zap.String("path", e.path), zap.Int("records", len(records)))
	return records, nil
}

// ------------------- JSON / API -------------------

type jsonExtractor struct {
	location string
	client   *http.Client
	logger   *zap.Logger
}

func (e *jsonExtractor) Extract(ctx context.Context) ([]model.Record, error) {
	body, err := e.read(ctx)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceFormat, e.location, err)
	}

	e.logger.Info("JSON extraction done", zap.String("location", e.location), zap.Int("records", len(records)))
	return records, nil
}

func (e *jsonExtractor) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(e.location, "http://") && !strings.HasPrefix(e.location, "https://") {
		data, err := os.ReadFile(e.location)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read JSON file: %v", ErrSourceUnavailable, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to GET JSON: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s returned %s", ErrSourceUnavailable, e.location, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read JSON body: %v", ErrSourceUnavailable, err)
	}
	return data, nil
}

// decodeRecords accepts an array of flat objects or a single flat object and
// keeps each object's key order.
func decodeRecords(data []byte) ([]model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch tok {
	case json.Delim('['):
		var records []model.Record
		for dec.More() {
			t, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if t != json.Delim('{') {
				return nil, fmt.Errorf("record %d is not an object", len(records))
			}
			rec, err := decodeObject(dec)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", len(records), err)
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return records, expectEOF(dec)
	case json.Delim('{'):
		rec, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		return []model.Record{rec}, expectEOF(dec)
	default:
		return nil, fmt.Errorf("unexpected JSON structure")
	}
}

// expectEOF rejects anything after the top-level value.
func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	return nil
}

// decodeObject reads the remainder of an object whose '{' was consumed.
func decodeObject(dec *json.Decoder) (model.Record, error) {
	var fields []model.Field
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return model.Record{}, err
		}
		key, _ := t.(string)

		v, err := dec.Token()
		if err != nil {
			return model.Record{}, err
		}
		var value any
		switch val := v.(type) {
		case json.Delim:
			return model.Record{}, fmt.Errorf("field %q is not a scalar", key)
		case json.Number:
			if i, err := val.Int64(); err == nil {
				value = i
			} else if f, err := val.Float64(); err == nil {
				value = f
			} else {
				value = val.String()
			}
		default:
			value = val
		}
		fields = append(fields, model.Field{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return model.Record{}, err
	}
	return model.NewRecord(fields...), nil
}

// ------------------- SQL -------------------

type sqlExtractor struct {
	driver string
	dsn    string
	query  string
	logger *zap.Logger
}

func (e *sqlExtractor) Extract(ctx context.Context) ([]model.Record, error) {
	db, err := sql.Open(e.driver, e.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	rows, err := db.QueryContext(ctx, e.query)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceFormat, err)
	}

	var records []model.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceFormat, err)
		}

		fields := make([]model.Field, len(cols))
		for i, c := range cols {
			fields[i] = model.Field{Name: c, Value: sqlScalar(values[i])}
		}
		records = append(records, model.NewRecord(fields...))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	e.logger.Info("SQL extraction done", zap.String("driver", e.driver), zap.Int("records", len(records)))
	return records, nil
}

func sqlScalar(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
