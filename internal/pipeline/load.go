package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"go-etl-scheduler/internal/config"
	"go-etl-scheduler/internal/model"
)

// Destination is the primary relational store. Write either commits the
// whole batch or leaves the store untouched.
type Destination interface {
	Write(ctx context.Context, records []model.Record) error
	Name() string
}

// SQLDestination writes batches into one table through database/sql.
type SQLDestination struct {
	driver         string
	dsn            string
	table          string
	connectTimeout time.Duration
	writeTimeout   time.Duration
	retry          RetryConfig
	logger         *zap.Logger
}

// NewSQLDestination builds the primary destination from cfg.
func NewSQLDestination(cfg config.DestinationConfig, logger *zap.Logger) *SQLDestination {
	return &SQLDestination{
		driver:         cfg.Driver,
		dsn:            cfg.DSN,
		table:          cfg.Table,
		connectTimeout: cfg.ConnectTimeout,
		writeTimeout:   cfg.WriteTimeout,
		retry:          connectRetry(cfg.ConnectAttempts, cfg.RetryDelay),
		logger:         logger,
	}
}

func (d *SQLDestination) Name() string {
	return d.driver + ":" + d.table
}

func (d *SQLDestination) Write(ctx context.Context, records []model.Record) error {
	db, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	writeCtx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()

	columns := columnNames(records)
	tx, err := db.BeginTx(writeCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := d.insert(writeCtx, tx, columns, records); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("rollback failed", zap.String("destination", d.Name()), zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// connect opens the database and pings it, each attempt bounded by the
// connect timeout.
func (d *SQLDestination) connect(ctx context.Context) (*sql.DB, error) {
	var db *sql.DB
	err := retry(ctx, d.retry, d.logger, "connect "+d.Name(), func(ctx context.Context) error {
		conn, err := sql.Open(d.driver, d.dsn)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", d.driver, err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
		defer cancel()
		if err := conn.PingContext(pingCtx); err != nil {
			conn.Close()
			return fmt.Errorf("failed to connect to %s: %w", d.driver, err)
		}
		db = conn
		return nil
	})
	return db, err
}

func (d *SQLDestination) insert(ctx context.Context, tx *sql.Tx, columns []string, records []model.Record) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.quote(c)
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.quote(d.table), columnDefs(quoted, columns, records))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(d.table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for i, rec := range records {
		for j, c := range columns {
			args[j], _ = rec.Get(c)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return nil
}

func (d *SQLDestination) quote(ident string) string {
	if d.driver == "mysql" {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// columnDefs infers one SQL type per column from the values in the batch.
func columnDefs(quoted, columns []string, records []model.Record) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoted[i] + " " + sqlType(c, records)
	}
	return strings.Join(defs, ", ")
}

func sqlType(column string, records []model.Record) string {
	typ := ""
	for _, rec := range records {
		v, ok := rec.Get(column)
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case int, int32, int64, bool:
			if typ == "" {
				typ = "INTEGER"
			}
		case float32, float64:
			if typ == "" || typ == "INTEGER" {
				typ = "REAL"
			}
		default:
			return "TEXT"
		}
	}
	if typ == "" {
		return "TEXT"
	}
	return typ
}

// Loader delivers a batch to the primary destination, or to the fallback sink
// when the primary cannot take it.
type Loader struct {
	primary  Destination
	fallback FallbackSink
	logger   *zap.Logger
}

func NewLoader(primary Destination, fallback FallbackSink, logger *zap.Logger) *Loader {
	return &Loader{primary: primary, fallback: fallback, logger: logger}
}

// Load writes records to the primary destination. If that fails the whole
// batch goes to a new fallback file named after runStart. If both fail the
// error wraps ErrDestinationUnavailable, ErrFallbackWrite and the primary error.
func (l *Loader) Load(ctx context.Context, records []model.Record, runStart time.Time) (model.LoadOutcome, error) {
	if len(records) == 0 {
		return model.LoadOutcome{Destination: model.DestinationPrimary}, nil
	}

	primaryErr := l.primary.Write(ctx, records)
	if primaryErr == nil {
		l.logger.Info("batch loaded",
			zap.String("destination", l.primary.Name()),
			zap.Int("records", len(records)))
		return model.LoadOutcome{Destination: model.DestinationPrimary, Count: len(records)}, nil
	}

	l.logger.Warn("primary destination unavailable, writing fallback file",
		zap.String("destination", l.primary.Name()),
		zap.Int("records", len(records)),
		zap.Error(primaryErr))

	path, err := l.fallback.Write(records, runStart)
	if err != nil {
		return model.LoadOutcome{PrimaryError: primaryErr.Error()},
			fmt.Errorf("%w: primary: %w; fallback: %w", ErrDestinationUnavailable, primaryErr, err)
	}

	l.logger.Info("batch written to fallback file",
		zap.String("file", path),
		zap.Int("records", len(records)))
	return model.LoadOutcome{
		Destination:  model.DestinationFallback,
		Count:        len(records),
		FallbackFile: path,
		PrimaryError: primaryErr.Error(),
	}, nil
}

