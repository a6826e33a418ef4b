package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-etl-scheduler/internal/model"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// RunStore keeps the history of finalized runs in SQLite.
type RunStore struct {
	db *sql.DB
}

// RunInfo is the list view of one run.
type RunInfo struct {
	ID            string          `json:"id"`
	Status        model.RunStatus `json:"status"`
	FailedStage   model.Stage     `json:"failed_stage,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	DurationMs    int64           `json:"duration_ms"`
	RecordsLoaded int             `json:"records_loaded"`
	Destination   string          `json:"destination,omitempty"`
	FallbackFile  string          `json:"fallback_file,omitempty"`
}

// InitDB opens the database and creates the tables if they do not exist.
func InitDB(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT,
		failed_stage TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		duration_ms INTEGER,
		records_extracted INTEGER,
		records_transformed INTEGER,
		records_loaded INTEGER,
		destination TEXT,
		fallback_file TEXT,
		result TEXT
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`

	for _, stmt := range []string{runTable, errorTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a finalized run and its errors.
func (s *RunStore) SaveRun(ctx context.Context, res model.RunResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, status, failed_stage, started_at, finished_at, duration_ms,
		 records_extracted, records_transformed, records_loaded, destination, fallback_file, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, string(res.Status), string(res.FailedStage), res.StartedAt.UTC(), res.FinishedAt.UTC(), res.Duration.Milliseconds(),
		res.RecordsExtracted, res.RecordsTransformed, res.RecordsLoaded, string(res.Destination), res.FallbackFile, string(resultJSON))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", res.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_errors WHERE run_id = ?`, res.ID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, msg := range res.Errors {
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
			res.ID, msg, now); err != nil {
			return fmt.Errorf("failed to save run error: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `SELECT id, status, failed_stage, started_at, finished_at, duration_ms, records_loaded, destination, fallback_file
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		var status, failedStage string
		if err := rows.Scan(&info.ID, &status, &failedStage, &info.StartedAt, &info.FinishedAt,
			&info.DurationMs, &info.RecordsLoaded, &info.Destination, &info.FallbackFile); err != nil {
			return nil, err
		}
		info.Status = model.RunStatus(status)
		info.FailedStage = model.Stage(failedStage)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// GetRun fetches the full result of one run.
func (s *RunStore) GetRun(ctx context.Context, id string) (model.RunResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, id).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunResult{}, ErrRunNotFound
	}
	if err != nil {
		return model.RunResult{}, err
	}

	var res model.RunResult
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return model.RunResult{}, fmt.Errorf("corrupt run %s: %w", id, err)
	}

	res.Errors, err = s.runErrors(ctx, id)
	if err != nil {
		return model.RunResult{}, err
	}
	return res, nil
}

func (s *RunStore) runErrors(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT error_message FROM run_errors WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []string{}
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
