package pipeline

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-etl-scheduler/internal/config"
	"go-etl-scheduler/internal/model"
)

func sqliteDestination(t *testing.T, dsn string) *SQLDestination {
	cfg := config.Default().Destination
	cfg.DSN = dsn
	return NewSQLDestination(cfg, zaptest.NewLogger(t))
}

func countRows(t *testing.T, dsn, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

// uniqueProductTable creates the sales table with a UNIQUE product column
// holding one row, so a batch can fail on its second insert.
func uniqueProductTable(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE "sales" ("product" TEXT UNIQUE, "amount" REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "sales" ("product", "amount") VALUES ('Laptop', 10.0)`)
	require.NoError(t, err)
}

func duplicateBatch() []model.Record {
	return []model.Record{
		model.NewRecord(model.Field{Name: "product", Value: "Mouse"}, model.Field{Name: "amount", Value: 2.0}),
		model.NewRecord(model.Field{Name: "product", Value: "Laptop"}, model.Field{Name: "amount", Value: 12.0}),
		model.NewRecord(model.Field{Name: "product", Value: "Pen"}, model.Field{Name: "amount", Value: 1.0}),
	}
}

func TestSQLDestination_RollsBackPartialWrite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sales.db")
	uniqueProductTable(t, dsn)
	dest := sqliteDestination(t, dsn)

	err := dest.Write(context.Background(), duplicateBatch())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to insert record 1")
	assert.Equal(t, 1, countRows(t, dsn, "sales"))

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "sales" WHERE "product" = 'Mouse'`).Scan(&n))
	assert.Zero(t, n)
}

func TestLoader_MidBatchFailureFallsBackWithFullBatch(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "sales.db")
	uniqueProductTable(t, dsn)
	fallbackDir := filepath.Join(dir, "fallback")
	loader := NewLoader(sqliteDestination(t, dsn), NewFileSink(fallbackDir, "csv", "processed_sales"), zaptest.NewLogger(t))

	outcome, err := loader.Load(context.Background(), duplicateBatch(), runStamp)
	require.NoError(t, err)
	assert.Equal(t, model.DestinationFallback, outcome.Destination)
	assert.Equal(t, 3, outcome.Count)
	assert.Contains(t, outcome.PrimaryError, "failed to insert record 1")
	assert.Equal(t, 1, countRows(t, dsn, "sales"))

	f, err := os.Open(outcome.FallbackFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"product", "amount"},
		{"Mouse", "2"},
		{"Laptop", "12"},
		{"Pen", "1"},
	}, rows)
}

func TestSQLDestination_Unreachable(t *testing.T) {
	err := unreachableSQLite(t).Write(context.Background(), salesRecords(1))
	assert.ErrorContains(t, err, "failed to connect to sqlite3")
}

func TestLoader_FallbackOnPrimaryFailure(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(unreachableSQLite(t), NewFileSink(dir, "json", "processed_sales"), zaptest.NewLogger(t))

	outcome, err := loader.Load(context.Background(), salesRecords(3), runStamp)
	require.NoError(t, err)
	assert.Equal(t, model.DestinationFallback, outcome.Destination)
	assert.Equal(t, 3, outcome.Count)
	assert.NotEmpty(t, outcome.PrimaryError)
	assert.Equal(t, filepath.Join(dir, "processed_sales_20241217_020000.000000.json"), outcome.FallbackFile)

	data, err := os.ReadFile(outcome.FallbackFile)
	require.NoError(t, err)
	var doc struct {
		ExportInfo map[string]any   `json:"export_info"`
		Data       []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(3), doc.ExportInfo["record_count"])
	assert.Len(t, doc.Data, 3)
}

func TestLoader_NeverReusesFallbackFile(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(unreachableSQLite(t), NewFileSink(dir, "csv", "processed_sales"), zaptest.NewLogger(t))

	first, err := loader.Load(context.Background(), salesRecords(2), runStamp)
	require.NoError(t, err)
	before, err := os.ReadFile(first.FallbackFile)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), salesRecords(5), runStamp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDestinationUnavailable))
	assert.True(t, errors.Is(err, ErrFallbackWrite))

	after, err := os.ReadFile(first.FallbackFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	second, err := loader.Load(context.Background(), salesRecords(2), runStamp.Add(time.Microsecond))
	require.NoError(t, err)
	assert.NotEqual(t, first.FallbackFile, second.FallbackFile)
}

func TestLoader_EmptyBatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fallback")
	loader := NewLoader(unreachableSQLite(t), NewFileSink(dir, "csv", "processed_sales"), zaptest.NewLogger(t))

	outcome, err := loader.Load(context.Background(), nil, runStamp)
	require.NoError(t, err)
	assert.Equal(t, model.LoadOutcome{Destination: model.DestinationPrimary}, outcome)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func init() {
	sql.Register("hung", hungDriver{})
}

// hungDriver never answers: with dsn "connect" opening a connection blocks,
// with dsn "begin" starting a transaction blocks. Both return once ctx ends.
type hungDriver struct{}

func (hungDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("use a context")
}

func (hungDriver) OpenConnector(name string) (driver.Connector, error) {
	return hungConnector{mode: name}, nil
}

type hungConnector struct{ mode string }

func (c hungConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.mode == "connect" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return hungConn{}, nil
}

func (hungConnector) Driver() driver.Driver { return hungDriver{} }

type hungConn struct{}

func (hungConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (hungConn) Close() error                        { return nil }
func (hungConn) Begin() (driver.Tx, error)           { return nil, errors.New("use a context") }

func (hungConn) BeginTx(ctx context.Context, _ driver.TxOptions) (driver.Tx, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoader_HungPrimaryFallsBackWithinTimeout(t *testing.T) {
	for _, mode := range []string{"connect", "begin"} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.Default().Destination
			cfg.Driver = "hung"
			cfg.DSN = mode
			cfg.ConnectTimeout = 50 * time.Millisecond
			cfg.WriteTimeout = 50 * time.Millisecond
			cfg.ConnectAttempts = 2
			cfg.RetryDelay = 10 * time.Millisecond

			dir := t.TempDir()
			loader := NewLoader(NewSQLDestination(cfg, zaptest.NewLogger(t)), NewFileSink(dir, "csv", "processed_sales"), zaptest.NewLogger(t))

			start := time.Now()
			outcome, err := loader.Load(context.Background(), salesRecords(3), runStamp)
			elapsed := time.Since(start)

			require.NoError(t, err)
			assert.Equal(t, model.DestinationFallback, outcome.Destination)
			assert.Contains(t, outcome.PrimaryError, context.DeadlineExceeded.Error())
			assert.Less(t, elapsed, 2*time.Second)
			assert.Len(t, listDir(t, dir), 1)
		})
	}
}

func TestSQLType(t *testing.T) {
	records := []model.Record{
		model.NewRecord(model.Field{Name: "a", Value: int64(1)}, model.Field{Name: "b", Value: int64(1)}, model.Field{Name: "c", Value: nil}),
		model.NewRecord(model.Field{Name: "a", Value: int64(2)}, model.Field{Name: "b", Value: 1.5}, model.Field{Name: "c", Value: "x"}),
	}
	assert.Equal(t, "INTEGER", sqlType("a", records))
	assert.Equal(t, "REAL", sqlType("b", records))
	assert.Equal(t, "TEXT", sqlType("c", records))
	assert.Equal(t, "TEXT", sqlType("missing", records))
}

func TestQuoteIdentifiers(t *testing.T) {
	assert.Equal(t, `"sales"`, (&SQLDestination{driver: "sqlite3"}).quote("sales"))
	assert.Equal(t, "`sales`", (&SQLDestination{driver: "mysql"}).quote("sales"))
}
