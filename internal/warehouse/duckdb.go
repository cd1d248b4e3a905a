package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // register "duckdb" driver
	"github.com/google/uuid"

	"csv-ingest/internal/domain"
)

// DuckDB loads CSV payloads into a local DuckDB database. The dataset maps
// to a DuckDB schema; the project is ignored. Intended for development and
// for running the service without cloud credentials.
type DuckDB struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenDuckDB opens (or creates) the database at path. An empty path opens an
// in-memory database.
func OpenDuckDB(path string, logger *slog.Logger) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return NewDuckDB(db, logger), nil
}

// NewDuckDB wraps an existing DuckDB handle.
func NewDuckDB(db *sql.DB, logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDB{db: db, logger: logger}
}

// Close closes the database.
func (d *DuckDB) Close() error {
	return d.db.Close()
}

// Lookup implements domain.Warehouse.
func (d *DuckDB) Lookup(ctx context.Context, ref domain.TableRef) (domain.TableLookup, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
		ref.Dataset, ref.Table).Scan(&n)
	if err != nil {
		return domain.TableLookup{}, fmt.Errorf("look up %s: %w", ref, err)
	}
	if n == 0 {
		return domain.TableLookup{}, nil
	}

	var rows int64
	if err := d.db.QueryRowContext(ctx, "SELECT count(*) FROM "+qualified(ref)).Scan(&rows); err != nil {
		return domain.TableLookup{}, fmt.Errorf("count rows in %s: %w", ref, err)
	}
	return domain.TableLookup{Found: true, NumRows: uint64(rows)}, nil
}

// Load implements domain.Warehouse. The payload is staged to a temporary CSV
// file and loaded in the background; the returned job reports completion.
// The load keeps running if ctx is cancelled after submission.
func (d *DuckDB) Load(ctx context.Context, ref domain.TableRef, payload *domain.Payload, mode domain.WriteMode) (domain.LoadJob, error) {
	f, err := os.CreateTemp("", "csv-ingest-*.csv")
	if err != nil {
		return nil, fmt.Errorf("stage payload: %w", err)
	}
	if err := payload.Encode(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("stage payload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("stage payload: %w", err)
	}

	job := &duckDBJob{id: "duckdb_" + uuid.NewString(), done: make(chan struct{})}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(job.done)
		defer os.Remove(f.Name()) //nolint:errcheck
		job.err = d.load(runCtx, ref, f.Name(), mode)
		if job.err != nil {
			d.logger.Error("duckdb load failed", "job_id", job.id, "table", ref.String(), "error", job.err)
		}
	}()
	return job, nil
}

func (d *DuckDB) load(ctx context.Context, ref domain.TableRef, path string, mode domain.WriteMode) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	table := qualified(ref)
	source := fmt.Sprintf("read_csv_auto(%s, header = true)", quoteLiteral(path))

	stmts := []string{"CREATE SCHEMA IF NOT EXISTS " + quoteIdent(ref.Dataset)}
	switch mode {
	case domain.WriteAppend:
		stmts = append(stmts,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM %s LIMIT 0", table, source),
			fmt.Sprintf("INSERT INTO %s BY NAME SELECT * FROM %s", table, source),
		)
	default:
		stmts = append(stmts, fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", table, source))
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("load into %s: %w", ref, err)
		}
	}
	return tx.Commit()
}

type duckDBJob struct {
	id   string
	done chan struct{}
	err  error
}

func (j *duckDBJob) ID() string { return j.id }

func (j *duckDBJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func qualified(ref domain.TableRef) string {
	return quoteIdent(ref.Dataset) + "." + quoteIdent(ref.Table)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
