// Package database provides SQLite-backed history of resolve batches: the
// descriptors each batch produced and the lines or pipelines that failed.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/models"
	"github.com/nishad/srafetch/internal/pipeline"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	path string
}

// Initialize opens (creating if needed) the history database at path.
func Initialize(path string) (*DB, error) {
	const op errors.Op = "database.Initialize"

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_sync=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, fmt.Errorf("failed to open database: %w", err))
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			errors.IgnoreError(db.Close(), "closing database after failed pragma")
			return nil, errors.E(op, errors.KindDatabase, fmt.Errorf("failed to set pragma %s: %w", pragma, err))
		}
	}

	if err := createTables(db); err != nil {
		errors.IgnoreError(db.Close(), "closing database after failed schema setup")
		return nil, errors.E(op, errors.KindDatabase, fmt.Errorf("failed to create tables: %w", err))
	}

	// a single writer avoids SQLITE_BUSY between concurrent batches
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		line_count INTEGER NOT NULL,
		pipeline_count INTEGER NOT NULL,
		descriptor_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS descriptors (
		batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		line_no INTEGER NOT NULL,
		name TEXT,
		orig_acc TEXT NOT NULL,
		run_acc TEXT NOT NULL,
		http_url TEXT NOT NULL,
		md5 TEXT,
		ascp_url TEXT,
		download_path TEXT NOT NULL,
		PRIMARY KEY (batch_id, position)
	);

	CREATE TABLE IF NOT EXISTS failures (
		batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		input TEXT,
		accession TEXT,
		kind TEXT NOT NULL,
		reason TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_batches_created ON batches(created_at);
	CREATE INDEX IF NOT EXISTS idx_descriptors_orig ON descriptors(orig_acc);
	CREATE INDEX IF NOT EXISTS idx_descriptors_run ON descriptors(run_acc);
	CREATE INDEX IF NOT EXISTS idx_failures_batch ON failures(batch_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// SaveBatch stores a finished batch and returns its generated id.
func (db *DB) SaveBatch(ctx context.Context, b *pipeline.Batch) (string, error) {
	const op errors.Op = "database.SaveBatch"

	id := uuid.New().String()
	failures := batchFailures(id, b)
	descriptors := 0
	for i := range b.Results {
		descriptors += len(b.Results[i].Descriptors)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.E(op, errors.KindDatabase, fmt.Errorf("failed to start transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, created_at, finished_at, line_count, pipeline_count,
			descriptor_count, failure_count, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, b.Started.UTC(), b.Finished.UTC(), b.Lines, len(b.Results),
		descriptors, len(failures), b.Err != nil)
	if err != nil {
		return "", errors.E(op, errors.KindDatabase, err)
	}

	descStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO descriptors (batch_id, position, line_no, name, orig_acc, run_acc,
			http_url, md5, ascp_url, download_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", errors.E(op, errors.KindDatabase, err)
	}
	defer descStmt.Close()

	pos := 0
	for i := range b.Results {
		r := &b.Results[i]
		for _, d := range r.Descriptors {
			if _, err := descStmt.ExecContext(ctx, id, pos, r.Line, d.Name, d.OrigAcc, d.RunAcc,
				d.HTTPURL, d.MD5, d.AsperaURL, d.DownloadPath); err != nil {
				return "", errors.E(op, errors.KindDatabase, fmt.Errorf("descriptor %d: %w", pos, err))
			}
			pos++
		}
	}

	failStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO failures (batch_id, line_no, input, accession, kind, reason, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", errors.E(op, errors.KindDatabase, err)
	}
	defer failStmt.Close()

	for _, f := range failures {
		if _, err := failStmt.ExecContext(ctx, id, f.Line, f.Input, f.Accession, f.Kind, f.Reason, f.Message); err != nil {
			return "", errors.E(op, errors.KindDatabase, fmt.Errorf("failure line %d: %w", f.Line, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.E(op, errors.KindDatabase, err)
	}
	return id, nil
}

// batchFailures flattens skipped lines and non-ok pipelines.
func batchFailures(id string, b *pipeline.Batch) []Failure {
	out := make([]Failure, 0, len(b.Failures))
	for _, f := range b.Failures {
		out = append(out, Failure{
			BatchID: id,
			Line:    f.Line,
			Input:   f.Input,
			Kind:    FailureParse,
			Reason:  f.Reason,
			Message: f.Error,
		})
	}
	for i := range b.Results {
		r := &b.Results[i]
		if r.Outcome == pipeline.OutcomeOK {
			continue
		}
		out = append(out, Failure{
			BatchID:   id,
			Line:      r.Line,
			Input:     r.Accession.String(),
			Accession: r.Accession.Code,
			Kind:      string(r.Outcome),
			Message:   r.Error,
		})
	}
	return out
}

// ListBatches returns the most recent batches first. limit <= 0 means all.
func (db *DB) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	const op errors.Op = "database.ListBatches"

	query := `SELECT id, created_at, finished_at, line_count, pipeline_count,
		descriptor_count, failure_count, interrupted
		FROM batches ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	scanner := errors.NewRowScanner(string(op))
	batches := []BatchSummary{}
	for rows.Next() {
		var s BatchSummary
		if err := scanBatch(rows, &s); err != nil {
			scanner.RecordSkip(err, "batch")
			continue
		}
		scanner.RecordScan()
		batches = append(batches, s)
	}
	scanner.Report()
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return batches, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row rowScanner, s *BatchSummary) error {
	return row.Scan(&s.ID, &s.CreatedAt, &s.FinishedAt, &s.LineCount, &s.PipelineCount,
		&s.DescriptorCount, &s.FailureCount, &s.Interrupted)
}

// GetBatch returns a batch with its descriptors and failures. A missing id
// yields an error of kind errors.KindNotFound.
func (db *DB) GetBatch(ctx context.Context, id string) (*BatchDetail, error) {
	const op errors.Op = "database.GetBatch"

	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.E(op, errors.KindNotFound, fmt.Sprintf("batch %q", id))
	}

	detail := &BatchDetail{}
	row := db.QueryRowContext(ctx, `SELECT id, created_at, finished_at, line_count, pipeline_count,
		descriptor_count, failure_count, interrupted FROM batches WHERE id = ?`, id)
	if err := scanBatch(row, &detail.BatchSummary); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.E(op, errors.KindNotFound, fmt.Sprintf("batch %q", id))
		}
		return nil, errors.E(op, errors.KindDatabase, err)
	}

	var err error
	if detail.Descriptors, err = db.GetDescriptors(ctx, id); err != nil {
		return nil, errors.Wrap(op, err)
	}
	if detail.Failures, err = db.GetFailures(ctx, id); err != nil {
		return nil, errors.Wrap(op, err)
	}
	return detail, nil
}

// GetDescriptors returns a batch's descriptors in output order.
func (db *DB) GetDescriptors(ctx context.Context, batchID string) ([]models.Descriptor, error) {
	const op errors.Op = "database.GetDescriptors"

	rows, err := db.QueryContext(ctx, `SELECT name, orig_acc, run_acc, http_url, md5, ascp_url, download_path
		FROM descriptors WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	out := []models.Descriptor{}
	for rows.Next() {
		var d models.Descriptor
		var name, md5, ascp sql.NullString
		if err := rows.Scan(&name, &d.OrigAcc, &d.RunAcc, &d.HTTPURL, &md5, &ascp, &d.DownloadPath); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
		d.Name, d.MD5, d.AsperaURL = name.String, md5.String, ascp.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return out, nil
}

// GetFailures returns a batch's failures ordered by input line.
func (db *DB) GetFailures(ctx context.Context, batchID string) ([]Failure, error) {
	const op errors.Op = "database.GetFailures"

	rows, err := db.QueryContext(ctx, `SELECT batch_id, line_no, input, accession, kind, reason, message
		FROM failures WHERE batch_id = ? ORDER BY line_no`, batchID)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	out := []Failure{}
	for rows.Next() {
		var f Failure
		var input, acc, reason, msg sql.NullString
		if err := rows.Scan(&f.BatchID, &f.Line, &input, &acc, &f.Kind, &reason, &msg); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
		f.Input, f.Accession, f.Reason, f.Message = input.String, acc.String, reason.String, msg.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return out, nil
}

// FindDescriptors returns every stored descriptor whose original or run
// accession equals acc, newest batch first.
func (db *DB) FindDescriptors(ctx context.Context, acc string) ([]StoredDescriptor, error) {
	const op errors.Op = "database.FindDescriptors"

	acc = strings.ToUpper(strings.TrimSpace(acc))
	rows, err := db.QueryContext(ctx, `
		SELECT d.batch_id, d.position, d.line_no, b.created_at,
			d.name, d.orig_acc, d.run_acc, d.http_url, d.md5, d.ascp_url, d.download_path
		FROM descriptors d JOIN batches b ON b.id = d.batch_id
		WHERE d.orig_acc = ? OR d.run_acc = ?
		ORDER BY b.created_at DESC, d.position`, acc, acc)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	out := []StoredDescriptor{}
	for rows.Next() {
		var s StoredDescriptor
		var name, md5, ascp sql.NullString
		if err := rows.Scan(&s.BatchID, &s.Position, &s.Line, &s.SavedAt,
			&name, &s.OrigAcc, &s.RunAcc, &s.HTTPURL, &md5, &ascp, &s.DownloadPath); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
		s.Name, s.MD5, s.AsperaURL = name.String, md5.String, ascp.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return out, nil
}

// DeleteBatch removes a batch and its rows.
func (db *DB) DeleteBatch(ctx context.Context, id string) error {
	const op errors.Op = "database.DeleteBatch"

	res, err := db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return errors.E(op, errors.KindDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(op, errors.KindNotFound, fmt.Sprintf("batch %q", id))
	}
	return nil
}

// CountTable counts rows in a table.
// The table name is validated against the AllowedTables whitelist.
func (db *DB) CountTable(table string) (int64, error) {
	safeTable, err := SafeTableName(table)
	if err != nil {
		return 0, fmt.Errorf("CountTable: %w", err)
	}

	var count int64
	// #nosec G201 - table name validated against whitelist
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", safeTable)
	err = db.QueryRow(query).Scan(&count)
	return count, err
}

// GetStats returns row counts and the database file size.
func (db *DB) GetStats() (*Stats, error) {
	const op errors.Op = "database.GetStats"

	stats := &Stats{}
	var err error
	if stats.Batches, err = db.CountTable("batches"); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	if stats.Descriptors, err = db.CountTable("descriptors"); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	if stats.Failures, err = db.CountTable("failures"); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	if db.path != "" {
		if st, err := os.Stat(db.path); err == nil {
			stats.Size = st.Size()
		}
	}
	return stats, nil
}
