// Package results persists a per-run audit trail into a SQLite database
// inside the run directory. Every processed photo gets a row with its bucket
// and the full classification detail as JSON.
package results

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-matcher/internal/classify"
	"github.com/kozaktomas/face-matcher/internal/report"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// FileName is the database file created inside every run directory.
const FileName = "results.db"

// Store manages the audit database for one run.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the results database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("results database has schema version %d, expected %d", version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// BeginRun registers a new run and returns its generated identifier.
func (s *Store) BeginRun(ctx context.Context, th classify.Thresholds, referenceCount int) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, started_at, threshold, almost_threshold, reference_count)
         VALUES (?, ?, ?, ?, ?)`,
		runID,
		time.Now().UTC().Format(time.RFC3339Nano),
		th.Match,
		th.Almost,
		referenceCount,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// RecordPhoto stores the classification of one photo, including the full
// per-face detail as JSON.
func (s *Store) RecordPhoto(ctx context.Context, runID, path string, result classify.Result) error {
	detail, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal classification detail: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO photos (run_id, path, bucket, best_confidence, faces_count, detail_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		path,
		result.Bucket.String(),
		result.BestConfidence,
		result.FacesCount,
		string(detail),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// RecordError stores a photo whose processing failed.
func (s *Store) RecordError(ctx context.Context, runID, path string, photoErr error) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO photos (run_id, path, bucket, best_confidence, faces_count, error, created_at)
         VALUES (?, ?, 'error', 0, 0, ?, ?)`,
		runID,
		path,
		photoErr.Error(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert photo error: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its end time and final counters.
func (s *Store) FinishRun(ctx context.Context, runID string, c report.Counters) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, matched = ?,
         almost_matched = ?, not_matched = ?, errors = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		c.Processed,
		c.Matched,
		c.AlmostMatched,
		c.NotMatched,
		c.Errors,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

// PhotoRecord is one audit row read back from the database.
type PhotoRecord struct {
	Path           string
	Bucket         string
	BestConfidence float64
	FacesCount     int
	Error          string
}

// PhotosByRun returns the audit rows for a run in insertion order.
func (s *Store) PhotosByRun(ctx context.Context, runID string) ([]PhotoRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT path, bucket, best_confidence, faces_count, COALESCE(error, '')
         FROM photos WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var records []PhotoRecord
	for rows.Next() {
		var rec PhotoRecord
		if err := rows.Scan(&rec.Path, &rec.Bucket, &rec.BestConfidence, &rec.FacesCount, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan photo row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return records, nil
}
