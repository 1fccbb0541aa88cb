package db

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/pulsekit/internal/errors"
)

// Run kinds recorded in the ledger.
const (
	KindExtract      = "extract"
	KindAnalyze      = "analyze"
	KindBatch        = "batch"
	KindSaveApproved = "save_approved"
)

// Per-file statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run is one recorded invocation of a pipeline stage.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Pulses     int       `json:"pulses"`
	Skipped    int       `json:"skipped"`
	CreatedAt  int64     `json:"created_at"`
	Files      []RunFile `json:"files,omitempty"`
}

// RunFile is the outcome of one input file within a run.
type RunFile struct {
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Pulses   int    `json:"pulses"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message,omitempty"`
}

// Analysis is a charge summary recorded for one pulses file.
type Analysis struct {
	RunID    string  `json:"run_id"`
	FileName string  `json:"file_name"`
	Pulses   int     `json:"pulses"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
}

// NewRunID returns a new time-ordered run identifier.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// InsertRun stores r and its per-file outcomes in one transaction.
// Empty ID and CreatedAt are filled in.
func InsertRun(db *sql.DB, r *Run) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO runs (id, kind, input_path, output_path, pulses, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.InputPath, toNullString(r.OutputPath), r.Pulses, r.Skipped, r.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}

	for _, f := range r.Files {
		_, err := tx.Exec(`
			INSERT INTO run_files (run_id, file_name, status, pulses, skipped, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, f.FileName, f.Status, f.Pulses, f.Skipped, toNullString(f.Message))
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// InsertAnalysis stores a charge summary. The run must already exist.
func InsertAnalysis(db *sql.DB, a *Analysis) error {
	_, err := db.Exec(`
		INSERT INTO analyses (run_id, file_name, pulses, mean, std, min, max, median)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.RunID, a.FileName, a.Pulses, a.Mean, a.Std, a.Min, a.Max, a.Median)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run and its per-file outcomes.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, kind, input_path, output_path, pulses, skipped, created_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	files, err := listRunFiles(db, id)
	if err != nil {
		return nil, err
	}
	r.Files = files
	return r, nil
}

// ListRuns returns the most recent runs first. An empty kind matches all
// kinds; limit <= 0 means no limit.
func ListRuns(db *sql.DB, kind string, limit int) ([]Run, error) {
	query := `
		SELECT id, kind, input_path, output_path, pulses, skipped, created_at
		FROM runs
	`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	// ULIDs sort by creation time, which breaks ties within the same second.
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// ListAnalyses returns the charge summaries recorded for a run.
func ListAnalyses(db *sql.DB, runID string) ([]Analysis, error) {
	rows, err := db.Query(`
		SELECT run_id, file_name, pulses, mean, std, min, max, median
		FROM analyses WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.RunID, &a.FileName, &a.Pulses, &a.Mean, &a.Std, &a.Min, &a.Max, &a.Median); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func listRunFiles(db *sql.DB, runID string) ([]RunFile, error) {
	rows, err := db.Query(`
		SELECT file_name, status, pulses, skipped, message
		FROM run_files WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		var msg sql.NullString
		if err := rows.Scan(&f.FileName, &f.Status, &f.Pulses, &f.Skipped, &msg); err != nil {
			return nil, errors.NewInternal(err)
		}
		f.Message = msg.String
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return files, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var output sql.NullString
	if err := s.Scan(&r.ID, &r.Kind, &r.InputPath, &output, &r.Pulses, &r.Skipped, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.OutputPath = output.String
	return &r, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
