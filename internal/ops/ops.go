// Package ops implements the pulse workflow on top of the core packages:
// reading and writing pulses files, loading groups with their approvals,
// extraction across raw files, approval edits and charge analysis.
package ops

import (
	"database/sql"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
)

// History limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// timestampLayout names timestamped output files, e.g. approved_pulses_20240131_154502.txt.
const timestampLayout = "20060102_150405"

// now is replaced in tests.
var now = time.Now

// FileFailure reports why one file of a batch operation was not processed.
type FileFailure struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newFileFailure(file string, err error) FileFailure {
	code := string(errors.ErrInternal)
	var pErr *errors.PulseError
	if stderrors.As(err, &pErr) {
		code = string(pErr.Code)
	}
	return FileFailure{File: file, Code: code, Message: err.Error()}
}

// listFiles returns the regular files in dir with extension ext, sorted by
// name. A missing directory is NOT_FOUND.
func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(dir)
		}
		return nil, errors.NewInternal(err)
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// stem returns the base name of path without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// recordRun stores r in the ledger when one is open. Ledger failures are
// logged and do not fail the operation whose output is already on disk.
func recordRun(database *sql.DB, r *db.Run, analyses ...db.Analysis) string {
	if database == nil {
		return ""
	}
	if err := db.InsertRun(database, r); err != nil {
		slog.Warn("failed to record run", "kind", r.Kind, "error", err)
		return ""
	}
	for i := range analyses {
		analyses[i].RunID = r.ID
		if err := db.InsertAnalysis(database, &analyses[i]); err != nil {
			slog.Warn("failed to record analysis", "run_id", r.ID, "file", analyses[i].FileName, "error", err)
		}
	}
	return r.ID
}
