package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	RunID string // optional, show one run with its files and analyses
	Kind  string // optional filter: extract, analyze, batch, save_approved
	Limit int    // optional, default: 20, max: 100
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Runs     []db.Run      `json:"runs"`
	Analyses []db.Analysis `json:"analyses,omitempty"`
}

var runKinds = []string{db.KindExtract, db.KindAnalyze, db.KindBatch, db.KindSaveApproved}

// History lists recorded runs, most recent first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	if database == nil {
		return nil, errors.NewInvalidRequest("run ledger is not available")
	}

	if id := strings.TrimSpace(input.RunID); id != "" {
		run, err := db.GetRun(database, id)
		if err != nil {
			return nil, err
		}
		analyses, err := db.ListAnalyses(database, id)
		if err != nil {
			return nil, err
		}
		return &HistoryOutput{Runs: []db.Run{*run}, Analyses: analyses}, nil
	}

	kind := strings.TrimSpace(input.Kind)
	if kind != "" && !validKind(kind) {
		return nil, errors.NewInvalidRequest("kind must be one of: " + strings.Join(runKinds, ", "))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	runs, err := db.ListRuns(database, kind, limit)
	if err != nil {
		return nil, err
	}
	return &HistoryOutput{Runs: runs}, nil
}

func validKind(kind string) bool {
	for _, k := range runKinds {
		if k == kind {
			return true
		}
	}
	return false
}
